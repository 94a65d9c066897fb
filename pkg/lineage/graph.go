package lineage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

// Node is one job in a traced lineage graph.
type Node struct {
	UID  string
	Type string
}

// Edge points from a parent job to the job that consumes its outputs.
type Edge struct {
	From string
	To   string
}

// Graph is the ancestor graph of a job, rooted at the job the trace
// started from.
type Graph struct {
	Root  string
	Nodes []Node
	Edges []Edge
}

// Trace walks the full parent chain of jobDir and returns the ancestor
// graph. Unlike Collect it does not stop once the file set is complete;
// the graph always covers every reachable ancestor. Parents that cannot
// be loaded appear as nodes with an empty type.
func Trace(jobDir string) (*Graph, error) {
	abs, err := filepath.Abs(jobDir)
	if err != nil {
		return nil, err
	}
	job, err := loadJob(abs)
	if err != nil {
		return nil, err
	}

	g := &Graph{Root: job.UID}
	trace(abs, job, g, map[string]bool{})

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].UID < g.Nodes[j].UID })
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].From != g.Edges[j].From {
			return g.Edges[i].From < g.Edges[j].From
		}
		return g.Edges[i].To < g.Edges[j].To
	})
	return g, nil
}

func trace(jobDir string, job *Job, g *Graph, visited map[string]bool) {
	if visited[job.UID] {
		return
	}
	visited[job.UID] = true
	g.Nodes = append(g.Nodes, Node{UID: job.UID, Type: job.Type})

	for _, parent := range job.Parents {
		g.Edges = append(g.Edges, Edge{From: parent, To: job.UID})

		parentDir := filepath.Join(filepath.Dir(jobDir), parent)
		pj, err := loadJob(parentDir)
		if err != nil {
			if !visited[parent] {
				visited[parent] = true
				g.Nodes = append(g.Nodes, Node{UID: parent})
			}
			continue
		}
		trace(parentDir, pj, g, visited)
	}
}

// DOT serializes the graph in Graphviz dot syntax. Nodes are labeled
// with the job UID and type, and the root job is highlighted.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph lineage {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\"];\n")

	for _, n := range g.Nodes {
		label := n.UID
		if n.Type != "" {
			label = fmt.Sprintf("%s\\n%s", n.UID, n.Type)
		}
		attrs := fmt.Sprintf("label=%q", label)
		if n.UID == g.Root {
			attrs += ", style=\"rounded,bold\""
		}
		fmt.Fprintf(&b, "  %q [%s];\n", n.UID, attrs)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.From, e.To)
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderSVG lays the graph out with Graphviz and returns the SVG bytes.
func (g *Graph) RenderSVG(ctx context.Context) ([]byte, error) {
	return g.render(ctx, graphviz.SVG)
}

// RenderPNG lays the graph out with Graphviz and returns the PNG bytes.
func (g *Graph) RenderPNG(ctx context.Context) ([]byte, error) {
	return g.render(ctx, graphviz.PNG)
}

func (g *Graph) render(ctx context.Context, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "initialize graphviz")
	}
	defer gv.Close()

	parsed, err := graphviz.ParseBytes([]byte(g.DOT()))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "parse lineage graph")
	}
	defer parsed.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, parsed, format, &buf); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "render lineage graph")
	}
	return buf.Bytes(), nil
}
