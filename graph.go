package bundlegate

import (
	"fmt"
	"sort"
	"strings"
)

type GraphNode struct {
	Name    string `json:"name"`
	Ready   bool   `json:"ready"`
	Pending int    `json:"pending"`
}

// GraphEdge means "From waits for To".
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Graph returns a snapshot of every known bundle and the declared waits between them.
// Leaf consumers have no node; they only show up in their dependency's Pending count.
func (r *Registry) Graph() Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.ready)+len(r.pending))
	for name := range r.ready {
		seen[name] = struct{}{}
	}
	for name := range r.pending {
		seen[name] = struct{}{}
	}
	edges := make([]GraphEdge, 0, len(r.edges))
	for _, e := range r.edges {
		seen[e.from] = struct{}{}
		seen[e.to] = struct{}{}
		edges = append(edges, GraphEdge{From: e.from, To: e.to})
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	nodes := make([]GraphNode, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, GraphNode{
			Name:    name,
			Ready:   r.ready[name],
			Pending: len(r.pending[name]),
		})
	}
	return Graph{Nodes: nodes, Edges: edges}
}

// DOT exports Graphviz DOT text. Ready bundles are drawn filled.
func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph bundlegate {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.Name] = alias
		label := escapeDOT(n.Name)
		if n.Pending > 0 {
			label = fmt.Sprintf("%s\\n(%d waiting)", label, n.Pending)
		}
		style := ""
		if n.Ready {
			style = ", style=filled"
		}
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"%s];\n", alias, label, style))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s -> %s;\n", from, to))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text.
func (g Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.Name] = alias
		label := escapeMermaid(n.Name)
		if n.Ready {
			label += " (ready)"
		}
		if n.Pending > 0 {
			label = fmt.Sprintf("%s<br/>(%d waiting)", label, n.Pending)
		}
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias, label))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("    %s --> %s\n", from, to))
	}
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
