package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/graph"
)

// GenerateMermaid produces a Mermaid flowchart of g. Node shapes follow the
// category:
// - Start: ((Circle))
// - Process: [Rectangle]
// - End: [/Parallelogram/]
// Edges are labelled "output -> input". When report is not nil, nodes are
// styled by their outcome in that run.
func GenerateMermaid(g *graph.Graph, report *executor.Report) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, n := range g.Nodes() {
		opener, closer := "[", "]"
		switch n.Category() {
		case graph.CategoryStart:
			opener, closer = "((", "))"
		case graph.CategoryEnd:
			opener, closer = "[/", "/]"
		}

		label := n.ID()
		if l, ok := g.Layout(n.ID()); ok && l.Label != "" {
			label = l.Label
		}
		fmt.Fprintf(&sb, "    %s%s\"%s <br/> %s\"%s\n",
			sanitizeMermaidID(n.ID()), opener, escapeLabel(label), n.Type().Name(), closer)
	}

	for _, c := range g.Connections() {
		fmt.Fprintf(&sb, "    %s -- \"%s -> %s\" --> %s\n",
			sanitizeMermaidID(c.From.NodeID), escapeLabel(c.From.Name), escapeLabel(c.To.Name),
			sanitizeMermaidID(c.To.NodeID))
	}

	if report != nil {
		sb.WriteString("\n    %% Run outcome\n")
		// Force black text (color:#000) for contrast on light and dark themes.
		sb.WriteString("    classDef ok fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eceff1,stroke:#78909c,stroke-dasharray:4,color:#000;\n")
		for _, nr := range report.Nodes {
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(nr.NodeID), outcome(nr))
		}
	}

	return sb.String()
}

func outcome(nr executor.NodeReport) string {
	switch {
	case nr.Err == nil:
		return "ok"
	case nr.Upstream:
		return "skipped"
	default:
		return "failed"
	}
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
