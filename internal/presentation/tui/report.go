package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

// ValidationMarkdown describes the validity of a flow and, when it is valid,
// the order its nodes run in.
func ValidationMarkdown(name string, issues graph.Issues, order []*graph.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", name)

	if len(issues) > 0 {
		fmt.Fprintf(&sb, "**Invalid** (%d issues)\n\n", len(issues))
		for _, is := range issues {
			fmt.Fprintf(&sb, "- %s\n", is)
		}
		return sb.String()
	}

	sb.WriteString("**Valid**\n\n## Execution order\n\n")
	for i, n := range order {
		fmt.Fprintf(&sb, "%d. `%s` (%s, %s)\n", i+1, n.ID(), n.Type().Name(), n.Category())
	}
	return sb.String()
}

// RunMarkdown describes one run: a row per node and the recorded values.
func RunMarkdown(report executor.Report, recorded map[string]types.Box) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", report.RunID)
	fmt.Fprintf(&sb, "Flow `%s` finished in %s, %d end nodes.\n\n", report.FlowID, round(report.Duration), report.Ends)

	sb.WriteString("| node | type | status | duration |\n|---|---|---|---|\n")
	for _, n := range report.Nodes {
		status := "ok"
		switch {
		case n.Upstream:
			status = "skipped"
		case n.Err != nil:
			status = "failed: " + strings.ReplaceAll(n.Err.Error(), "|", "\\|")
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", n.NodeID, n.NodeType, status, round(n.Duration))
	}

	if len(recorded) > 0 {
		keys := make([]string, 0, len(recorded))
		for k := range recorded {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\n## Recorded\n\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "- `%s` = `%s`\n", k, recorded[k])
		}
	}
	return sb.String()
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}
