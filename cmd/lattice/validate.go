package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/graph"
)

var errInvalid = errors.New("flow is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a flow for consistency",
	Long: `Decodes a flow file, reports every validity issue (no start, unreachable end,
cycles, unconnected inputs, invalid settings) and prints the execution order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, f, err := fileEngine(cmd, args[0])
		if err != nil {
			return err
		}
		g, err := eng.Decode(f)
		if err != nil {
			return err
		}

		issues := g.Validate()
		var order []*graph.Node
		if len(issues) == 0 {
			order, _ = g.ExecutionOrder()
		}
		name := f.Name
		if name == "" {
			name = f.ID
		}
		if err := cli.Markdown(os.Stdout, tui.ValidationMarkdown(name, issues, order)); err != nil {
			return err
		}
		if len(issues) > 0 {
			return errInvalid
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
