package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Export the flow graph visualization",
	Long:  `Decodes a flow file and outputs a Mermaid diagram (graph LR) of its nodes and connections.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, f, err := fileEngine(cmd, args[0])
		if err != nil {
			return err
		}
		g, err := eng.Decode(f)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
