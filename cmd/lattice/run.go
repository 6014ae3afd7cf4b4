package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/executor"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a flow once",
	Long: `Runs a flow file once as a manual trigger and prints the per-node report and
the values recorded by record nodes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, _ := cmd.Flags().GetString("node")
		raw, _ := cmd.Flags().GetString("payload")
		asJSON, _ := cmd.Flags().GetBool("json")

		payload, err := cli.ParsePayload(raw)
		if err != nil {
			return err
		}
		eng, f, err := fileEngine(cmd, args[0])
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		report, runErr := eng.RunFlow(ctx, f, executor.Trigger{NodeID: node, Payload: payload})
		if report.RunID == "" {
			return runErr
		}

		if asJSON {
			recorded := map[string]any{}
			for k, b := range eng.Recorder().Snapshot() {
				recorded[k] = b.Value()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]any{"report": report, "recorded": recorded}); err != nil {
				return err
			}
		} else if err := cli.Markdown(os.Stdout, tui.RunMarkdown(report, eng.Recorder().Snapshot())); err != nil {
			return err
		}
		if runErr != nil {
			return cli.RunError(report)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("node", "", "Start node receiving the payload (default: the only start node)")
	runCmd.Flags().String("payload", "", "JSON object overriding the start payload")
	runCmd.Flags().Bool("json", false, "Print the report as JSON")
}
