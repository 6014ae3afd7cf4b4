package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/pkg/document"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Manage stored flows",
	Long:  `Lists, prints, pushes and deletes flows in the configured store backend.`,
}

// withStore opens the configured stack and engine for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, eng *lattice.Engine) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := cli.OpenStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	eng, err := cli.NewEngine(st, logger)
	if err != nil {
		return err
	}
	return fn(ctx, eng)
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored flows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, eng *lattice.Engine) error {
			list, err := eng.ListFlows(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tNODES")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\n", s.ID, s.Name, s.Nodes)
			}
			return w.Flush()
		})
	},
}

var flowsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored flow as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, eng *lattice.Engine) error {
			f, err := eng.LoadFlow(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(f)
		})
	},
}

var flowsPushCmd = &cobra.Command{
	Use:   "push <file>...",
	Short: "Decode flow files and save them to the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, eng *lattice.Engine) error {
			for _, path := range args {
				f, err := document.ReadFile(path)
				if err != nil {
					return err
				}
				if err := eng.SaveFlow(ctx, f); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				cli.PrintSystemMessage(cmd.OutOrStdout(), "Saved '%s'.", f.ID)
			}
			return nil
		})
	},
}

var flowsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete flows from the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, eng *lattice.Engine) error {
			for _, id := range args {
				if err := eng.Store().Delete(ctx, id); err != nil {
					return err
				}
				cli.PrintSystemMessage(cmd.OutOrStdout(), "Deleted '%s'.", id)
			}
			return nil
		})
	},
}

func init() {
	flowsCmd.AddCommand(flowsListCmd, flowsGetCmd, flowsPushCmd, flowsDeleteCmd)
	rootCmd.AddCommand(flowsCmd)
}
