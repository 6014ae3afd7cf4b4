package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/presentation/tui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Activate stored flows and serve their triggers",
	Long: `Loads every flow from the store (or from flows.dir, watching it for changes),
activates their start nodes and serves webhooks under /hooks/, the OpenAPI
description at /openapi.json, Prometheus metrics at /metrics and /healthz.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			cfg.Flows.Dir = dir
		}

		if tui.Interactive(os.Stdout) {
			tui.PrintBanner(os.Stdout)
		}
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if err := cli.Serve(ctx, cfg, logger, strings.TrimSpace(lattice.Version)); err != nil {
			return err
		}
		if sig := ctx.Signal(); sig != nil {
			cli.PrintSystemMessage(os.Stdout, "Stopped by %s.", sig)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http.addr)")
	serveCmd.Flags().String("dir", "", "Directory of flow files to load and watch (overrides flows.dir)")
}
