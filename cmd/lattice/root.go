package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/pkg/document"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice is a flow-graph engine",
	Long: `Lattice runs directed graphs of typed nodes. Start nodes are triggered by hand,
by webhooks or by events; every node runs as soon as its inputs are ready.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides the configuration)")
}

// loadConfig reads the configuration and builds the logger for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	logger, err := cli.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// fileEngine reads a flow file and builds an in-memory engine for it.
func fileEngine(cmd *cobra.Command, path string) (*lattice.Engine, *document.Flow, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	f, err := document.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	opts := []lattice.Option{lattice.WithLogger(logger)}
	if cfg.Commands.File != "" {
		runner, err := cli.OpenCommands(cfg.Commands.File)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, lattice.WithCommands(runner))
	}
	eng, err := lattice.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return eng, f, nil
}
