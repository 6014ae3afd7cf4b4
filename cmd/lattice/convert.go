package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/pkg/document"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Re-encode a flow file",
	Long:  `Reads a flow and writes it with the codec of the output extension (.json, .yaml, .yml or .lfb).`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, f, err := fileEngine(cmd, args[0])
		if err != nil {
			return err
		}
		if _, err := eng.Decode(f); err != nil {
			return err
		}
		if err := document.WriteFile(args[1], f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
