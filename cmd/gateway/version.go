package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// preenchidos via -ldflags "-X main.version=..."
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// não precisa de config
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "gateway %s (commit %s, built %s, %s)\n", version, commit, buildDate, runtime.Version())
			return err
		},
	}
}
