// Package cmd is sonarctl's cobra command tree. Grounded on
// Zzhihon-Bt1QFM's cmd/root.go (the same rootCmd-plus-subcommand-init
// pattern), generalized from its single "start the server" Run into a
// small tree of sonar-domain subcommands over one shared Engine.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sonarctl",
	Short: "sonarctl runs and administers a sonar music library",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
