// Package cmd implements the ezchain-sim command line, shaped after the
// teacher's wallet CLI: a cobra root command with one subcommand per
// operation rather than the flat single-binary config of the node
// service.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// build is the git version of this program, set via build flags.
var build = "develop"

var rootCmd = &cobra.Command{
	Use:   "ezchain-sim",
	Short: "Discrete-event simulator for the EZchain layered-ledger protocol",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
