package cmd

import (
	"fmt"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/genesis"
	"github.com/spf13/cobra"
)

var validateParamsPath string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateParamsPath, "params", "p", "", "path to a JSON parameters file; built-in defaults if omitted")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a simulation parameters file without running it.",
	RunE:  validateRun,
}

func validateRun(cmd *cobra.Command, args []string) error {
	params := genesis.Default()

	if validateParamsPath != "" {
		loaded, err := genesis.Load(validateParamsPath)
		if err != nil {
			return fmt.Errorf("loading %s: %w", validateParamsPath, err)
		}
		params = loaded
	}

	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	fmt.Printf("parameters OK: %d nodes, %s epochs, %s sim duration\n", params.N, params.T, params.SimDuration)
	return nil
}
