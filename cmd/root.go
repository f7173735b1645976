package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pillgenious/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "pillgenious",
	Short: "Pillgenious - find drugs in the catalog from a photo of the label",
	Long: `Pillgenious reads a photo of a medicine label or prescription, extracts
candidate drug names with OCR, a keyword heuristic and an optional language
model, and searches the drug catalog for matches.

Run "pillgenious serve" for the HTTP API, or "pillgenious scan" to try a
single image from the command line.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Pillgenious CLI executed")

		fmt.Println("Welcome to Pillgenious!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
