package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "support-flow",
	Short: "A CLI for sending stablecoin support payments from a self-custodied wallet",
	Long: `support-flow drives a support payment through its full lifecycle:
wallet connection, balance checks, intent creation, signing and submission.
Interrupted flows are durable and can be resumed safely without ever
double-submitting a payment.

Examples:
  support-flow send 3.00 to creator-a
  support-flow resume
  support-flow status <intent-id>
  support-flow wallet connect`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
