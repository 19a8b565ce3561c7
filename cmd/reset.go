package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"support-flow/pkg/session"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the saved session and start fresh",
	Long: `Clear all saved flow state: the pending intent, wallet-connect
progress and remembered payment details.

Idempotency keys for previously submitted intents are dropped along
with the session, so a fresh send creates a fresh intent. Use this
when a previous flow is stuck and you want to start over.`,
	Run: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	d := mustBuildDeps()

	record := d.store.Get()
	if record.IsEmpty() {
		fmt.Println("Nothing to reset.")
		return
	}

	if record.PendingIntentID != "" {
		if err := d.keys.Reset(session.SubmitScope(record.PendingIntentID)); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	if err := d.store.Clear(); err != nil {
		printError(err)
		os.Exit(1)
	}

	printSuccess("Session cleared")
}
