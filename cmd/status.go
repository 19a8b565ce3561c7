package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"support-flow/config"
	"support-flow/pkg/backend"
	"support-flow/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <intent-id>",
	Short: "Check the status of a support payment",
	Long: `Check the lifecycle status of a support payment by its intent ID.

Examples:
  support-flow status si_01hq3k...
  support-flow status si_01hq3k... --watch
  support-flow status si_01hq3k... --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	intentID := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	client := backend.NewClient(cfg.BackendURL, cfg.APIToken)

	if watchStatus {
		watchIntentStatus(client, intentID, jsonOutput)
	} else {
		checkIntentStatus(client, intentID, jsonOutput)
	}
}

func checkIntentStatus(client *backend.Client, intentID string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking payment status..."
		s.Start()
	}

	result, err := client.IntentStatus(context.Background(), intentID)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		if errors.Is(err, backend.ErrIntentNotFound) {
			printError(fmt.Errorf("no payment intent found with ID %s", intentID))
		} else {
			printError(err)
		}
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(result)
	} else {
		displayIntentStatus(result, intentID)
	}
}

func watchIntentStatus(client *backend.Client, intentID string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching payment status (Intent ID: %s)\n", color.CyanString(intentID))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first
	if done := checkAndDisplayStatus(client, intentID); done {
		return
	}

	// Then check periodically until the intent settles
	for range ticker.C {
		if done := checkAndDisplayStatus(client, intentID); done {
			return
		}
	}
}

func checkAndDisplayStatus(client *backend.Client, intentID string) bool {
	result, err := client.IntentStatus(context.Background(), intentID)
	if err != nil {
		color.Red("Error: %v", err)
		return errors.Is(err, backend.ErrIntentNotFound)
	}

	displayIntentStatus(result, intentID)
	return result.Status.IsTerminal()
}

func displayIntentStatus(result *backend.StatusResult, intentID string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                       PAYMENT STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Intent ID:    %s\n", color.CyanString(intentID))
	fmt.Printf("  Status:       %s\n", coloredIntentStatus(result.Status))
	if result.Signature != "" {
		fmt.Printf("  Transaction:  %s\n", color.HiBlackString(result.Signature))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredIntentStatus(status types.IntentStatus) string {
	label := strings.ToUpper(string(status))

	switch status {
	case types.IntentCompleted:
		return color.GreenString(label)
	case types.IntentPending, types.IntentSigned, types.IntentSubmitted, types.IntentConfirming:
		return color.YellowString(label)
	case types.IntentFailed, types.IntentExpired:
		return color.RedString(label)
	default:
		return label
	}
}
