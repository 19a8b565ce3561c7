package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"support-flow/config"
	"support-flow/pkg/faults"
	"support-flow/pkg/flow"
	"support-flow/pkg/parser"
	"support-flow/pkg/types"
)

var (
	tipAmount string
	noConfirm bool
)

// platformRecipientID receives the optional tip allocation
const platformRecipientID = "platform"

var sendCmd = &cobra.Command{
	Use:   "send <amount> to <recipient>",
	Short: "Send a support payment",
	Long: `Send a stablecoin support payment to a recipient.

The flow connects your wallet, verifies balances, creates a payment
intent on the backend, signs it and submits it. Progress is persisted
at every step; if anything interrupts the flow, 'support-flow resume'
picks it back up safely.

Examples:
  support-flow send 3.00 to creator-a
  support-flow send 3.00 to creator-a --tip 0.05
  support-flow send 3.00 to creator-a --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&tipAmount, "tip", "", "Optional platform tip amount")
	sendCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSend(cmd *cobra.Command, args []string) {
	commandStr := strings.Join(args, " ")
	params, err := parser.ParseSendCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if tipAmount != "" {
		tip, err := types.ParseAmount(tipAmount)
		if err != nil {
			printError(fmt.Errorf("invalid tip: %w", err))
			os.Exit(1)
		}
		params.Allocations = append(params.Allocations, types.Allocation{
			RecipientID: platformRecipientID,
			Amount:      tip,
		})
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	d, err := buildDeps(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	engine := d.newEngine(verbose)
	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Connecting wallet and checking balance..."
		s.Start()
	}

	err = engine.Start(ctx, *params)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		reportFlowError(engine, jsonOutput)
		os.Exit(1)
	}

	switch engine.Step() {
	case flow.StepWaitingForPhantom:
		// Navigate hook already printed the link
		return
	case flow.StepInsufficientFunds:
		reportMapped(engine.Mapped(), jsonOutput)
		os.Exit(1)
	case flow.StepValidationFailed:
		if jsonOutput {
			printJSON(map[string]interface{}{"status": "validation_failed", "message": engine.ValidationMessage()})
		} else {
			color.Red("\nThis transfer isn't possible right now: %s", engine.ValidationMessage())
			fmt.Println("Try a different recipient, or try again later.")
		}
		os.Exit(1)
	}

	// ready: show the committed allocations and ask for confirmation
	if jsonOutput {
		printJSON(map[string]interface{}{"status": "ready", "total": engine.Params().Total().String()})
	} else {
		displaySummary(engine.Params())
	}

	if !noConfirm && !jsonOutput {
		if !confirmSend() {
			fmt.Println("\nSupport cancelled.")
			if err := engine.StartOver(); err != nil {
				printError(err)
			}
			os.Exit(0)
		}
	}

	if !jsonOutput {
		s.Suffix = " Creating intent, signing and submitting..."
		s.Start()
	}

	err = engine.Confirm(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		reportFlowError(engine, jsonOutput)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"status":    "success",
			"intent_id": engine.Intent().ID,
			"signature": engine.Signature(),
		})
		return
	}

	color.Green("\n✓ Support sent successfully!")
	if engine.Signature() != "" {
		fmt.Printf("  Transaction: %s\n", color.CyanString(engine.Signature()))
	}
	fmt.Println("\nYou can check the final status using:")
	color.Cyan("  support-flow status %s\n", engine.Intent().ID)
}

func displaySummary(params types.SupportParams) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                   SUPPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	for _, a := range params.Allocations {
		fmt.Printf("\n  %s  ->  %s\n", color.YellowString(a.Amount.String()), color.CyanString(a.RecipientID))
	}
	fmt.Printf("\n  Total: %s\n", color.YellowString(params.Total().String()))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirmSend() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with this support? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// reportFlowError prints the classified error held by the engine
func reportFlowError(engine *flow.Engine, jsonOutput bool) {
	mapped := engine.Mapped()
	if mapped == nil {
		printError(fmt.Errorf("flow failed in state %s", engine.Step()))
		return
	}
	reportMapped(mapped, jsonOutput)
}

func reportMapped(mapped *faults.Mapped, jsonOutput bool) {
	if jsonOutput {
		printJSON(mapped)
		return
	}

	color.Red("\n%s", mapped.Title)
	fmt.Printf("  %s\n", mapped.Message)

	if mapped.Recoverable {
		fmt.Println("\n  You can retry with the same command; nothing was double-spent.")
	} else {
		fmt.Println("\n  Your progress is saved. Resolve the issue and run the command again.")
	}
	if mapped.Primary.Kind == faults.ActionOpenLink {
		color.Cyan("  %s\n", mapped.Primary.URL)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
