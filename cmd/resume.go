package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"support-flow/config"
	"support-flow/pkg/flow"
	"support-flow/pkg/recovery"
	"support-flow/pkg/session"
	"support-flow/pkg/types"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted support payment",
	Long: `Resume a support payment that was interrupted mid-flow.

Resume inspects the saved session, asks the backend what actually
happened to any pending intent, and picks the flow back up from the
right point. It never submits the same payment twice: resumed
submissions reuse the original idempotency key.

Run this after approving a wallet connection in an external app, or
after the process was interrupted for any other reason.`,
	Run: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) {
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

	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking saved session..."
		s.Start()
	}

	svc := recovery.NewService(d.store, d.client)
	result, err := svc.Recover(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"status":    string(result.Status),
			"intent_id": result.IntentID,
			"signature": result.Signature,
		})
		if result.Status != recovery.ResumeSigning &&
			result.Status != recovery.ResumeSubmission &&
			result.Status != recovery.ResumeWalletConnect &&
			result.Status != recovery.Incomplete {
			return
		}
	}

	switch result.Status {
	case recovery.NoSession:
		fmt.Println("Nothing to resume.")

	case recovery.AlreadyCompleted:
		color.Green("✓ Your support payment already went through.")
		if result.Signature != "" {
			fmt.Printf("  Transaction: %s\n", color.CyanString(result.Signature))
		}

	case recovery.AwaitingConfirmation:
		color.Yellow("Your payment was submitted and is still confirming.")
		fmt.Println("Check on it with:")
		color.Cyan("  support-flow status %s\n", result.IntentID)

	case recovery.Expired:
		color.Yellow("The pending payment expired and was cleared.")
		fmt.Println("Start a new one with 'support-flow send'.")

	case recovery.OfflineRecovery:
		color.Yellow("Couldn't reach the backend to verify the pending payment.")
		fmt.Println("Your session is untouched; run 'support-flow resume' again once you're back online.")

	case recovery.ResumeSigning, recovery.ResumeSubmission:
		continueFlow(ctx, d, result, verbose, jsonOutput)

	case recovery.ResumeWalletConnect:
		resumeWalletConnect(ctx, d, result, verbose, jsonOutput)

	case recovery.Incomplete:
		if result.Params != nil {
			fmt.Println("A previous payment never reached the signing step. Restarting it...")
			restartFlow(ctx, d, *result.Params, verbose, jsonOutput)
		} else {
			fmt.Println("The previous session was incomplete and can't be restarted automatically.")
			fmt.Println("Start again with 'support-flow send'.")
		}

	default:
		printError(fmt.Errorf("unexpected recovery status %q", result.Status))
		os.Exit(1)
	}
}

// continueFlow re-signs and submits a pending intent under its original
// idempotency key
func continueFlow(ctx context.Context, d *deps, result *recovery.Result, verbose, jsonOutput bool) {
	var params types.SupportParams
	if result.Params != nil {
		params = *result.Params
	}

	engine := d.newEngine(verbose)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Signing and submitting pending payment..."
		s.Start()
	}

	var err error
	if result.Status == recovery.ResumeSubmission {
		err = engine.ResumeSubmission(ctx, result.IntentID, result.UnsignedPayload, params)
	} else {
		err = engine.ResumeSigning(ctx, result.IntentID, result.UnsignedPayload, params)
	}
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
			"intent_id": result.IntentID,
			"signature": engine.Signature(),
		})
		return
	}

	color.Green("\n✓ Support sent successfully!")
	if engine.Signature() != "" {
		fmt.Printf("  Transaction: %s\n", color.CyanString(engine.Signature()))
	}
}

// resumeWalletConnect retries the connection and, once connected,
// restarts the saved flow
func resumeWalletConnect(ctx context.Context, d *deps, result *recovery.Result, verbose, jsonOutput bool) {
	if result.WalletConnectStep == session.StepAwaitingSignature && result.IntentID != "" {
		// the redirect happened mid-signing; reconnect and finish it
		continueFlow(ctx, d, result, verbose, jsonOutput)
		return
	}

	if result.Params == nil {
		fmt.Println("The wallet connection was interrupted and the payment details are gone.")
		fmt.Println("Start again with 'support-flow send'.")
		return
	}

	fmt.Println("Picking up where the wallet connection left off...")
	restartFlow(ctx, d, *result.Params, verbose, jsonOutput)
}

// restartFlow runs a fresh Start with saved params and finishes
// automatically when it reaches ready
func restartFlow(ctx context.Context, d *deps, params types.SupportParams, verbose, jsonOutput bool) {
	engine := d.newEngine(verbose)

	if err := engine.Start(ctx, params); err != nil {
		reportFlowError(engine, jsonOutput)
		os.Exit(1)
	}

	switch engine.Step() {
	case flow.StepWaitingForPhantom:
		return
	case flow.StepInsufficientFunds:
		reportMapped(engine.Mapped(), jsonOutput)
		os.Exit(1)
	case flow.StepValidationFailed:
		color.Red("\nThis transfer isn't possible right now: %s", engine.ValidationMessage())
		os.Exit(1)
	}

	if err := engine.Confirm(ctx); err != nil {
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
}
