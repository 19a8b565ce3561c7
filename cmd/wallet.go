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
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the wallet connection",
}

var walletConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect a wallet",
	Long: `Connect a wallet using the first available transport.

With a configured private key the connection is immediate. With a
bridge session the saved session is reused. On mobile a Phantom
universal link is printed; approve it in the wallet app and then run
'support-flow resume'.`,
	Run: runWalletConnect,
}

var walletDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the current wallet",
	Run:   runWalletDisconnect,
}

var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Show the connected wallet address",
	Run:   runWalletAddress,
}

var walletLinkCmd = &cobra.Command{
	Use:   "link <token> <address>",
	Short: "Complete an externally-approved wallet connection",
	Long: `Complete a wallet connection that was approved out of band.

After approving a connection link in the wallet app, the bridge hands
back a session token and the wallet address. Pass both here to store
the session locally; subsequent commands will use it automatically.`,
	Args: cobra.ExactArgs(2),
	Run:  runWalletLink,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletConnectCmd)
	walletCmd.AddCommand(walletDisconnectCmd)
	walletCmd.AddCommand(walletAddressCmd)
	walletCmd.AddCommand(walletLinkCmd)
}

func runWalletConnect(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	d := mustBuildDeps()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Connecting wallet..."
		s.Start()
	}

	result, err := d.manager.Connect(context.Background())
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if result.PendingRedirect {
		if jsonOutput {
			printJSON(map[string]interface{}{"status": "pending_redirect", "url": result.RedirectURL})
			return
		}
		fmt.Println("\nOpen this link to approve the connection in your wallet app:")
		color.Cyan("  %s\n", result.RedirectURL)
		fmt.Println("\nThen run 'support-flow wallet link <token> <address>' with the values the app returns.")
		return
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"status": "connected", "address": result.Address.String()})
		return
	}
	color.Green("✓ Wallet connected")
	fmt.Printf("  Address: %s\n", color.CyanString(result.Address.String()))
}

func runWalletDisconnect(cmd *cobra.Command, args []string) {
	d := mustBuildDeps()

	if err := d.manager.Disconnect(context.Background()); err != nil {
		printError(err)
		os.Exit(1)
	}
	printSuccess("Wallet disconnected")
}

func runWalletAddress(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	d := mustBuildDeps()

	// address is only known after connecting over the active transport
	result, err := d.manager.Connect(context.Background())
	if err != nil || result.PendingRedirect {
		if jsonOutput {
			printJSON(map[string]interface{}{"connected": false})
			return
		}
		fmt.Println("No wallet connected. Run 'support-flow wallet connect' first.")
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"connected": true, "address": result.Address.String()})
		return
	}
	fmt.Println(result.Address.String())
}

func runWalletLink(cmd *cobra.Command, args []string) {
	token, address := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if cfg.Wallet.BridgeURL == "" {
		printError(fmt.Errorf("no wallet bridge configured; set wallet.bridge_url first"))
		os.Exit(1)
	}

	d, err := buildDeps(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if err := d.bridge.SaveSession(token, address); err != nil {
		printError(err)
		os.Exit(1)
	}

	printSuccess("Wallet session saved")
	fmt.Printf("  Address: %s\n", color.CyanString(address))
}

func mustBuildDeps() *deps {
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
	return d
}
