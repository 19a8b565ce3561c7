package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"

	"support-flow/config"
	"support-flow/pkg/backend"
	"support-flow/pkg/balance"
	"support-flow/pkg/flow"
	"support-flow/pkg/session"
	"support-flow/pkg/wallet"
)

// deps bundles everything a command needs to drive a flow
type deps struct {
	cfg     *config.Config
	store   *session.Store
	keys    *session.Keys
	client  *backend.Client
	manager *wallet.Manager
	checker *balance.Checker
	bridge  *wallet.BridgeTransport // nil unless a bridge URL is configured
}

// buildDeps wires the full component stack from configuration
func buildDeps(cfg *config.Config) (*deps, error) {
	store, err := session.NewStore(cfg.SessionPath)
	if err != nil {
		return nil, err
	}

	keys, err := session.NewKeys(cfg.KeysPath)
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(cfg.BackendURL, cfg.APIToken)

	var transports []wallet.Transport
	var bridge *wallet.BridgeTransport
	if cfg.Wallet.BridgeURL != "" {
		sessionFile := cfg.Wallet.BridgeSessionFile
		if sessionFile == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			sessionFile = filepath.Join(home, ".support-flow-bridge.json")
		}
		bridge = wallet.NewBridgeTransport(cfg.Wallet.BridgeURL, sessionFile)
		transports = append(transports, bridge)
	}
	if cfg.Wallet.PrivateKey != "" {
		keypair, err := wallet.NewKeypairTransport(cfg.Wallet.PrivateKey, cfg.RPCUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to load wallet key: %w", err)
		}
		transports = append(transports, keypair)
	}
	transports = append(transports, wallet.NewDeepLinkTransport(wallet.DeepLinkConfig{
		BaseURL:     cfg.Wallet.DeepLinkBaseURL,
		AppURL:      cfg.Wallet.DeepLinkAppURL,
		RedirectURL: cfg.Wallet.DeepLinkRedirect,
		Cluster:     cfg.Wallet.Cluster,
	}))

	manager := wallet.NewManager(wallet.DetectPlatform(cfg.Wallet.Platform), transports...)

	mint, err := solana.PublicKeyFromBase58(cfg.MintAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	var source balance.Source
	if cfg.RPCUrl != "" {
		source = balance.NewRPCSource(cfg.RPCUrl, mint)
	} else {
		source = balance.NewBackendSource(client)
	}
	checker := balance.NewChecker(source, client, cfg.MinGasLamports)

	return &deps{
		cfg:     cfg,
		store:   store,
		keys:    keys,
		client:  client,
		manager: manager,
		checker: checker,
		bridge:  bridge,
	}, nil
}

// newEngine creates a flow engine with the standard CLI hooks
func (d *deps) newEngine(verbose bool) *flow.Engine {
	hooks := flow.Hooks{
		Navigate: func(url string) {
			fmt.Println("\nOpen this link to approve the connection in your wallet app:")
			color.Cyan("  %s\n", url)
			fmt.Println("\nThen run 'support-flow resume' to continue.")
		},
	}
	if verbose {
		hooks.OnStep = func(step flow.Step) {
			fmt.Printf("[flow] step: %s\n", step)
		}
	}

	return flow.NewEngine(d.manager, d.checker, d.client, d.store, d.keys, hooks)
}
