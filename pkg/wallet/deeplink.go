package wallet

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"

	"support-flow/pkg/faults"
)

// InstallURL is opened on desktop when no signer transport is available
const InstallURL = "https://phantom.app/download"

// DeepLinkConfig describes how to construct the external wallet app URL
type DeepLinkConfig struct {
	BaseURL     string // universal-link prefix, e.g. https://phantom.app/ul/v1
	AppURL      string // identifies this app to the wallet
	RedirectURL string // where the wallet redirects after approval
	Cluster     string // network cluster identifier
}

// DeepLinkTransport hands the connection off to an external wallet app.
// It can only initiate; signing completes in the other app and control
// returns via session recovery, not via an in-process callback.
type DeepLinkTransport struct {
	config DeepLinkConfig
}

// NewDeepLinkTransport creates the external-app transport
func NewDeepLinkTransport(cfg DeepLinkConfig) *DeepLinkTransport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://phantom.app/ul/v1"
	}
	if cfg.Cluster == "" {
		cfg.Cluster = "mainnet-beta"
	}
	return &DeepLinkTransport{config: cfg}
}

func (t *DeepLinkTransport) Kind() TransportKind { return TransportDeepLink }

func (t *DeepLinkTransport) Available() bool {
	return t.config.AppURL != "" && t.config.RedirectURL != ""
}

// Connect constructs the connect deep link and reports PendingRedirect.
// The caller must persist its awaiting-connect step before navigating,
// because the process may be torn down the moment the URL opens.
func (t *DeepLinkTransport) Connect(ctx context.Context) (ConnectResult, error) {
	if !t.Available() {
		return ConnectResult{}, faults.WithCode(faults.WalletNotInstalled, fmt.Errorf("deep link not configured"))
	}

	return ConnectResult{
		PendingRedirect: true,
		RedirectURL:     t.ConnectURL(),
	}, nil
}

// ConnectURL builds the wallet-app connect URL
func (t *DeepLinkTransport) ConnectURL() string {
	params := url.Values{}
	params.Set("app_url", t.config.AppURL)
	params.Set("redirect_link", t.config.RedirectURL)
	params.Set("cluster", t.config.Cluster)

	return strings.TrimRight(t.config.BaseURL, "/") + "/connect?" + params.Encode()
}

func (t *DeepLinkTransport) Disconnect(ctx context.Context) error {
	// Nothing held locally; the session lives in the external app
	return nil
}

func (t *DeepLinkTransport) SignTransaction(ctx context.Context, unsignedPayload string) (string, error) {
	return "", faults.WithCode(faults.WalletNotConnected,
		fmt.Errorf("%w: signing completes in the external wallet app", ErrNotSupported))
}

func (t *DeepLinkTransport) SignAndSend(ctx context.Context, unsignedPayload string) (solana.Signature, error) {
	return solana.Signature{}, faults.WithCode(faults.InvalidTransaction,
		fmt.Errorf("%w: the deep-link transport cannot sign and broadcast locally; use signTransaction plus an explicit submit", ErrNotSupported))
}

func (t *DeepLinkTransport) SignMessage(ctx context.Context, msg []byte) (solana.Signature, error) {
	return solana.Signature{}, faults.WithCode(faults.WalletNotConnected,
		fmt.Errorf("%w: message signing completes in the external wallet app", ErrNotSupported))
}
