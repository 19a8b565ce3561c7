package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"support-flow/pkg/faults"
)

// BridgeTransport talks to a wallet bridge that holds a previously
// authorized session (the SDK-managed transport). The session token and
// wallet address are persisted so a restarted process can reuse the
// authorization without prompting again.
type BridgeTransport struct {
	baseURL     string
	sessionPath string
	httpClient  *http.Client

	mu       sync.Mutex
	session  *bridgeSession
	handlers []func(Event)
}

type bridgeSession struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

// NewBridgeTransport creates a managed-session transport. baseURL is
// the bridge endpoint; sessionPath is where the authorized session is
// persisted between runs.
func NewBridgeTransport(baseURL, sessionPath string) *BridgeTransport {
	t := &BridgeTransport{
		baseURL:     baseURL,
		sessionPath: sessionPath,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	t.session = t.loadSession()
	return t
}

func (t *BridgeTransport) Kind() TransportKind { return TransportManaged }

// Available reports whether an authorized session already exists. The
// bridge transport never initiates authorization itself; that happens
// out of band (deep-link approval writes the session file).
func (t *BridgeTransport) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baseURL != "" && t.session != nil
}

// Subscribe registers a handler for connection events
func (t *BridgeTransport) Subscribe(fn func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, fn)
}

func (t *BridgeTransport) Connect(ctx context.Context) (ConnectResult, error) {
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()

	if session == nil {
		return ConnectResult{}, faults.WithCode(faults.WalletNotConnected, fmt.Errorf("no authorized bridge session"))
	}

	addr, err := solana.PublicKeyFromBase58(session.Address)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("invalid session address: %w", err)
	}

	// Validate the session is still authorized on the bridge side
	var resp struct {
		Address string `json:"address"`
	}
	if err := t.call(ctx, "/session", map[string]string{"token": session.Token}, &resp); err != nil {
		return ConnectResult{}, err
	}

	return ConnectResult{Address: addr}, nil
}

// Disconnect revokes the bridge session best-effort and always drops
// the local session even if the revoke call fails.
func (t *BridgeTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	session := t.session
	t.session = nil
	t.mu.Unlock()

	_ = os.Remove(t.sessionPath)

	if session == nil {
		return nil
	}
	return t.call(ctx, "/disconnect", map[string]string{"token": session.Token}, nil)
}

func (t *BridgeTransport) SignTransaction(ctx context.Context, unsignedPayload string) (string, error) {
	session, err := t.requireSession()
	if err != nil {
		return "", err
	}

	var resp struct {
		SignedPayload string `json:"signed_payload"`
	}
	err = t.call(ctx, "/sign", map[string]string{
		"token":   session.Token,
		"payload": unsignedPayload,
	}, &resp)
	if err != nil {
		return "", err
	}

	return resp.SignedPayload, nil
}

func (t *BridgeTransport) SignAndSend(ctx context.Context, unsignedPayload string) (solana.Signature, error) {
	session, err := t.requireSession()
	if err != nil {
		return solana.Signature{}, err
	}

	var resp struct {
		Signature string `json:"signature"`
	}
	err = t.call(ctx, "/sign-and-send", map[string]string{
		"token":   session.Token,
		"payload": unsignedPayload,
	}, &resp)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := solana.SignatureFromBase58(resp.Signature)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid signature from bridge: %w", err)
	}
	return sig, nil
}

func (t *BridgeTransport) SignMessage(ctx context.Context, msg []byte) (solana.Signature, error) {
	session, err := t.requireSession()
	if err != nil {
		return solana.Signature{}, err
	}

	var resp struct {
		Signature string `json:"signature"`
	}
	err = t.call(ctx, "/sign-message", struct {
		Token   string `json:"token"`
		Message []byte `json:"message"` // base64 on the wire
	}{Token: session.Token, Message: msg}, &resp)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := solana.SignatureFromBase58(resp.Signature)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid signature from bridge: %w", err)
	}
	return sig, nil
}

func (t *BridgeTransport) requireSession() (*bridgeSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, faults.WithCode(faults.WalletNotConnected, fmt.Errorf("no authorized bridge session"))
	}
	return t.session, nil
}

// call posts a JSON body and decodes the response. Bridge errors carry
// a numeric provider code which is preserved for the classifier.
func (t *BridgeTransport) call(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal bridge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)

		var bridgeErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(bodyBytes, &bridgeErr); jsonErr == nil && bridgeErr.Code != 0 {
			if bridgeErr.Code == 4100 || bridgeErr.Code == 4900 {
				// Session revoked on the wallet side; drop it immediately
				t.dropSession()
			}
			return &faults.ProviderError{ProviderCode: bridgeErr.Code, Message: bridgeErr.Message}
		}

		return fmt.Errorf("bridge returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode bridge response: %w", err)
	}
	return nil
}

func (t *BridgeTransport) dropSession() {
	t.mu.Lock()
	t.session = nil
	handlers := t.handlers
	t.mu.Unlock()

	_ = os.Remove(t.sessionPath)

	for _, fn := range handlers {
		fn(Event{Kind: EventDisconnected})
	}
}

func (t *BridgeTransport) loadSession() *bridgeSession {
	data, err := os.ReadFile(t.sessionPath)
	if err != nil {
		return nil
	}

	var session bridgeSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil
	}
	if session.Token == "" || session.Address == "" {
		return nil
	}
	return &session
}

// SaveSession persists a newly authorized session (written after a
// successful deep-link approval round-trip).
func (t *BridgeTransport) SaveSession(token, address string) error {
	data, err := json.MarshalIndent(bridgeSession{Token: token, Address: address}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.sessionPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(t.sessionPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	t.mu.Lock()
	t.session = &bridgeSession{Token: token, Address: address}
	t.mu.Unlock()
	return nil
}
