package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"support-flow/pkg/types"
)

// ErrIntentNotFound is returned when the backend has no record of an
// intent id. Recovery treats it as an expired session, distinct from
// the backend being unreachable.
var ErrIntentNotFound = errors.New("intent not found")

// apiError carries the HTTP status so intent-aware call sites can map
// a 404 to ErrIntentNotFound. Other endpoints surface it as-is: a 404
// from preflight or balances does not mean an intent disappeared.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound
}

// Client talks to the support backend's intent-lifecycle endpoints
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a backend client
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// createIntentRequest is the wire shape for intent creation
type createIntentRequest struct {
	Allocations []types.Allocation `json:"allocations"`
}

type createIntentResponse struct {
	IntentID        string    `json:"intent_id"`
	UnsignedPayload string    `json:"unsigned_payload"`
	MintAddress     string    `json:"mint_address"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// CreateIntent asks the backend to build a SupportIntent from the
// confirmed allocations. The returned payload is immutable.
func (c *Client) CreateIntent(ctx context.Context, params types.SupportParams) (*types.SupportIntent, error) {
	var resp createIntentResponse
	err := c.do(ctx, http.MethodPost, "/v1/support-intents", createIntentRequest{Allocations: params.Allocations}, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent: %w", err)
	}

	return &types.SupportIntent{
		ID:              resp.IntentID,
		Allocations:     params.Allocations,
		UnsignedPayload: resp.UnsignedPayload,
		MintAddress:     resp.MintAddress,
		Status:          types.IntentPending,
		CreatedAt:       time.Now(),
		ExpiresAt:       resp.ExpiresAt,
	}, nil
}

type submitIntentRequest struct {
	SignedPayload string `json:"signed_payload"`
}

// SubmitResult is the backend's answer to a submission
type SubmitResult struct {
	Status    types.IntentStatus `json:"status"`
	Signature string             `json:"signature,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// SubmitIntent broadcasts a signed payload through the backend. The
// idempotency key makes client-side retries of a slow or ambiguous
// call safe: the backend deduplicates on it.
func (c *Client) SubmitIntent(ctx context.Context, intentID, signedPayload, idempotencyKey string) (*SubmitResult, error) {
	var resp SubmitResult
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	err := c.do(ctx, http.MethodPost, "/v1/support-intents/"+intentID+"/submit", submitIntentRequest{SignedPayload: signedPayload}, headers, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to submit intent: %w", err)
	}
	return &resp, nil
}

// StatusResult is the backend's view of an intent
type StatusResult struct {
	Status          types.IntentStatus `json:"status"`
	Signature       string             `json:"signature,omitempty"`
	UnsignedPayload string             `json:"unsigned_payload,omitempty"`
}

// IntentStatus queries the current lifecycle state of an intent.
// Returns ErrIntentNotFound on 404.
func (c *Client) IntentStatus(ctx context.Context, intentID string) (*StatusResult, error) {
	var resp StatusResult
	err := c.do(ctx, http.MethodGet, "/v1/support-intents/"+intentID, nil, nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get intent status: %w", err)
	}
	return &resp, nil
}

type preflightRequest struct {
	RecipientID   string             `json:"recipient_id"`
	Allocations   []types.Allocation `json:"allocations"`
	WalletAddress string             `json:"wallet_address"`
}

// PreflightResult is the backend's advisory eligibility check
type PreflightResult struct {
	CanProceed bool   `json:"can_proceed"`
	Message    string `json:"message,omitempty"`
}

// Preflight runs the backend's eligibility checks for a transfer. The
// result is advisory; the caller decides how much weight it carries.
func (c *Client) Preflight(ctx context.Context, recipientID string, allocations []types.Allocation, walletAddress string) (*PreflightResult, error) {
	var resp PreflightResult
	err := c.do(ctx, http.MethodPost, "/v1/preflight", preflightRequest{
		RecipientID:   recipientID,
		Allocations:   allocations,
		WalletAddress: walletAddress,
	}, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}
	return &resp, nil
}

type balanceResponse struct {
	Settlement  types.Amount `json:"settlement"`
	GasLamports uint64       `json:"gas_lamports"`
}

// OnChainBalance fetches balances via the backend's chain proxy. Used
// when no direct RPC endpoint is configured.
func (c *Client) OnChainBalance(ctx context.Context, walletAddress string) (types.Balances, error) {
	var resp balanceResponse
	err := c.do(ctx, http.MethodGet, "/v1/balances/"+walletAddress, nil, nil, &resp)
	if err != nil {
		return types.Balances{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return types.Balances{Settlement: resp.Settlement, GasLamports: resp.GasLamports}, nil
}

type linkWalletRequest struct {
	Address string `json:"address"`
}

// LinkWallet associates a wallet address with the current user. Callers
// treat failure as non-blocking; the on-chain balance remains the
// source of truth regardless.
func (c *Client) LinkWallet(ctx context.Context, address string) error {
	if err := c.do(ctx, http.MethodPost, "/v1/wallets/link", linkWalletRequest{Address: address}, nil, nil); err != nil {
		return fmt.Errorf("failed to link wallet: %w", err)
	}
	return nil
}

// do executes one JSON request. Non-2xx responses have their error
// payload extracted so the message the backend sent is what surfaces.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(bodyBytes) > 0 {
			var errorResp map[string]interface{}
			if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
				if message, ok := errorResp["message"].(string); ok {
					return &apiError{status: resp.StatusCode, message: fmt.Sprintf("API error (status %d): %s", resp.StatusCode, message)}
				}
				if errs, ok := errorResp["errors"]; ok {
					return &apiError{status: resp.StatusCode, message: fmt.Sprintf("API error (status %d): %v", resp.StatusCode, errs)}
				}
			}
			return &apiError{status: resp.StatusCode, message: fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))}
		}
		return &apiError{status: resp.StatusCode, message: fmt.Sprintf("API returned status code %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
