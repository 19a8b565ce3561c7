package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-flow/pkg/types"
)

func testAllocations() []types.Allocation {
	return []types.Allocation{{RecipientID: "creator-a", Amount: 3_000_000}}
}

func TestCreateIntent(t *testing.T) {
	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/support-intents", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req struct {
			Allocations []types.Allocation `json:"allocations"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testAllocations(), req.Allocations)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"intent_id":        "si_123",
			"unsigned_payload": "base64payload",
			"mint_address":     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"expires_at":       expires,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	intent, err := client.CreateIntent(context.Background(), types.SupportParams{Allocations: testAllocations()})
	require.NoError(t, err)

	assert.Equal(t, "si_123", intent.ID)
	assert.Equal(t, "base64payload", intent.UnsignedPayload)
	assert.Equal(t, types.IntentPending, intent.Status)
	assert.True(t, intent.ExpiresAt.Equal(expires))
}

func TestSubmitIntentSendsIdempotencyKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/support-intents/si_123/submit", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "confirming",
			"signature": "sig_abc",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	result, err := client.SubmitIntent(context.Background(), "si_123", "signedpayload", "key-uuid-1")
	require.NoError(t, err)

	assert.Equal(t, "key-uuid-1", gotKey)
	assert.Equal(t, types.IntentConfirming, result.Status)
	assert.Equal(t, "sig_abc", result.Signature)
}

func TestIntentStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	_, err := client.IntentStatus(context.Background(), "si_gone")

	assert.True(t, errors.Is(err, ErrIntentNotFound))
}

func TestErrorBodyMessageExtracted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "allocation total exceeds limit"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	_, err := client.CreateIntent(context.Background(), types.SupportParams{Allocations: testAllocations()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "allocation total exceeds limit")
	assert.Contains(t, err.Error(), "422")
}

func TestErrorBodyErrorsFieldExtracted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"errors": []string{"recipient_id required"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	_, err := client.Preflight(context.Background(), "creator-a", testAllocations(), "addr")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient_id required")
}

func TestPreflight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/preflight", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"can_proceed": false,
			"message":     "recipient suspended",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	result, err := client.Preflight(context.Background(), "creator-a", testAllocations(), "addr")
	require.NoError(t, err)

	assert.False(t, result.CanProceed)
	assert.Equal(t, "recipient suspended", result.Message)
}

func TestOnChainBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/balances/addr123", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"settlement":   5_000_000,
			"gas_lamports": 200_000,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	balances, err := client.OnChainBalance(context.Background(), "addr123")
	require.NoError(t, err)

	assert.Equal(t, types.Amount(5_000_000), balances.Settlement)
	assert.Equal(t, uint64(200_000), balances.GasLamports)
}

func TestLinkWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/wallets/link", r.URL.Path)

		var req struct {
			Address string `json:"address"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "addr123", req.Address)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	assert.NoError(t, client.LinkWallet(context.Background(), "addr123"))
}

func TestNotFoundSentinelScopedToIntentEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	ctx := context.Background()

	// the two intent endpoints map 404 to the sentinel
	_, err := client.IntentStatus(ctx, "si_gone")
	assert.True(t, errors.Is(err, ErrIntentNotFound))
	_, err = client.SubmitIntent(ctx, "si_gone", "payload", "key")
	assert.True(t, errors.Is(err, ErrIntentNotFound))

	// everywhere else a 404 is an ordinary API error
	_, err = client.Preflight(ctx, "creator-a", testAllocations(), "addr")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIntentNotFound))

	_, err = client.OnChainBalance(ctx, "addr123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIntentNotFound))

	err = client.LinkWallet(ctx, "addr123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIntentNotFound))

	_, err = client.CreateIntent(ctx, types.SupportParams{Allocations: testAllocations()})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIntentNotFound))
}

func TestNetworkErrorWrapped(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "test-token")

	_, err := client.IntentStatus(context.Background(), "si_123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIntentNotFound), "unreachable backend must be distinct from not-found")
}
