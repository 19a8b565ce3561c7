package balance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-flow/pkg/backend"
	"support-flow/pkg/types"
)

type stubSource struct {
	balances types.Balances
	err      error
}

func (s *stubSource) Balances(ctx context.Context, address solana.PublicKey) (types.Balances, error) {
	return s.balances, s.err
}

type stubPreflighter struct {
	result *backend.PreflightResult
	err    error
	calls  int
}

func (p *stubPreflighter) Preflight(ctx context.Context, recipientID string, allocations []types.Allocation, walletAddress string) (*backend.PreflightResult, error) {
	p.calls++
	return p.result, p.err
}

func testParams() types.SupportParams {
	return types.SupportParams{
		Allocations: []types.Allocation{{RecipientID: "creator-a", Amount: 3_000_000}},
	}
}

func TestCheckSufficiency(t *testing.T) {
	tests := []struct {
		name            string
		balances        types.Balances
		wantSufficient  bool
		wantSettleShort bool
		wantGasShort    bool
	}{
		{
			name:           "plenty of both",
			balances:       types.Balances{Settlement: 10_000_000, GasLamports: 1_000_000},
			wantSufficient: true,
		},
		{
			name:           "exactly enough",
			balances:       types.Balances{Settlement: 3_000_000, GasLamports: DefaultMinGasLamports},
			wantSufficient: true,
		},
		{
			name:            "settlement one micro unit short",
			balances:        types.Balances{Settlement: 2_999_999, GasLamports: 1_000_000},
			wantSettleShort: true,
		},
		{
			name:         "gas one lamport short",
			balances:     types.Balances{Settlement: 10_000_000, GasLamports: DefaultMinGasLamports - 1},
			wantGasShort: true,
		},
		{
			name:            "both short",
			balances:        types.Balances{},
			wantSettleShort: true,
			wantGasShort:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(&stubSource{balances: tt.balances}, nil, 0)

			result, err := checker.CheckAndValidate(context.Background(), solana.PublicKey{}, testParams())
			require.NoError(t, err)

			assert.Equal(t, tt.wantSufficient, result.Sufficient)
			assert.Equal(t, tt.wantSettleShort, result.SettlementShort)
			assert.Equal(t, tt.wantGasShort, result.GasShort)
			assert.Equal(t, tt.balances, result.Balances)
		})
	}
}

func TestUnreachableSourceIsHardError(t *testing.T) {
	checker := NewChecker(&stubSource{err: errors.New("rpc unreachable")}, nil, 0)

	_, err := checker.CheckAndValidate(context.Background(), solana.PublicKey{}, testParams())
	assert.Error(t, err)
}

func TestPreflightOnlyRunsWhenSufficient(t *testing.T) {
	pf := &stubPreflighter{result: &backend.PreflightResult{CanProceed: true}}
	checker := NewChecker(&stubSource{balances: types.Balances{}}, pf, 0)

	result, err := checker.CheckAndValidate(context.Background(), solana.PublicKey{}, testParams())
	require.NoError(t, err)

	assert.False(t, result.Sufficient)
	assert.Zero(t, pf.calls)
	assert.False(t, result.PreflightRan)
}

func TestPreflightRejection(t *testing.T) {
	pf := &stubPreflighter{result: &backend.PreflightResult{CanProceed: false, Message: "recipient suspended"}}
	checker := NewChecker(&stubSource{balances: types.Balances{Settlement: 10_000_000, GasLamports: 1_000_000}}, pf, 0)

	result, err := checker.CheckAndValidate(context.Background(), solana.PublicKey{}, testParams())
	require.NoError(t, err)

	assert.True(t, result.Sufficient)
	assert.True(t, result.PreflightRan)
	assert.False(t, result.PreflightAllowed)
	assert.Equal(t, "recipient suspended", result.PreflightMessage)
}

func TestPreflightCallFailureIsAdvisory(t *testing.T) {
	// an unreachable preflight must not block a funded user
	pf := &stubPreflighter{err: errors.New("backend down")}
	checker := NewChecker(&stubSource{balances: types.Balances{Settlement: 10_000_000, GasLamports: 1_000_000}}, pf, 0)

	result, err := checker.CheckAndValidate(context.Background(), solana.PublicKey{}, testParams())
	require.NoError(t, err)

	assert.True(t, result.Sufficient)
	assert.False(t, result.PreflightRan)
}

// rpcNode fakes a Solana JSON-RPC node, dispatching on the method name
func rpcNode(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		for method, h := range handlers {
			if strings.Contains(string(body), `"`+method+`"`) {
				h(w, r)
				return
			}
		}
		t.Fatalf("unexpected RPC request: %s", body)
	}))
}

func TestRPCSourceTokenBalanceOutagePropagates(t *testing.T) {
	server := rpcNode(t, map[string]http.HandlerFunc{
		"getBalance": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"jsonrpc":"2.0","result":{"context":{"slot":1},"value":5000000},"id":1}`)
		},
		"getTokenAccountBalance": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
	})
	defer server.Close()

	source := NewRPCSource(server.URL, solana.NewWallet().PublicKey())
	owner := solana.NewWallet().PublicKey()

	// a rate-limited token query is an outage, not a zero balance
	_, err := source.Balances(context.Background(), owner)
	require.Error(t, err)

	// and the checker surfaces it as a hard error, never as shortfall
	checker := NewChecker(source, nil, 0)
	_, err = checker.CheckAndValidate(context.Background(), owner, testParams())
	assert.Error(t, err)
}

func TestRPCSourceMissingTokenAccountIsZero(t *testing.T) {
	server := rpcNode(t, map[string]http.HandlerFunc{
		"getBalance": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"jsonrpc":"2.0","result":{"context":{"slot":1},"value":5000000},"id":1}`)
		},
		"getTokenAccountBalance": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid param: could not find account"},"id":1}`)
		},
	})
	defer server.Close()

	source := NewRPCSource(server.URL, solana.NewWallet().PublicKey())

	balances, err := source.Balances(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)

	assert.Equal(t, types.Amount(0), balances.Settlement)
	assert.Equal(t, uint64(5_000_000), balances.GasLamports)
}

func TestCustomGasFloor(t *testing.T) {
	checker := NewChecker(&stubSource{balances: types.Balances{Settlement: 10_000_000, GasLamports: 400_000}}, nil, 500_000)

	result, err := checker.CheckAndValidate(context.Background(), solana.PublicKey{}, testParams())
	require.NoError(t, err)

	assert.True(t, result.GasShort)
}
