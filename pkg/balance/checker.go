package balance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"support-flow/pkg/backend"
	"support-flow/pkg/types"
)

// DefaultMinGasLamports is the floor of native SOL required to cover
// transaction fees (a handful of signatures plus headroom).
const DefaultMinGasLamports uint64 = 100_000

// Source fetches on-chain balances for an address
type Source interface {
	Balances(ctx context.Context, address solana.PublicKey) (types.Balances, error)
}

// Preflighter runs the backend's advisory eligibility check
type Preflighter interface {
	Preflight(ctx context.Context, recipientID string, allocations []types.Allocation, walletAddress string) (*backend.PreflightResult, error)
}

// Result is the combined outcome of balance and preflight checks
type Result struct {
	Sufficient       bool
	SettlementShort  bool
	GasShort         bool
	Balances         types.Balances
	PreflightRan     bool
	PreflightAllowed bool
	PreflightMessage string
}

// Checker verifies sufficiency before a transaction is constructed.
// Balance truth lives on-chain; eligibility truth lives on the backend.
// The two failure domains are deliberately not conflated: a reachable
// but failing preflight is advisory, while an unreachable balance
// source is the only hard blocker.
type Checker struct {
	source         Source
	preflighter    Preflighter
	minGasLamports uint64
}

// NewChecker creates a balance checker. minGasLamports of 0 falls back
// to the default threshold.
func NewChecker(source Source, preflighter Preflighter, minGasLamports uint64) *Checker {
	if minGasLamports == 0 {
		minGasLamports = DefaultMinGasLamports
	}
	return &Checker{
		source:         source,
		preflighter:    preflighter,
		minGasLamports: minGasLamports,
	}
}

// CheckAndValidate fetches balances, compares them against the
// requested total and the gas floor, and, only when on-chain balance is
// sufficient, additionally runs the backend preflight.
func (c *Checker) CheckAndValidate(ctx context.Context, address solana.PublicKey, params types.SupportParams) (*Result, error) {
	balances, err := c.source.Balances(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}

	result := &Result{Balances: balances}
	result.SettlementShort = balances.Settlement < params.Total()
	result.GasShort = balances.GasLamports < c.minGasLamports
	result.Sufficient = !result.SettlementShort && !result.GasShort

	if !result.Sufficient {
		return result, nil
	}

	if c.preflighter != nil && len(params.Allocations) > 0 {
		pf, err := c.preflighter.Preflight(ctx, params.Allocations[0].RecipientID, params.Allocations, address.String())
		if err != nil {
			// Advisory only: a failing preflight call must not block a
			// user who already has sufficient on-chain balance
			return result, nil
		}
		result.PreflightRan = true
		result.PreflightAllowed = pf.CanProceed
		result.PreflightMessage = pf.Message
	}

	return result, nil
}

// RPCSource reads balances straight from a Solana RPC node
type RPCSource struct {
	client *rpc.Client
	mint   solana.PublicKey
}

// NewRPCSource creates an on-chain balance source for the given
// settlement token mint.
func NewRPCSource(rpcURL string, mint solana.PublicKey) *RPCSource {
	return &RPCSource{
		client: rpc.New(rpcURL),
		mint:   mint,
	}
}

// Balances fetches the native SOL balance and the settlement token
// balance (via the associated token account).
func (s *RPCSource) Balances(ctx context.Context, address solana.PublicKey) (types.Balances, error) {
	sol, err := s.client.GetBalance(ctx, address, rpc.CommitmentConfirmed)
	if err != nil {
		return types.Balances{}, fmt.Errorf("failed to get balance: %w", err)
	}

	balances := types.Balances{GasLamports: sol.Value}

	tokenAccount, _, err := solana.FindAssociatedTokenAddress(address, s.mint)
	if err != nil {
		return types.Balances{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	tokenBalance, err := s.client.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentConfirmed)
	if err != nil {
		// No token account means a zero settlement balance. Any other
		// failure must surface: an unreachable balance source is a hard
		// blocker, never a zero reading.
		if isMissingAccount(err) {
			return balances, nil
		}
		return types.Balances{}, fmt.Errorf("failed to get token balance: %w", err)
	}

	amount, err := strconv.ParseUint(tokenBalance.Value.Amount, 10, 64)
	if err != nil {
		return types.Balances{}, fmt.Errorf("failed to parse token balance: %w", err)
	}

	balances.Settlement = types.Amount(amount)
	return balances, nil
}

// isMissingAccount matches the node's response for an associated token
// account that was never created.
func isMissingAccount(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find account") || strings.Contains(msg, "account not found")
}

// BackendSource proxies balance reads through the backend, for
// environments without a direct RPC endpoint.
type BackendSource struct {
	client *backend.Client
}

// NewBackendSource creates a backend-proxied balance source
func NewBackendSource(client *backend.Client) *BackendSource {
	return &BackendSource{client: client}
}

func (s *BackendSource) Balances(ctx context.Context, address solana.PublicKey) (types.Balances, error) {
	return s.client.OnChainBalance(ctx, address.String())
}
