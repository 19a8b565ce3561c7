package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable, machine-readable error identifier
type Code string

const (
	WalletRejected      Code = "wallet_rejected"
	UserCancelled       Code = "user_cancelled"
	InsufficientBalance Code = "insufficient_balance"
	InsufficientGas     Code = "insufficient_gas"
	NetworkCongestion   Code = "network_congestion"
	NetworkError        Code = "network_error"
	BlockhashExpired    Code = "blockhash_expired"
	IntentExpired       Code = "intent_expired"
	TransactionFailed   Code = "transaction_failed"
	WalletNotConnected  Code = "wallet_not_connected"
	WalletNotInstalled  Code = "wallet_not_installed"
	InvalidTransaction  Code = "invalid_transaction"
	Unknown             Code = "unknown"
)

// ActionKind is a recovery action the UI can offer
type ActionKind string

const (
	ActionRetry         ActionKind = "retry"
	ActionStartOver     ActionKind = "start_over"
	ActionClose         ActionKind = "close"
	ActionConnectWallet ActionKind = "connect_wallet"
	ActionOpenLink      ActionKind = "open_link"
)

// Action is one of at most two recovery options attached to a mapped error
type Action struct {
	Kind ActionKind `json:"kind"`
	URL  string     `json:"url,omitempty"` // set only for ActionOpenLink
}

// Mapped is the structured classification of a raw fault
type Mapped struct {
	Code        Code    `json:"code"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	Recoverable bool    `json:"recoverable"`
	Primary     Action  `json:"primary_action"`
	Secondary   *Action `json:"secondary_action,omitempty"`
}

// CodedError carries a known code through component boundaries without
// interpreting it. Components below the flow engine wrap raw faults in
// CodedError only when the code is already certain (e.g. a transport
// reporting it cannot sign); they never classify free-form errors.
type CodedError struct {
	Code  Code
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return string(e.Code)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// WithCode wraps err with a known stable code
func WithCode(code Code, err error) error {
	return &CodedError{Code: code, Cause: err}
}

// ProviderError is a numeric wallet-provider error (JSON-RPC style)
type ProviderError struct {
	ProviderCode int
	Message      string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.ProviderCode, e.Message)
}

// Wallet-provider numeric codes (EIP-1193 / Phantom style)
const (
	providerUserRejected  = 4001
	providerUnauthorized  = 4100
	providerDisconnected  = 4900
	providerInternalError = -32603
	providerResourceBusy  = -32002
	providerTxRejected    = -32003
)

// Classify maps any raised fault to a Mapped error. It is total: every
// input, including nil-message and opaque faults, produces a result.
// Classification order: known stable code, then provider numeric code,
// then message keyword families in priority order, then Unknown.
func Classify(err error) Mapped {
	if err == nil {
		return build(Unknown)
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return build(coded.Code)
	}

	var provider *ProviderError
	if errors.As(err, &provider) {
		switch provider.ProviderCode {
		case providerUserRejected:
			return build(WalletRejected)
		case providerUnauthorized, providerDisconnected:
			return build(WalletNotConnected)
		case providerResourceBusy:
			return build(NetworkCongestion)
		case providerTxRejected:
			return build(TransactionFailed)
		case providerInternalError:
			return build(Unknown)
		}
	}

	return build(classifyMessage(err.Error()))
}

// classifyMessage inspects a fault message for known keyword families.
// Order matters: "insufficient" is ambiguous until disambiguated by the
// co-occurring currency keyword, and rejection keywords outrank the
// generic network family.
func classifyMessage(msg string) Code {
	m := strings.ToLower(msg)

	switch {
	case containsAny(m, "user rejected", "user denied", "rejected the request", "declined"):
		return WalletRejected
	case containsAny(m, "cancelled", "canceled", "aborted by user"):
		return UserCancelled
	case strings.Contains(m, "insufficient") && containsAny(m, "sol", "lamport", "gas", "fee", "rent"):
		return InsufficientGas
	case containsAny(m, "insufficient", "not enough balance", "balance too low"):
		return InsufficientBalance
	case containsAny(m, "blockhash not found", "blockhash expired", "block height exceeded"):
		return BlockhashExpired
	case containsAny(m, "congest", "rate limit", "too many requests", "429"):
		return NetworkCongestion
	case containsAny(m, "network", "connection refused", "connection reset", "timeout", "timed out", "unreachable", "no such host", "eof"):
		return NetworkError
	case containsAny(m, "expired", "deadline exceeded", "too old"):
		return IntentExpired
	case containsAny(m, "transaction failed", "transaction reverted", "simulation failed", "custom program error"):
		return TransactionFailed
	case containsAny(m, "not connected", "no wallet connected", "wallet disconnected"):
		return WalletNotConnected
	case containsAny(m, "not installed", "no provider", "wallet not found"):
		return WalletNotInstalled
	case containsAny(m, "invalid transaction", "failed to deserialize", "malformed"):
		return InvalidTransaction
	default:
		return Unknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Recoverable reports whether a retry of the same flow can plausibly
// succeed without external action. Only the two balance-insufficiency
// codes require the user to act outside the flow first.
func Recoverable(code Code) bool {
	return code != InsufficientBalance && code != InsufficientGas
}

func build(code Code) Mapped {
	m := Mapped{Code: code, Recoverable: Recoverable(code)}

	switch code {
	case WalletRejected:
		m.Title = "Request rejected"
		m.Message = "The wallet rejected the request. You can try again when you're ready."
		m.Primary = Action{Kind: ActionRetry}
		m.Secondary = &Action{Kind: ActionClose}
	case UserCancelled:
		m.Title = "Cancelled"
		m.Message = "The request was cancelled before completing."
		m.Primary = Action{Kind: ActionRetry}
		m.Secondary = &Action{Kind: ActionClose}
	case InsufficientBalance:
		m.Title = "Insufficient balance"
		m.Message = "Your wallet doesn't hold enough of the settlement currency for this support. Top up and come back; your progress is saved."
		m.Primary = Action{Kind: ActionClose}
	case InsufficientGas:
		m.Title = "Not enough SOL for fees"
		m.Message = "Your wallet needs a small amount of SOL to pay network fees. Top up and come back; your progress is saved."
		m.Primary = Action{Kind: ActionClose}
	case NetworkCongestion:
		m.Title = "Network is busy"
		m.Message = "The network is congested right now. Waiting a moment and retrying usually works."
		m.Primary = Action{Kind: ActionRetry}
		m.Secondary = &Action{Kind: ActionClose}
	case NetworkError:
		m.Title = "Connection problem"
		m.Message = "We couldn't reach the network. Check your connection and try again."
		m.Primary = Action{Kind: ActionRetry}
		m.Secondary = &Action{Kind: ActionClose}
	case BlockhashExpired:
		m.Title = "Transaction went stale"
		m.Message = "The transaction took too long and went stale. Retrying will build a fresh one."
		m.Primary = Action{Kind: ActionRetry}
	case IntentExpired:
		m.Title = "Support expired"
		m.Message = "This support request expired before it could complete. Start over to create a new one."
		m.Primary = Action{Kind: ActionStartOver}
	case TransactionFailed:
		m.Title = "Transaction failed"
		m.Message = "The transaction didn't go through. No funds were moved; you can retry."
		m.Primary = Action{Kind: ActionRetry}
		m.Secondary = &Action{Kind: ActionStartOver}
	case WalletNotConnected:
		m.Title = "Wallet not connected"
		m.Message = "Connect your wallet to continue."
		m.Primary = Action{Kind: ActionConnectWallet}
	case WalletNotInstalled:
		m.Title = "Wallet not found"
		m.Message = "No compatible wallet was found. Install one, then restart the flow."
		m.Primary = Action{Kind: ActionOpenLink, URL: "https://phantom.app/download"}
		m.Secondary = &Action{Kind: ActionClose}
	case InvalidTransaction:
		m.Title = "Invalid transaction"
		m.Message = "The transaction couldn't be processed as built. Start over to rebuild it."
		m.Primary = Action{Kind: ActionStartOver}
	default:
		m.Code = Unknown
		m.Recoverable = true
		m.Title = "Something went wrong"
		m.Message = "An unexpected error occurred. Retrying is safe."
		m.Primary = Action{Kind: ActionRetry}
		m.Secondary = &Action{Kind: ActionStartOver}
	}

	return m
}
