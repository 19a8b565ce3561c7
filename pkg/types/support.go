package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// IntentStatus defines the lifecycle state of a support intent
type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"    // Created, not yet signed
	IntentSigned     IntentStatus = "signed"     // Signature obtained, not yet broadcast
	IntentSubmitted  IntentStatus = "submitted"  // Broadcast to the network
	IntentConfirming IntentStatus = "confirming" // Awaiting network confirmation
	IntentCompleted  IntentStatus = "completed"  // Settled on-chain
	IntentFailed     IntentStatus = "failed"     // Terminally failed
	IntentExpired    IntentStatus = "expired"    // Expired before submission
)

// IsTerminal returns true if the status cannot change anymore
func (s IntentStatus) IsTerminal() bool {
	return s == IntentCompleted || s == IntentFailed || s == IntentExpired
}

// MicroUnitsPerToken is the number of base units in one display unit
// of the settlement currency (USDC-style 6 decimals).
const MicroUnitsPerToken = 1_000_000

// Amount is a settlement-currency amount in micro units.
type Amount uint64

// ParseAmount converts a display-unit decimal string (e.g. "3.00") to micro units.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount cannot be empty")
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("amount '%s' has more than 6 decimal places", s)
	}

	if whole == "" {
		whole = "0"
	}
	wholeVal, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount format: %w", err)
	}

	fracVal := uint64(0)
	if frac != "" {
		// Right-pad to 6 digits so "5" means 500000 micro units
		padded := frac + strings.Repeat("0", 6-len(frac))
		fracVal, err = strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount format: %w", err)
		}
	}

	const maxWhole = math.MaxUint64 / MicroUnitsPerToken
	if wholeVal > maxWhole || (wholeVal == maxWhole && fracVal > math.MaxUint64%MicroUnitsPerToken) {
		return 0, fmt.Errorf("amount '%s' is too large", s)
	}

	return Amount(wholeVal*MicroUnitsPerToken + fracVal), nil
}

// String formats the amount in display units
func (a Amount) String() string {
	whole := uint64(a) / MicroUnitsPerToken
	frac := uint64(a) % MicroUnitsPerToken
	if frac == 0 {
		return fmt.Sprintf("%d.00", whole)
	}
	s := fmt.Sprintf("%d.%06d", whole, frac)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "00"
	}
	return s
}

// Allocation is one (recipient, amount) pair within a support intent
type Allocation struct {
	RecipientID string `json:"recipient_id"`
	Amount      Amount `json:"amount"`
}

// SupportParams are the user-chosen parameters for one support flow.
// They are persisted so an interrupted flow can be re-populated without
// asking the user to re-enter anything.
type SupportParams struct {
	Allocations []Allocation `json:"allocations"`
}

// Total returns the sum of all allocation amounts
func (p SupportParams) Total() Amount {
	var total Amount
	for _, a := range p.Allocations {
		total += a.Amount
	}
	return total
}

// Validate checks that the params describe a sendable support
func (p SupportParams) Validate() error {
	if len(p.Allocations) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, a := range p.Allocations {
		if a.RecipientID == "" {
			return fmt.Errorf("recipient id is required")
		}
	}
	if p.Total() == 0 {
		return fmt.Errorf("total amount must be greater than 0")
	}
	return nil
}

// SupportIntent is one proposed transfer tracked by the backend.
// The client never mutates ID, UnsignedPayload or CreatedAt; it only
// advances the intent by calling backend operations.
type SupportIntent struct {
	ID              string       `json:"id"`
	Allocations     []Allocation `json:"allocations"`
	UnsignedPayload string       `json:"unsigned_payload"` // base64 transaction blob
	Status          IntentStatus `json:"status"`
	Signature       string       `json:"signature,omitempty"`
	MintAddress     string       `json:"mint_address,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// IsExpired returns true if the intent is past its signing deadline
func (i *SupportIntent) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Balances holds the two on-chain balances the flow cares about
type Balances struct {
	Settlement  Amount `json:"settlement"`   // settlement token, micro units
	GasLamports uint64 `json:"gas_lamports"` // native SOL, lamports
}
