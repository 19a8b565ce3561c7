package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
	}{
		{"3.00", 3_000_000},
		{"3", 3_000_000},
		{"0.5", 500_000},
		{".5", 500_000},
		{"0.000001", 1},
		{"100.123456", 100_123_456},
		{" 2.50 ", 2_500_000},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseAmountRejectsBadInput(t *testing.T) {
	bad := []string{"", "abc", "-3", "1.2345678", "1.2.3"}

	for _, in := range bad {
		_, err := ParseAmount(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseAmountOverflow(t *testing.T) {
	// the largest representable amount parses exactly
	got, err := ParseAmount("18446744073709.551615")
	require.NoError(t, err)
	assert.Equal(t, Amount(math.MaxUint64), got)

	// one micro unit more must error, never wrap around
	_, err = ParseAmount("18446744073709.551616")
	assert.Error(t, err)
	_, err = ParseAmount("18446744073710")
	assert.Error(t, err)
	_, err = ParseAmount("99999999999999999")
	assert.Error(t, err)
}

func TestAmountString(t *testing.T) {
	tests := []struct {
		in   Amount
		want string
	}{
		{3_000_000, "3.00"},
		{500_000, "0.5"},
		{1, "0.000001"},
		{100_123_456, "100.123456"},
		{0, "0.00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
	}
}

func TestSupportParamsValidate(t *testing.T) {
	valid := SupportParams{Allocations: []Allocation{{RecipientID: "creator-a", Amount: 1}}}
	assert.NoError(t, valid.Validate())

	assert.Error(t, SupportParams{}.Validate())
	assert.Error(t, SupportParams{Allocations: []Allocation{{Amount: 1}}}.Validate())
	assert.Error(t, SupportParams{Allocations: []Allocation{{RecipientID: "creator-a"}}}.Validate())
}

func TestSupportParamsTotal(t *testing.T) {
	params := SupportParams{Allocations: []Allocation{
		{RecipientID: "creator-a", Amount: 3_000_000},
		{RecipientID: "platform", Amount: 50_000},
	}}

	assert.Equal(t, Amount(3_050_000), params.Total())
}

func TestIntentIsExpired(t *testing.T) {
	now := time.Now()

	fresh := SupportIntent{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, fresh.IsExpired(now))

	stale := SupportIntent{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, stale.IsExpired(now))

	// no deadline means never expired client-side
	unbounded := SupportIntent{}
	assert.False(t, unbounded.IsExpired(now))
}

func TestIntentStatusIsTerminal(t *testing.T) {
	terminal := []IntentStatus{IntentCompleted, IntentFailed, IntentExpired}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "status %s", s)
	}

	live := []IntentStatus{IntentPending, IntentSigned, IntentSubmitted, IntentConfirming}
	for _, s := range live {
		assert.False(t, s.IsTerminal(), "status %s", s)
	}
}
