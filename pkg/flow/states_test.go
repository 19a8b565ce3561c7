package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionClosure(t *testing.T) {
	// the legal pairs, excluding the universal *->error rule
	legal := map[[2]Step]bool{
		{StepConnectWallet, StepWaitingForPhantom}:   true,
		{StepConnectWallet, StepCheckingBalance}:     true,
		{StepWaitingForPhantom, StepCheckingBalance}: true,
		{StepCheckingBalance, StepInsufficientFunds}: true,
		{StepCheckingBalance, StepValidationFailed}:  true,
		{StepCheckingBalance, StepReady}:             true,
		{StepInsufficientFunds, StepCheckingBalance}: true,
		{StepReady, StepCreatingIntent}:              true,
		{StepCreatingIntent, StepSigning}:            true,
		{StepSigning, StepSubmitting}:                true,
		{StepSubmitting, StepSuccess}:                true,
		{StepError, StepReady}:                       true,
	}

	for _, from := range Steps() {
		for _, to := range Steps() {
			want := legal[[2]Step{from, to}]
			if to == StepError {
				want = from != StepSuccess
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSuccessIsTerminal(t *testing.T) {
	assert.True(t, StepSuccess.IsTerminal())

	for _, s := range Steps() {
		if s == StepSuccess {
			continue
		}
		assert.False(t, s.IsTerminal(), "step %s", s)
	}
}
