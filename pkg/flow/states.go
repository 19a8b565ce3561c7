package flow

// Step is one state of the support flow
type Step string

const (
	StepConnectWallet     Step = "connect_wallet"
	StepWaitingForPhantom Step = "waiting_for_phantom"
	StepCheckingBalance   Step = "checking_balance"
	StepInsufficientFunds Step = "insufficient_funds"
	StepValidationFailed  Step = "validation_failed"
	StepReady             Step = "ready"
	StepCreatingIntent    Step = "creating_intent"
	StepSigning           Step = "signing"
	StepSubmitting        Step = "submitting"
	StepSuccess           Step = "success"
	StepError             Step = "error"
)

// IsTerminal returns true for states the flow never leaves on its own
func (s Step) IsTerminal() bool {
	return s == StepSuccess
}

// transitions is the closed set of legal state changes. Every step
// except success may additionally fail into StepError.
var transitions = map[Step][]Step{
	StepConnectWallet:     {StepWaitingForPhantom, StepCheckingBalance},
	StepWaitingForPhantom: {StepCheckingBalance},
	StepCheckingBalance:   {StepInsufficientFunds, StepValidationFailed, StepReady},
	StepInsufficientFunds: {StepCheckingBalance},
	StepValidationFailed:  {},
	StepReady:             {StepCreatingIntent},
	StepCreatingIntent:    {StepSigning},
	StepSigning:           {StepSubmitting},
	StepSubmitting:        {StepSuccess},
	StepError:             {StepReady},
	StepSuccess:           {},
}

// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to Step) bool {
	if to == StepError {
		return from != StepSuccess
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Steps returns every defined step, for transition-closure checks
func Steps() []Step {
	return []Step{
		StepConnectWallet,
		StepWaitingForPhantom,
		StepCheckingBalance,
		StepInsufficientFunds,
		StepValidationFailed,
		StepReady,
		StepCreatingIntent,
		StepSigning,
		StepSubmitting,
		StepSuccess,
		StepError,
	}
}
