package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"support-flow/pkg/backend"
	"support-flow/pkg/balance"
	"support-flow/pkg/faults"
	"support-flow/pkg/session"
	"support-flow/pkg/types"
	"support-flow/pkg/wallet"
)

// Backend is the slice of the backend client the engine drives
type Backend interface {
	CreateIntent(ctx context.Context, params types.SupportParams) (*types.SupportIntent, error)
	SubmitIntent(ctx context.Context, intentID, signedPayload, idempotencyKey string) (*backend.SubmitResult, error)
	LinkWallet(ctx context.Context, address string) error
}

// Wallet is the slice of the connection manager the engine drives
type Wallet interface {
	Connect(ctx context.Context) (wallet.ConnectResult, error)
	Connection() *wallet.Connection
	SignTransaction(ctx context.Context, unsignedPayload string) (string, error)
}

// Checker verifies balances and preflight before an intent is created
type Checker interface {
	CheckAndValidate(ctx context.Context, address solana.PublicKey, params types.SupportParams) (*balance.Result, error)
}

// Hooks let the caller own the UX without owning the state machine.
// All fields are optional.
type Hooks struct {
	// OnStep is invoked after every state change
	OnStep func(Step)
	// Navigate opens a deep-link URL; invoked only after the awaiting
	// step has been durably persisted
	Navigate func(url string)
}

// Engine is the support intent state machine. It walks the connect ->
// preflight -> create-intent -> sign -> submit -> confirm lifecycle,
// persisting progress at every externally visible step.
//
// One engine drives one logical flow; it is not safe for concurrent use.
type Engine struct {
	wallet  Wallet
	checker Checker
	backend Backend
	store   *session.Store
	keys    *session.Keys
	hooks   Hooks

	step              Step
	mapped            *faults.Mapped
	validationMessage string
	params            types.SupportParams
	balances          types.Balances
	intent            *types.SupportIntent
	signature         string
}

// NewEngine creates a flow engine in the connect_wallet state
func NewEngine(w Wallet, checker Checker, b Backend, store *session.Store, keys *session.Keys, hooks Hooks) *Engine {
	return &Engine{
		wallet:  w,
		checker: checker,
		backend: b,
		store:   store,
		keys:    keys,
		hooks:   hooks,
		step:    StepConnectWallet,
	}
}

// Step returns the current state
func (e *Engine) Step() Step { return e.step }

// Mapped returns the classified error held by the error and
// insufficient_funds states, nil otherwise.
func (e *Engine) Mapped() *faults.Mapped { return e.mapped }

// ValidationMessage returns the backend's preflight message when the
// flow stopped at validation_failed.
func (e *Engine) ValidationMessage() string { return e.validationMessage }

// Intent returns the created intent, if any
func (e *Engine) Intent() *types.SupportIntent { return e.intent }

// Signature returns the settlement signature after success
func (e *Engine) Signature() string { return e.signature }

// Params returns the committed support parameters
func (e *Engine) Params() types.SupportParams { return e.params }

// Start runs the flow up to the ready state (or stops earlier at
// waiting_for_phantom, insufficient_funds, validation_failed or error).
// The caller confirms at ready via Confirm.
func (e *Engine) Start(ctx context.Context, params types.SupportParams) error {
	if err := params.Validate(); err != nil {
		return e.fail(err)
	}
	e.params = params

	// Persist the chosen parameters first so any interruption can
	// re-populate them without re-asking
	if err := e.store.SetSupportParams(params); err != nil {
		return e.fail(err)
	}

	if e.wallet.Connection() == nil {
		if done, err := e.connect(ctx); done || err != nil {
			return err
		}
	}

	return e.checkBalance(ctx)
}

// connect runs the connect_wallet entry action. Returns done=true when
// the flow suspended on a deep-link redirect.
func (e *Engine) connect(ctx context.Context) (bool, error) {
	result, err := e.wallet.Connect(ctx)
	if err != nil {
		return false, e.fail(err)
	}

	if result.PendingRedirect {
		// Persist before navigating: the OS may tear this process down
		// the moment the wallet app foregrounds
		if err := e.store.SetWalletConnectStep(session.StepAwaitingConnect, time.Now()); err != nil {
			return false, e.fail(err)
		}
		if err := e.transition(StepWaitingForPhantom); err != nil {
			return false, err
		}
		if e.hooks.Navigate != nil {
			e.hooks.Navigate(result.RedirectURL)
		}
		return true, nil
	}

	// Reactivation after a redirect lands here once the wallet reports
	// connected; the stored step is cleared before moving on
	if err := e.store.ClearWalletConnectStep(); err != nil {
		return false, e.fail(err)
	}

	// Best-effort association; never blocks the flow
	_ = e.backend.LinkWallet(ctx, result.Address.String())

	return false, nil
}

// checkBalance runs the checking_balance state and branches
func (e *Engine) checkBalance(ctx context.Context) error {
	if err := e.transition(StepCheckingBalance); err != nil {
		return err
	}

	conn := e.wallet.Connection()
	if conn == nil {
		return e.fail(faults.WithCode(faults.WalletNotConnected, errors.New("no wallet connected")))
	}

	result, err := e.checker.CheckAndValidate(ctx, conn.Address, e.params)
	if err != nil {
		return e.fail(err)
	}
	e.balances = result.Balances

	if !result.Sufficient {
		code := faults.InsufficientBalance
		if result.GasShort && !result.SettlementShort {
			code = faults.InsufficientGas
		}
		if err := e.transition(StepInsufficientFunds); err != nil {
			return err
		}
		mapped := faults.Classify(faults.WithCode(code, errors.New("on-chain balance below requested total")))
		e.mapped = &mapped
		return nil
	}

	if result.PreflightRan && !result.PreflightAllowed {
		if err := e.transition(StepValidationFailed); err != nil {
			return err
		}
		e.validationMessage = result.PreflightMessage
		return nil
	}

	return e.transition(StepReady)
}

// RecheckBalance re-runs the balance check after the user topped up
func (e *Engine) RecheckBalance(ctx context.Context) error {
	if e.step != StepInsufficientFunds {
		return fmt.Errorf("cannot recheck balance from state %s", e.step)
	}
	e.mapped = nil
	return e.checkBalance(ctx)
}

// Confirm executes the committed flow: create intent, sign, submit.
// Only legal from ready; the user has re-affirmed the allocations.
func (e *Engine) Confirm(ctx context.Context) error {
	if e.step != StepReady {
		return fmt.Errorf("cannot confirm from state %s", e.step)
	}

	if err := e.createIntent(ctx); err != nil {
		return err
	}
	return e.signAndSubmit(ctx)
}

func (e *Engine) createIntent(ctx context.Context) error {
	if err := e.transition(StepCreatingIntent); err != nil {
		return err
	}

	intent, err := e.backend.CreateIntent(ctx, e.params)
	if err != nil {
		return e.fail(err)
	}

	// Persist the id before any further network call, so a crash
	// between creation and signing always recovers as resume_signing
	if err := e.store.SetPendingIntent(intent.ID, intent.CreatedAt); err != nil {
		return e.fail(err)
	}

	e.intent = intent
	return nil
}

func (e *Engine) signAndSubmit(ctx context.Context) error {
	if err := e.transition(StepSigning); err != nil {
		return err
	}

	if e.intent.IsExpired(time.Now()) {
		return e.fail(faults.WithCode(faults.IntentExpired, fmt.Errorf("intent %s expired before signing", e.intent.ID)))
	}

	// The signed payload stays in memory only; it is sensitive and
	// short-lived
	signedPayload, err := e.wallet.SignTransaction(ctx, e.intent.UnsignedPayload)
	if err != nil {
		return e.fail(err)
	}

	return e.submit(ctx, signedPayload)
}

func (e *Engine) submit(ctx context.Context, signedPayload string) error {
	if err := e.transition(StepSubmitting); err != nil {
		return err
	}

	key, err := e.keys.KeyFor(session.SubmitScope(e.intent.ID))
	if err != nil {
		return e.fail(err)
	}

	result, err := e.backend.SubmitIntent(ctx, e.intent.ID, signedPayload, key)
	if err != nil {
		return e.fail(err)
	}

	switch result.Status {
	case types.IntentCompleted, types.IntentConfirming, types.IntentSubmitted, "processing":
		return e.succeed(result.Signature)
	case types.IntentFailed:
		msg := result.Message
		if msg == "" {
			msg = "submission failed"
		}
		return e.fail(faults.WithCode(faults.TransactionFailed, errors.New(msg)))
	default:
		return e.fail(fmt.Errorf("unexpected submit status: %s", result.Status))
	}
}

func (e *Engine) succeed(signature string) error {
	if err := e.transition(StepSuccess); err != nil {
		return err
	}
	e.signature = signature

	// Terminal success clears every piece of durable flow state
	if err := e.store.Clear(); err != nil {
		return fmt.Errorf("flow succeeded but session cleanup failed: %w", err)
	}
	if e.intent != nil {
		if err := e.keys.Reset(session.SubmitScope(e.intent.ID)); err != nil {
			return fmt.Errorf("flow succeeded but key cleanup failed: %w", err)
		}
	}
	return nil
}

// Retry leaves a recoverable error state back to ready. The user must
// re-confirm before anything is re-submitted; nothing retries silently.
func (e *Engine) Retry() error {
	if e.step != StepError {
		return fmt.Errorf("cannot retry from state %s", e.step)
	}
	if e.mapped != nil && !e.mapped.Recoverable {
		return fmt.Errorf("error %s is not recoverable by retry", e.mapped.Code)
	}

	e.mapped = nil
	e.intent = nil
	return e.transition(StepReady)
}

// StartOver abandons the flow: durable session state and the intent's
// idempotency scope are cleared. An already-submitted transaction is
// left alone; in-flight backend calls complete and are ignored.
func (e *Engine) StartOver() error {
	if e.intent != nil {
		if err := e.keys.Reset(session.SubmitScope(e.intent.ID)); err != nil {
			return fmt.Errorf("failed to reset idempotency scope: %w", err)
		}
	}
	if err := e.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	e.step = StepConnectWallet
	e.mapped = nil
	e.validationMessage = ""
	e.intent = nil
	e.signature = ""
	return nil
}

// ResumeSigning continues a flow that was interrupted after intent
// creation. The stored parameters are already committed; the user is
// not asked to reconfirm amounts.
func (e *Engine) ResumeSigning(ctx context.Context, intentID, unsignedPayload string, params types.SupportParams) error {
	e.seed(StepSigning, intentID, unsignedPayload, params)

	if e.wallet.Connection() == nil {
		if _, err := e.wallet.Connect(ctx); err != nil {
			return e.fail(err)
		}
	}

	signedPayload, err := e.wallet.SignTransaction(ctx, e.intent.UnsignedPayload)
	if err != nil {
		return e.fail(err)
	}
	return e.submit(ctx, signedPayload)
}

// ResumeSubmission continues a flow whose signature was obtained but
// whose submission never completed. The payload is re-signed (signed
// payloads are never persisted) and re-submitted under the original
// idempotency key, so the backend deduplicates against any earlier
// attempt that did land.
func (e *Engine) ResumeSubmission(ctx context.Context, intentID, unsignedPayload string, params types.SupportParams) error {
	return e.ResumeSigning(ctx, intentID, unsignedPayload, params)
}

// seed reconstructs in-memory state for a resumed flow. This is not a
// transition: the previous process is gone and the durable record is
// the only carry-over.
func (e *Engine) seed(step Step, intentID, unsignedPayload string, params types.SupportParams) {
	createdAt := time.Now()
	if rec := e.store.Get(); rec.IntentCreatedAt != nil {
		createdAt = *rec.IntentCreatedAt
	}

	e.params = params
	e.intent = &types.SupportIntent{
		ID:              intentID,
		Allocations:     params.Allocations,
		UnsignedPayload: unsignedPayload,
		Status:          types.IntentPending,
		CreatedAt:       createdAt,
	}
	e.setStep(step)
}

// transition moves to the next state, enforcing the closed table
func (e *Engine) transition(to Step) error {
	if !CanTransition(e.step, to) {
		return fmt.Errorf("illegal transition %s -> %s", e.step, to)
	}
	e.setStep(to)
	return nil
}

func (e *Engine) setStep(to Step) {
	e.step = to
	if e.hooks.OnStep != nil {
		e.hooks.OnStep(to)
	}
}

// fail classifies the fault exactly once and enters the error state.
// Components below the engine never interpret errors; this is the sole
// point where raw faults become user-facing classifications.
func (e *Engine) fail(err error) error {
	mapped := faults.Classify(err)
	e.mapped = &mapped
	e.setStep(StepError)
	return err
}
