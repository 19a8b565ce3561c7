package recovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"support-flow/pkg/backend"
	"support-flow/pkg/session"
	"support-flow/pkg/types"
)

// Staleness thresholds. Wallet-connect redirects normally complete
// within a minute, so five minutes bounds "user got distracted" without
// penalizing a slow OS hand-off. Intents carry a chain-side expiry, so
// thirty minutes is a client-side backstop well inside realistic intent
// lifetimes.
const (
	WalletConnectStaleness = 5 * time.Minute
	IntentStaleness        = 30 * time.Minute
)

// Status is one of the nine recovery outcomes
type Status string

const (
	NoSession            Status = "no_session"
	AlreadyCompleted     Status = "already_completed"
	AwaitingConfirmation Status = "awaiting_confirmation"
	ResumeSubmission     Status = "resume_submission"
	ResumeSigning        Status = "resume_signing"
	ResumeWalletConnect  Status = "resume_wallet_connect"
	Incomplete           Status = "incomplete"
	Expired              Status = "expired"
	OfflineRecovery      Status = "offline_recovery"
)

// Result describes what an interrupted flow should do next
type Result struct {
	Status            Status
	WalletConnectStep session.WalletConnectStep
	Params            *types.SupportParams
	IntentID          string
	UnsignedPayload   string
	Signature         string
}

// StatusClient is the one remote query recovery is allowed to make
type StatusClient interface {
	IntentStatus(ctx context.Context, intentID string) (*backend.StatusResult, error)
}

// Service decides, from the durable record plus one remote status
// query, which recovery outcome applies. Ambiguous stored state is
// treated as resumable, never silently discarded.
type Service struct {
	store  *session.Store
	client StatusClient
	now    func() time.Time
}

// NewService creates a recovery service
func NewService(store *session.Store, client StatusClient) *Service {
	return &Service{
		store:  store,
		client: client,
		now:    time.Now,
	}
}

// Recover inspects the stored session and returns the applicable
// outcome. OfflineRecovery is the only outcome that performs zero
// writes; Expired and AlreadyCompleted clear the stored state.
func (s *Service) Recover(ctx context.Context) (*Result, error) {
	record := s.store.Get()
	now := s.now()

	// An in-progress wallet connect takes precedence: the flow never
	// reached intent creation.
	if record.WalletConnectStep != "" {
		if record.WalletConnectStarted == nil || now.Sub(*record.WalletConnectStarted) > WalletConnectStaleness {
			if err := s.store.Clear(); err != nil {
				return nil, fmt.Errorf("failed to clear stale session: %w", err)
			}
			return &Result{Status: Expired}, nil
		}
		return &Result{
			Status:            ResumeWalletConnect,
			WalletConnectStep: record.WalletConnectStep,
			Params:            record.LastSupportParams,
		}, nil
	}

	if record.IsEmpty() {
		return &Result{Status: NoSession}, nil
	}

	if record.PendingIntentID != "" {
		if record.IntentCreatedAt == nil || now.Sub(*record.IntentCreatedAt) > IntentStaleness {
			if err := s.store.Clear(); err != nil {
				return nil, fmt.Errorf("failed to clear stale session: %w", err)
			}
			return &Result{Status: Expired}, nil
		}

		remote, err := s.client.IntentStatus(ctx, record.PendingIntentID)
		if err != nil {
			if errors.Is(err, backend.ErrIntentNotFound) {
				if clearErr := s.store.Clear(); clearErr != nil {
					return nil, fmt.Errorf("failed to clear session: %w", clearErr)
				}
				return &Result{Status: Expired}, nil
			}
			// Unreachable backend: do not clear anything; the user can
			// retry later without having lost state
			return &Result{Status: OfflineRecovery, IntentID: record.PendingIntentID}, nil
		}

		return s.fromRemoteStatus(record, remote)
	}

	// Only support parameters remain; offer to resume
	return &Result{Status: Incomplete, Params: record.LastSupportParams}, nil
}

func (s *Service) fromRemoteStatus(record session.Record, remote *backend.StatusResult) (*Result, error) {
	result := &Result{
		IntentID: record.PendingIntentID,
		Params:   record.LastSupportParams,
	}

	// Backend status casing varies across endpoints; normalize first
	switch types.IntentStatus(strings.ToLower(string(remote.Status))) {
	case types.IntentCompleted, "confirmed":
		if err := s.store.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear session: %w", err)
		}
		result.Status = AlreadyCompleted
		result.Signature = remote.Signature
	case types.IntentConfirming, types.IntentSubmitted, "processing":
		result.Status = AwaitingConfirmation
	case types.IntentSigned:
		result.Status = ResumeSubmission
		result.UnsignedPayload = remote.UnsignedPayload
	case types.IntentPending:
		result.Status = ResumeSigning
		result.UnsignedPayload = remote.UnsignedPayload
	case types.IntentExpired, types.IntentFailed:
		if err := s.store.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear session: %w", err)
		}
		result.Status = Expired
	default:
		// Conservative default for unrecognized statuses: offer to
		// resume rather than discard
		result.Status = Incomplete
	}

	return result, nil
}
