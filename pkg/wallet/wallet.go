package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

// TransportKind identifies which signer transport is active
type TransportKind string

const (
	TransportInProcess TransportKind = "in_process"        // local keypair, signs in this process
	TransportManaged   TransportKind = "managed_session"   // previously authorized bridge session
	TransportDeepLink  TransportKind = "external_deeplink" // external wallet app via deep link
)

// ErrNotSupported is returned by a transport for capabilities it does
// not have. Callers branch on capability, not on transport identity.
var ErrNotSupported = errors.New("operation not supported on this transport")

// ConnectResult is the outcome of a connect attempt. Either Address is
// set, or PendingRedirect is true and the OS is about to foreground an
// external wallet app; no address exists yet in that case.
type ConnectResult struct {
	Address         solana.PublicKey
	PendingRedirect bool
	RedirectURL     string
}

// Connection is the ephemeral, in-memory representation of the signer.
// It is owned exclusively by the Manager; other components read it and
// never mutate it.
type Connection struct {
	Address     solana.PublicKey
	Transport   TransportKind
	ConnectedAt time.Time
}

// EventKind is a transport-level connection event
type EventKind string

const (
	EventDisconnected   EventKind = "disconnected"
	EventAccountChanged EventKind = "account_changed"
)

// Event notifies the Manager of a connection change originating in the
// transport (e.g. the user revoked access in the wallet app).
type Event struct {
	Kind    EventKind
	Address solana.PublicKey // new address for EventAccountChanged
}

// Transport abstracts one signer transport behind a single capability
// surface. Methods the transport cannot perform return ErrNotSupported,
// wrapped with a stable code so the classifier maps it precisely.
type Transport interface {
	Kind() TransportKind

	// Available reports whether this transport can be used at all in
	// the current environment (provider installed, session on disk...).
	Available() bool

	Connect(ctx context.Context) (ConnectResult, error)
	Disconnect(ctx context.Context) error

	// SignTransaction signs an opaque base64 transaction payload and
	// returns the signed payload. It never broadcasts.
	SignTransaction(ctx context.Context, unsignedPayload string) (string, error)

	// SignAndSend signs and broadcasts atomically. Only the in-process
	// and managed transports can do this.
	SignAndSend(ctx context.Context, unsignedPayload string) (solana.Signature, error)

	SignMessage(ctx context.Context, msg []byte) (solana.Signature, error)
}

// EventSource is implemented by transports that can push connection
// events. Subscription is optional per transport.
type EventSource interface {
	Subscribe(fn func(Event))
}
