package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"support-flow/pkg/faults"
)

// Manager owns the wallet connection. It selects a transport in
// priority order (already-authorized managed session, in-process
// provider, external deep link on mobile), tracks the connected
// address, and reacts to transport events. All connection state is
// mutated here and nowhere else.
type Manager struct {
	platform   Platform
	transports []Transport

	mu     sync.RWMutex
	active Transport
	conn   *Connection
}

// NewManager creates a connection manager over the given transports.
// Transports must be listed in selection priority order.
func NewManager(platform Platform, transports ...Transport) *Manager {
	m := &Manager{
		platform:   platform,
		transports: transports,
	}

	for _, t := range transports {
		if src, ok := t.(EventSource); ok {
			src.Subscribe(m.handleEvent)
		}
	}

	return m
}

// Connection returns a copy of the current connection, or nil when
// disconnected. Callers must re-fetch rather than cache it across
// suspension points; a disconnect event can invalidate it at any time.
func (m *Manager) Connection() *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return nil
	}
	c := *m.conn
	return &c
}

// Connect attempts each transport in priority order. A deep-link
// transport is only eligible on mobile; on desktop with no other
// transport available the install page URL is surfaced in the error.
func (m *Manager) Connect(ctx context.Context) (ConnectResult, error) {
	for _, t := range m.transports {
		if !t.Available() {
			continue
		}
		if t.Kind() == TransportDeepLink && m.platform != PlatformMobile {
			continue
		}

		result, err := t.Connect(ctx)
		if err != nil {
			// An unauthorized managed session just means we fall
			// through to the next transport
			continue
		}

		if result.PendingRedirect {
			// No address yet; the external app now owns the handshake
			m.mu.Lock()
			m.active = t
			m.conn = nil
			m.mu.Unlock()
			return result, nil
		}

		m.mu.Lock()
		m.active = t
		m.conn = &Connection{
			Address:     result.Address,
			Transport:   t.Kind(),
			ConnectedAt: time.Now(),
		}
		m.mu.Unlock()
		return result, nil
	}

	return ConnectResult{}, faults.WithCode(faults.WalletNotConnected,
		fmt.Errorf("no wallet available; install one from %s", InstallURL))
}

// Disconnect revokes the active transport best-effort. Local connection
// state is always cleared, even if the revoke call fails.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	active := m.active
	m.active = nil
	m.conn = nil
	m.mu.Unlock()

	if active == nil {
		return nil
	}
	if err := active.Disconnect(ctx); err != nil {
		return fmt.Errorf("revoke failed (local state cleared): %w", err)
	}
	return nil
}

// SignTransaction signs the opaque payload on the active transport.
// It does not broadcast.
func (m *Manager) SignTransaction(ctx context.Context, unsignedPayload string) (string, error) {
	t, err := m.requireTransport()
	if err != nil {
		return "", err
	}
	return t.SignTransaction(ctx, unsignedPayload)
}

// SignAndSend signs and broadcasts atomically on the active transport
func (m *Manager) SignAndSend(ctx context.Context, unsignedPayload string) (solana.Signature, error) {
	t, err := m.requireTransport()
	if err != nil {
		return solana.Signature{}, err
	}
	return t.SignAndSend(ctx, unsignedPayload)
}

// SignMessage signs raw bytes on the active transport
func (m *Manager) SignMessage(ctx context.Context, msg []byte) (solana.Signature, error) {
	t, err := m.requireTransport()
	if err != nil {
		return solana.Signature{}, err
	}
	return t.SignMessage(ctx, msg)
}

func (m *Manager) requireTransport() (Transport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil || m.conn == nil {
		return nil, faults.WithCode(faults.WalletNotConnected, fmt.Errorf("no wallet connected"))
	}
	return m.active, nil
}

// handleEvent reacts to transport-level events. A disconnect clears the
// address immediately, even mid-flow.
func (m *Manager) handleEvent(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind {
	case EventDisconnected:
		m.conn = nil
		m.active = nil
	case EventAccountChanged:
		if m.conn != nil {
			m.conn.Address = ev.Address
			m.conn.ConnectedAt = time.Now()
		}
	}
}

// AdoptConnection installs a connection established out of band (a
// deep-link approval recovered on reactivation).
func (m *Manager) AdoptConnection(t Transport, address solana.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = t
	m.conn = &Connection{
		Address:     address,
		Transport:   t.Kind(),
		ConnectedAt: time.Now(),
	}
}
