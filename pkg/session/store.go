package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"support-flow/pkg/types"
)

const (
	DefaultStorageFileName = ".support-flow-session.json"
)

// WalletConnectStep records how far an externally-redirected wallet
// connection got before the process was torn down.
type WalletConnectStep string

const (
	StepAwaitingConnect   WalletConnectStep = "awaiting_connect"
	StepAwaitingSignature WalletConnectStep = "awaiting_signature"
)

// Record is the durable state shared across process boundaries.
// It is the entire contract between an interrupted flow and a later
// activation: recovery must be derivable from these fields plus one
// remote status query.
//
// Invariant: PendingIntentID and IntentCreatedAt are set together and
// cleared together.
type Record struct {
	PendingIntentID      string               `json:"pending_intent_id,omitempty"`
	IntentCreatedAt      *time.Time           `json:"intent_created_at,omitempty"`
	WalletConnectStep    WalletConnectStep    `json:"wallet_connect_step,omitempty"`
	WalletConnectStarted *time.Time           `json:"wallet_connect_started,omitempty"`
	LastSupportParams    *types.SupportParams `json:"last_support_params,omitempty"`
}

// IsEmpty returns true if no flow state is stored at all
func (r Record) IsEmpty() bool {
	return r.PendingIntentID == "" && r.WalletConnectStep == "" && r.LastSupportParams == nil
}

// Store persists the recoverable session record as a plain JSON file.
// Writes are synchronous (write + rename before returning) because a
// deep-link navigation may tear the process down immediately after.
type Store struct {
	filePath string
	mu       sync.Mutex
	record   Record
}

// storageFile is the JSON structure on disk. Keys are plain and
// human-inspectable; the file is a user-visible recovery surface.
type storageFile struct {
	Session Record `json:"session"`
}

// NewStore creates a session store backed by the given file path.
// An empty path defaults to the user's home directory.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	s := &Store{filePath: filePath}

	if err := s.load(); err != nil {
		// Missing file just means no session yet
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file storageFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}

	s.record = file.Session
	return nil
}

// save must be called with s.mu held
func (s *Store) save() error {
	data, err := json.MarshalIndent(storageFile{Session: s.record}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Get returns a copy of the current record
func (s *Store) Get() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// SetPendingIntent records a newly created intent id. It must be called
// before the next network step so an interruption between intent
// creation and signing is always recoverable.
func (s *Store) SetPendingIntent(intentID string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record.PendingIntentID = intentID
	s.record.IntentCreatedAt = &createdAt
	return s.save()
}

// ClearPendingIntent removes the intent id and its creation time together
func (s *Store) ClearPendingIntent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record.PendingIntentID = ""
	s.record.IntentCreatedAt = nil
	return s.save()
}

// SetWalletConnectStep records an in-progress wallet connection. Callers
// must persist this before navigating to a deep link.
func (s *Store) SetWalletConnectStep(step WalletConnectStep, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record.WalletConnectStep = step
	s.record.WalletConnectStarted = &startedAt
	return s.save()
}

// ClearWalletConnectStep removes the stored wallet-connect progress
func (s *Store) ClearWalletConnectStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record.WalletConnectStep = ""
	s.record.WalletConnectStarted = nil
	return s.save()
}

// SetSupportParams remembers the user's last chosen recipients and amounts
func (s *Store) SetSupportParams(params types.SupportParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record.LastSupportParams = &params
	return s.save()
}

// Clear wipes all durable flow state. Called on terminal success,
// explicit start-over, or detected staleness.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = Record{}
	return s.save()
}

// FilePath returns the backing file path
func (s *Store) FilePath() string {
	return s.filePath
}
