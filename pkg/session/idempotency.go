package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const (
	DefaultKeysFileName = ".support-flow-keys.json"
)

// Keys persists idempotency keys scoped to one logical side-effecting
// call (e.g. "submit:<intent-id>"). A retried network call reuses the
// same key instead of minting a new payment; a fresh scope always gets
// a fresh key.
//
// Keys survive process restart on purpose: a crash mid-submit followed
// by a resumed flow must still deduplicate against the first attempt.
type Keys struct {
	filePath string
	mu       sync.Mutex
	keys     map[string]string
}

type keysFile struct {
	Keys map[string]string `json:"keys"`
}

// NewKeys creates an idempotency key store backed by the given file.
// An empty path defaults to the user's home directory.
func NewKeys(filePath string) (*Keys, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultKeysFileName)
	}

	k := &Keys{
		filePath: filePath,
		keys:     make(map[string]string),
	}

	if err := k.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load idempotency keys: %w", err)
		}
	}

	return k, nil
}

func (k *Keys) load() error {
	data, err := os.ReadFile(k.filePath)
	if err != nil {
		return err
	}

	var file keysFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal idempotency keys: %w", err)
	}

	k.keys = file.Keys
	if k.keys == nil {
		k.keys = make(map[string]string)
	}
	return nil
}

// save must be called with k.mu held
func (k *Keys) save() error {
	data, err := json.MarshalIndent(keysFile{Keys: k.keys}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency keys: %w", err)
	}

	dir := filepath.Dir(k.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := k.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write idempotency keys: %w", err)
	}

	if err := os.Rename(tempFile, k.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// SubmitScope names the submit operation for one intent
func SubmitScope(intentID string) string {
	return "submit:" + intentID
}

// KeyFor returns the key for a scope, generating and persisting one on
// first use. Every retry of the same logical call gets the same key.
func (k *Keys) KeyFor(scope string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if key, exists := k.keys[scope]; exists {
		return key, nil
	}

	key := uuid.New().String()
	k.keys[scope] = key
	if err := k.save(); err != nil {
		return "", err
	}

	return key, nil
}

// Reset removes the key for a scope so the next call mints a fresh one
func (k *Keys) Reset(scope string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.keys[scope]; !exists {
		return nil
	}

	delete(k.keys, scope)
	return k.save()
}

// FilePath returns the backing file path
func (k *Keys) FilePath() string {
	return k.filePath
}
