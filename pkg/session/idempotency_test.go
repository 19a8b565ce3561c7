package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeys(t *testing.T) *Keys {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.json")
	keys, err := NewKeys(path)
	require.NoError(t, err)
	return keys
}

func TestKeyForSameScopeSameKey(t *testing.T) {
	keys := newTestKeys(t)

	scope := SubmitScope("si_123")
	first, err := keys.KeyFor(scope)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// every retry of the same call reuses the key
	for i := 0; i < 5; i++ {
		key, err := keys.KeyFor(scope)
		require.NoError(t, err)
		assert.Equal(t, first, key)
	}
}

func TestKeyForFreshScopeFreshKey(t *testing.T) {
	keys := newTestKeys(t)

	a, err := keys.KeyFor(SubmitScope("si_a"))
	require.NoError(t, err)
	b, err := keys.KeyFor(SubmitScope("si_b"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestKeysSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	keys, err := NewKeys(path)
	require.NoError(t, err)

	scope := SubmitScope("si_123")
	first, err := keys.KeyFor(scope)
	require.NoError(t, err)

	// a crash mid-submit then a resumed flow must reuse the same key
	reloaded, err := NewKeys(path)
	require.NoError(t, err)

	key, err := reloaded.KeyFor(scope)
	require.NoError(t, err)
	assert.Equal(t, first, key)
}

func TestResetMintsNewKey(t *testing.T) {
	keys := newTestKeys(t)

	scope := SubmitScope("si_123")
	first, err := keys.KeyFor(scope)
	require.NoError(t, err)

	require.NoError(t, keys.Reset(scope))

	second, err := keys.KeyFor(scope)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestResetUnknownScopeIsNoop(t *testing.T) {
	keys := newTestKeys(t)
	assert.NoError(t, keys.Reset(SubmitScope("never-seen")))
}

func TestSubmitScope(t *testing.T) {
	assert.Equal(t, "submit:si_123", SubmitScope("si_123"))
}
