package wallet

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-flow/pkg/faults"
)

func testDeepLink() *DeepLinkTransport {
	return NewDeepLinkTransport(DeepLinkConfig{
		AppURL:      "https://support.example.com",
		RedirectURL: "supportflow://connected",
	})
}

func TestConnectURL(t *testing.T) {
	raw := testDeepLink().ConnectURL()

	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "https://phantom.app/ul/v1/connect?"))
	assert.Equal(t, "https://support.example.com", u.Query().Get("app_url"))
	assert.Equal(t, "supportflow://connected", u.Query().Get("redirect_link"))
	assert.Equal(t, "mainnet-beta", u.Query().Get("cluster"))
}

func TestConnectURLCustomBase(t *testing.T) {
	tr := NewDeepLinkTransport(DeepLinkConfig{
		BaseURL:     "https://wallet.example.com/ul/",
		AppURL:      "https://support.example.com",
		RedirectURL: "supportflow://connected",
		Cluster:     "devnet",
	})

	raw := tr.ConnectURL()
	assert.True(t, strings.HasPrefix(raw, "https://wallet.example.com/ul/connect?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "devnet", u.Query().Get("cluster"))
}

func TestDeepLinkConnectPendingRedirect(t *testing.T) {
	result, err := testDeepLink().Connect(context.Background())
	require.NoError(t, err)

	assert.True(t, result.PendingRedirect)
	assert.NotEmpty(t, result.RedirectURL)
	assert.True(t, result.Address.IsZero())
}

func TestDeepLinkUnconfiguredNotAvailable(t *testing.T) {
	tr := NewDeepLinkTransport(DeepLinkConfig{})
	assert.False(t, tr.Available())

	_, err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, faults.WalletNotInstalled, faults.Classify(err).Code)
}

func TestDeepLinkCapabilityErrors(t *testing.T) {
	tr := testDeepLink()
	ctx := context.Background()

	_, err := tr.SignTransaction(ctx, "payload")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSupported))
	assert.Equal(t, faults.WalletNotConnected, faults.Classify(err).Code)

	_, err = tr.SignAndSend(ctx, "payload")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSupported))
	assert.Equal(t, faults.InvalidTransaction, faults.Classify(err).Code)

	_, err = tr.SignMessage(ctx, []byte("hello"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSupported))
}
