package wallet

import (
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// KeypairTransport signs in-process with a local keypair. It is the
// closest analogue to an injected browser provider: always "connected"
// once the key is loaded, full capability surface.
type KeypairTransport struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	client     *rpc.Client
}

// NewKeypairTransport creates an in-process transport from a base58
// private key. rpcURL is required for SignAndSend broadcasting.
func NewKeypairTransport(privateKeyBase58, rpcURL string) (*KeypairTransport, error) {
	if privateKeyBase58 == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	var client *rpc.Client
	if rpcURL != "" {
		client = rpc.New(rpcURL)
	}

	return &KeypairTransport{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
		client:     client,
	}, nil
}

func (t *KeypairTransport) Kind() TransportKind { return TransportInProcess }

func (t *KeypairTransport) Available() bool { return true }

func (t *KeypairTransport) Connect(ctx context.Context) (ConnectResult, error) {
	return ConnectResult{Address: t.publicKey}, nil
}

func (t *KeypairTransport) Disconnect(ctx context.Context) error {
	// Nothing to revoke for a local keypair
	return nil
}

// SignTransaction deserializes the opaque payload, adds this keypair's
// signature and re-serializes. It never broadcasts.
func (t *KeypairTransport) SignTransaction(ctx context.Context, unsignedPayload string) (string, error) {
	tx, err := decodeTransaction(unsignedPayload)
	if err != nil {
		return "", err
	}

	if err := t.sign(tx); err != nil {
		return "", err
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize signed transaction: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signed), nil
}

// SignAndSend signs the payload and broadcasts it directly
func (t *KeypairTransport) SignAndSend(ctx context.Context, unsignedPayload string) (solana.Signature, error) {
	if t.client == nil {
		return solana.Signature{}, fmt.Errorf("RPC URL not configured")
	}

	tx, err := decodeTransaction(unsignedPayload)
	if err != nil {
		return solana.Signature{}, err
	}

	if err := t.sign(tx); err != nil {
		return solana.Signature{}, err
	}

	sig, err := t.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return sig, nil
}

func (t *KeypairTransport) SignMessage(ctx context.Context, msg []byte) (solana.Signature, error) {
	sig, err := t.privateKey.Sign(msg)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

func (t *KeypairTransport) sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(t.publicKey) {
			return &t.privateKey
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

func decodeTransaction(payload string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction payload encoding: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}

	return tx, nil
}
