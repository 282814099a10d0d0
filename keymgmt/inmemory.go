package keymgmt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"
)

const (
	symmetricKeySize = 32
	rsaKeyBits       = 2048
)

// InMemoryKeyManager generates its keys on first use and holds them in
// memory for the lifetime of the process. It implements every key manager
// capability, trusting only its own signing key. Keys do not survive a
// restart, which invalidates all outstanding tokens; use it for development
// and tests only.
type InMemoryKeyManager struct {
	mu        sync.Mutex
	symmetric []byte
	signing   *rsa.PrivateKey
}

// NewInMemoryKeyManager returns a manager with no keys generated yet.
func NewInMemoryKeyManager() *InMemoryKeyManager {
	return &InMemoryKeyManager{}
}

func (m *InMemoryKeyManager) SymmetricKey(_ context.Context, _ Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.symmetric == nil {
		key := make([]byte, symmetricKeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("keymgmt: failed to generate symmetric key: %w", err)
		}
		m.symmetric = key
	}
	return m.symmetric, nil
}

func (m *InMemoryKeyManager) SigningKey(_ context.Context, _ Context) (*rsa.PrivateKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signingKeyLocked()
}

func (m *InMemoryKeyManager) signingKeyLocked() (*rsa.PrivateKey, error) {
	if m.signing == nil {
		key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("keymgmt: failed to generate signing key: %w", err)
		}
		m.signing = key
	}
	return m.signing, nil
}

func (m *InMemoryKeyManager) PublicKey(ctx context.Context, keyCtx Context) (*rsa.PublicKey, error) {
	key, err := m.SigningKey(ctx, keyCtx)
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

// TrustedKeys returns only the manager's own public key. Single-node
// deployments verify their own tokens.
func (m *InMemoryKeyManager) TrustedKeys(ctx context.Context, keyCtx Context) (map[string]*rsa.PublicKey, error) {
	pub, err := m.PublicKey(ctx, keyCtx)
	if err != nil {
		return nil, err
	}
	kid, err := KeyID(pub)
	if err != nil {
		return nil, err
	}
	return map[string]*rsa.PublicKey{kid: pub}, nil
}

// RecipientKey returns the manager's own public key for any recipient id, so
// encrypted tokens round-trip within one process.
func (m *InMemoryKeyManager) RecipientKey(ctx context.Context, keyCtx Context, _ string) (*rsa.PublicKey, error) {
	return m.PublicKey(ctx, keyCtx)
}
