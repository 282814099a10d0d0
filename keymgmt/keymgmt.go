// Package keymgmt defines the key manager capabilities the token codec
// depends on and an in-memory generated-key implementation for development
// and tests. Production deployments implement these interfaces against their
// own key storage.
package keymgmt

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// Context scopes keys to a usage domain so one manager can serve multiple
// token classes with distinct keys.
type Context string

// ContextPaywallTokens is the key context used by the paywall token codec.
const ContextPaywallTokens Context = "PAYWALL_TOKENS"

// SymmetricKeyManager provides the shared secret used for HS256 signing and
// direct AES-GCM encryption in single-node deployments.
type SymmetricKeyManager interface {
	SymmetricKey(ctx context.Context, keyCtx Context) ([]byte, error)
}

// AsymmetricKeyManager provides the local RSA key pair used for RS256
// signing, plus the set of trusted peer keys for verification, keyed by
// key id.
type AsymmetricKeyManager interface {
	SigningKey(ctx context.Context, keyCtx Context) (*rsa.PrivateKey, error)
	PublicKey(ctx context.Context, keyCtx Context) (*rsa.PublicKey, error)
	TrustedKeys(ctx context.Context, keyCtx Context) (map[string]*rsa.PublicKey, error)
}

// RecipientKeyManager resolves the encryption key of a named recipient in
// distributed topologies where payment tokens are encrypted to another node.
type RecipientKeyManager interface {
	AsymmetricKeyManager
	RecipientKey(ctx context.Context, keyCtx Context, recipientID string) (*rsa.PublicKey, error)
}

// KeyID derives the stable identifier for a public key carried in the kid
// header of signed tokens.
func KeyID(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("keymgmt: failed to serialize public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}
