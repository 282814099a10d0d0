package token

import (
	"context"
	"time"

	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/keymgmt"
)

// SymmetricGenerator signs tokens with HS256 using a shared secret and
// encrypts payment tokens with direct AES-256-GCM under the same key. All
// nodes in the deployment must share the key manager's secret.
type SymmetricGenerator struct {
	keys  keymgmt.SymmetricKeyManager
	clock func() time.Time
}

// NewSymmetricGenerator builds a generator over the given key manager.
func NewSymmetricGenerator(keys keymgmt.SymmetricKeyManager) *SymmetricGenerator {
	return &SymmetricGenerator{keys: keys, clock: time.Now}
}

func (g *SymmetricGenerator) GenerateToken(ctx context.Context, tokenCtx Context, expire, notBefore time.Time, _ string, claims *Claims) (string, error) {
	key, err := g.keys.SymmetricKey(ctx, keymgmt.ContextPaywallTokens)
	if err != nil {
		return "", &paywall.InternalError{Op: "token.SymmetricKey", Err: err}
	}
	stampClaims(claims, tokenCtx, expire, notBefore, g.clock())

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", &paywall.InternalError{Op: "token.NewSigner", Err: err}
	}

	// Payment tokens carry the preimage and must never travel in clear
	// text. The signed JWT is nested inside a JWE.
	if tokenCtx == ContextPayment {
		enc, err := jose.NewEncrypter(
			jose.A256GCM,
			jose.Recipient{Algorithm: jose.DIRECT, Key: key},
			(&jose.EncrypterOptions{}).WithContentType("JWT"),
		)
		if err != nil {
			return "", &paywall.InternalError{Op: "token.NewEncrypter", Err: err}
		}
		raw, err := jwt.SignedAndEncrypted(signer, enc).Claims(claims).CompactSerialize()
		if err != nil {
			return "", &paywall.InternalError{Op: "token.SignedAndEncrypted", Err: err}
		}
		return raw, nil
	}

	raw, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", &paywall.InternalError{Op: "token.Signed", Err: err}
	}
	return raw, nil
}

func (g *SymmetricGenerator) ParseToken(ctx context.Context, tokenCtx Context, token string) (*Claims, error) {
	key, err := g.keys.SymmetricKey(ctx, keymgmt.ContextPaywallTokens)
	if err != nil {
		return nil, &paywall.InternalError{Op: "token.SymmetricKey", Err: err}
	}

	var claims Claims
	if tokenCtx == ContextPayment {
		nested, err := jwt.ParseSignedAndEncrypted(token)
		if err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "malformed encrypted token: %v", err)
		}
		signed, err := nested.Decrypt(key)
		if err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "failed to decrypt token: %v", err)
		}
		if err := signed.Claims(key, &claims); err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "signature verification failed: %v", err)
		}
	} else {
		signed, err := jwt.ParseSigned(token)
		if err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "malformed token: %v", err)
		}
		if err := signed.Claims(key, &claims); err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "signature verification failed: %v", err)
		}
	}

	if err := verifyClaims(&claims, tokenCtx, g.clock()); err != nil {
		return nil, err
	}
	return &claims, nil
}
