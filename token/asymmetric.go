package token

import (
	"context"
	"crypto/rsa"
	"sync"
	"time"

	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/keymgmt"
)

// AsymmetricGenerator signs tokens with RS256 under the node's own key pair
// and verifies against the key manager's trusted key set, selected by the kid
// header. Payment tokens are encrypted to the recipient node with RSA-OAEP,
// so only the target node can recover the preimage.
type AsymmetricGenerator struct {
	keys  keymgmt.RecipientKeyManager
	clock func() time.Time

	kidMu sync.Mutex
	kid   string
}

// NewAsymmetricGenerator builds a generator over the given key manager.
func NewAsymmetricGenerator(keys keymgmt.RecipientKeyManager) *AsymmetricGenerator {
	return &AsymmetricGenerator{keys: keys, clock: time.Now}
}

// signingKeyID computes the local kid once and caches it. The local key pair
// is stable for the process lifetime.
func (g *AsymmetricGenerator) signingKeyID(ctx context.Context) (string, error) {
	g.kidMu.Lock()
	defer g.kidMu.Unlock()
	if g.kid != "" {
		return g.kid, nil
	}
	pub, err := g.keys.PublicKey(ctx, keymgmt.ContextPaywallTokens)
	if err != nil {
		return "", err
	}
	kid, err := keymgmt.KeyID(pub)
	if err != nil {
		return "", err
	}
	g.kid = kid
	return kid, nil
}

func (g *AsymmetricGenerator) GenerateToken(ctx context.Context, tokenCtx Context, expire, notBefore time.Time, recipientID string, claims *Claims) (string, error) {
	priv, err := g.keys.SigningKey(ctx, keymgmt.ContextPaywallTokens)
	if err != nil {
		return "", &paywall.InternalError{Op: "token.SigningKey", Err: err}
	}
	kid, err := g.signingKeyID(ctx)
	if err != nil {
		return "", &paywall.InternalError{Op: "token.KeyID", Err: err}
	}
	stampClaims(claims, tokenCtx, expire, notBefore, g.clock())

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: priv},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", kid),
	)
	if err != nil {
		return "", &paywall.InternalError{Op: "token.NewSigner", Err: err}
	}

	if tokenCtx == ContextPayment {
		recipientKey, err := g.keys.RecipientKey(ctx, keymgmt.ContextPaywallTokens, recipientID)
		if err != nil {
			return "", &paywall.InternalError{Op: "token.RecipientKey", Err: err}
		}
		enc, err := jose.NewEncrypter(
			jose.A256GCM,
			jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: recipientKey},
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

func (g *AsymmetricGenerator) ParseToken(ctx context.Context, tokenCtx Context, token string) (*Claims, error) {
	var claims Claims
	if tokenCtx == ContextPayment {
		nested, err := jwt.ParseSignedAndEncrypted(token)
		if err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "malformed encrypted token: %v", err)
		}
		priv, err := g.keys.SigningKey(ctx, keymgmt.ContextPaywallTokens)
		if err != nil {
			return nil, &paywall.InternalError{Op: "token.SigningKey", Err: err}
		}
		signed, err := nested.Decrypt(priv)
		if err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "failed to decrypt token: %v", err)
		}
		verifyKey, err := g.trustedKey(ctx, signed.Headers)
		if err != nil {
			return nil, err
		}
		if err := signed.Claims(verifyKey, &claims); err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "signature verification failed: %v", err)
		}
	} else {
		signed, err := jwt.ParseSigned(token)
		if err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "malformed token: %v", err)
		}
		verifyKey, err := g.trustedKey(ctx, signed.Headers)
		if err != nil {
			return nil, err
		}
		if err := signed.Claims(verifyKey, &claims); err != nil {
			return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "signature verification failed: %v", err)
		}
	}

	if err := verifyClaims(&claims, tokenCtx, g.clock()); err != nil {
		return nil, err
	}
	return &claims, nil
}

// trustedKey resolves the verification key named by the token's kid header
// from the trusted key set. A kid outside the trusted set is reported as
// NOT_FOUND, so callers can tell a key rollover from a forged token.
func (g *AsymmetricGenerator) trustedKey(ctx context.Context, headers []jose.Header) (*rsa.PublicKey, error) {
	if len(headers) == 0 || headers[0].KeyID == "" {
		return nil, paywall.NewTokenError(paywall.TokenErrorInvalid, "token carries no key id")
	}
	trusted, err := g.keys.TrustedKeys(ctx, keymgmt.ContextPaywallTokens)
	if err != nil {
		return nil, &paywall.InternalError{Op: "token.TrustedKeys", Err: err}
	}
	key, ok := trusted[headers[0].KeyID]
	if !ok {
		return nil, paywall.NewTokenError(paywall.TokenErrorNotFound, "token signed by unknown key %q", headers[0].KeyID)
	}
	return key, nil
}
