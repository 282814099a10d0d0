// Package token implements the paywall's JOSE token codec. Tokens are signed
// JWTs, optionally nested inside a JWE, carrying the paywall claims for one
// step of the payment flow. The symmetric generator covers single-node
// deployments with a shared secret; the asymmetric generator covers
// distributed topologies with per-node RSA keys and a trusted key set.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/square/go-jose.v2/jwt"

	paywall "github.com/lnpaywall/go-paywall"
)

// Context tags the purpose of a token. A token generated for one context
// never verifies under another, even with valid signatures.
type Context string

const (
	// ContextPayment tokens carry the preimage order between nodes in
	// distributed topologies. Always encrypted, since the order holds the
	// preimage.
	ContextPayment Context = "PAYMENT_TOKEN"
	// ContextInvoice tokens accompany a 402 response and let the client
	// poll settlement for its invoice.
	ContextInvoice Context = "INVOICE_TOKEN"
	// ContextSettlement tokens prove payment and unlock the resource until
	// the settlement expires.
	ContextSettlement Context = "SETTLEMENT_TOKEN"
)

// AllowedClockSkew is tolerated on the not-before check so nodes with
// slightly drifting clocks still accept each other's freshly issued tokens.
// Expiry is checked strictly; a token past its expire date is never accepted.
const AllowedClockSkew = 5 * time.Minute

// PreImageSize is the generated preimage length in bytes.
const PreImageSize = 32

// Claims is the paywall claim set. Exactly the fields relevant to the token's
// context are populated; the rest stay nil and are omitted from the wire
// form.
type Claims struct {
	jwt.Claims

	TokenType    Context                 `json:"tokenType"`
	Order        *paywall.PreImageOrder  `json:"order,omitempty"`
	Invoice      *paywall.MinimalInvoice `json:"min_inv,omitempty"`
	Settlement   *paywall.Settlement     `json:"settlement,omitempty"`
	RequestData  *paywall.RequestData    `json:"request,omitempty"`
	OrderRequest *paywall.OrderRequest   `json:"orderRequest,omitempty"`
}

// Generator creates and verifies paywall tokens.
type Generator interface {
	// GenerateToken signs (and for payment tokens encrypts) the claims.
	// The token context, expiry and registered claims are filled in here;
	// callers only populate the paywall claim fields. notBefore delays when
	// the token becomes valid; the zero time leaves the claim unset.
	// recipientID selects the encryption key in distributed setups and is
	// ignored otherwise.
	GenerateToken(ctx context.Context, tokenCtx Context, expire, notBefore time.Time, recipientID string, claims *Claims) (string, error)

	// ParseToken verifies the token against the expected context and
	// returns its claims. Failures are reported as *paywall.TokenError.
	ParseToken(ctx context.Context, tokenCtx Context, token string) (*Claims, error)
}

// GenPreImageData generates a fresh random preimage and its SHA-256 hash.
func GenPreImageData() (*paywall.PreImageData, error) {
	preImage := make([]byte, PreImageSize)
	if _, err := rand.Read(preImage); err != nil {
		return nil, fmt.Errorf("token: failed to generate preimage: %w", err)
	}
	hash := sha256.Sum256(preImage)
	return &paywall.PreImageData{PreImage: preImage, PreImageHash: hash[:]}, nil
}

// stampClaims fills the registered claim set before signing.
func stampClaims(claims *Claims, tokenCtx Context, expire, notBefore, now time.Time) {
	claims.TokenType = tokenCtx
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if !notBefore.IsZero() {
		claims.NotBefore = jwt.NewNumericDate(notBefore)
	}
	claims.Expiry = jwt.NewNumericDate(expire)
}

// verifyClaims checks the token context and time bounds. The expiry check is
// strict; only the not-before check tolerates AllowedClockSkew. Failures are
// reported as *paywall.TokenError.
func verifyClaims(claims *Claims, tokenCtx Context, now time.Time) error {
	if claims.TokenType != tokenCtx {
		return paywall.NewTokenError(paywall.TokenErrorInvalid,
			"token type %q does not match expected %q", claims.TokenType, tokenCtx)
	}
	if claims.Expiry == nil {
		return paywall.NewTokenError(paywall.TokenErrorInvalid, "token has no expiry")
	}
	if !now.Before(claims.Expiry.Time()) {
		return paywall.NewTokenError(paywall.TokenErrorExpired,
			"token expired at %s", claims.Expiry.Time().Format(time.RFC3339))
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time().Add(-AllowedClockSkew)) {
		return paywall.NewTokenError(paywall.TokenErrorNotYetValid,
			"token not valid before %s", claims.NotBefore.Time().Format(time.RFC3339))
	}
	return nil
}
