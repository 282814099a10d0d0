package token

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/keymgmt"
)

func TestGenPreImageData(t *testing.T) {
	first, err := GenPreImageData()
	if err != nil {
		t.Fatalf("GenPreImageData: %v", err)
	}
	if len(first.PreImage) != PreImageSize {
		t.Errorf("preimage length = %d, want %d", len(first.PreImage), PreImageSize)
	}
	if len(first.PreImageHash) != 32 {
		t.Errorf("hash length = %d, want 32", len(first.PreImageHash))
	}

	second, err := GenPreImageData()
	if err != nil {
		t.Fatalf("GenPreImageData: %v", err)
	}
	if bytes.Equal(first.PreImageHash, second.PreImageHash) {
		t.Error("two generated preimages share the same hash")
	}
}

func generators(t *testing.T) map[string]Generator {
	t.Helper()
	keys := keymgmt.NewInMemoryKeyManager()
	return map[string]Generator{
		"symmetric":  NewSymmetricGenerator(keys),
		"asymmetric": NewAsymmetricGenerator(keys),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	requestData := &paywall.RequestData{SignificantData: []byte("digest"), RequestDate: time.Now()}

	for name, g := range generators(t) {
		t.Run(name, func(t *testing.T) {
			claims := &Claims{
				Invoice:     &paywall.MinimalInvoice{PreImageHash: []byte("hash-1")},
				RequestData: requestData,
			}
			raw, err := g.GenerateToken(ctx, ContextInvoice, time.Now().Add(time.Hour), time.Time{}, "", claims)
			if err != nil {
				t.Fatalf("GenerateToken: %v", err)
			}

			parsed, err := g.ParseToken(ctx, ContextInvoice, raw)
			if err != nil {
				t.Fatalf("ParseToken: %v", err)
			}
			if parsed.TokenType != ContextInvoice {
				t.Errorf("token type = %q, want %q", parsed.TokenType, ContextInvoice)
			}
			if parsed.Invoice == nil || !bytes.Equal(parsed.Invoice.PreImageHash, []byte("hash-1")) {
				t.Error("invoice claim did not survive the round trip")
			}
			if parsed.RequestData == nil || !parsed.RequestData.Equal(*requestData) {
				t.Error("request data claim did not survive the round trip")
			}
			if parsed.ID == "" {
				t.Error("token id claim missing")
			}
		})
	}
}

func TestTokenWrongContext(t *testing.T) {
	ctx := context.Background()
	for name, g := range generators(t) {
		t.Run(name, func(t *testing.T) {
			raw, err := g.GenerateToken(ctx, ContextInvoice, time.Now().Add(time.Hour), time.Time{}, "", &Claims{})
			if err != nil {
				t.Fatalf("GenerateToken: %v", err)
			}
			_, err = g.ParseToken(ctx, ContextSettlement, raw)
			var tokenErr *paywall.TokenError
			if !errors.As(err, &tokenErr) || tokenErr.Reason != paywall.TokenErrorInvalid {
				t.Fatalf("wrong-context parse error = %v, want INVALID token error", err)
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	ctx := context.Background()
	keys := keymgmt.NewInMemoryKeyManager()
	g := NewSymmetricGenerator(keys)

	// A token that expired even a moment ago must be rejected.
	raw, err := g.GenerateToken(ctx, ContextInvoice, time.Now().Add(-time.Second), time.Time{}, "", &Claims{})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	_, err = g.ParseToken(ctx, ContextInvoice, raw)
	var tokenErr *paywall.TokenError
	if !errors.As(err, &tokenErr) || tokenErr.Reason != paywall.TokenErrorExpired {
		t.Fatalf("expired parse error = %v, want EXPIRED token error", err)
	}
	if !errors.Is(err, paywall.ErrTokenExpired) {
		t.Error("expired token error should match ErrTokenExpired")
	}

	// A one hour token parses halfway through its validity window but is
	// rejected one minute past it.
	raw, err = g.GenerateToken(ctx, ContextInvoice, time.Now().Add(time.Hour), time.Time{}, "", &Claims{})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	g.clock = func() time.Time { return time.Now().Add(30 * time.Minute) }
	if _, err := g.ParseToken(ctx, ContextInvoice, raw); err != nil {
		t.Fatalf("token inside its validity window should parse, got %v", err)
	}
	g.clock = func() time.Time { return time.Now().Add(time.Hour + time.Minute) }
	_, err = g.ParseToken(ctx, ContextInvoice, raw)
	if !errors.As(err, &tokenErr) || tokenErr.Reason != paywall.TokenErrorExpired {
		t.Fatalf("parse one minute past expiry = %v, want EXPIRED token error", err)
	}
}

func TestTokenNotYetValid(t *testing.T) {
	ctx := context.Background()
	g := NewSymmetricGenerator(keymgmt.NewInMemoryKeyManager())

	// A token that only becomes valid in an hour must be rejected now.
	raw, err := g.GenerateToken(ctx, ContextInvoice, time.Now().Add(2*time.Hour), time.Now().Add(time.Hour), "", &Claims{})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	_, err = g.ParseToken(ctx, ContextInvoice, raw)
	var tokenErr *paywall.TokenError
	if !errors.As(err, &tokenErr) || tokenErr.Reason != paywall.TokenErrorNotYetValid {
		t.Fatalf("premature parse error = %v, want NOT_YET_VALID token error", err)
	}

	// Inside the allowed clock skew a nearly valid token parses.
	raw, err = g.GenerateToken(ctx, ContextInvoice, time.Now().Add(2*time.Hour), time.Now().Add(AllowedClockSkew-time.Minute), "", &Claims{})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := g.ParseToken(ctx, ContextInvoice, raw); err != nil {
		t.Fatalf("token not-before within clock skew should parse, got %v", err)
	}
}

func TestPaymentTokenEncrypted(t *testing.T) {
	ctx := context.Background()
	order := &paywall.PreImageOrder{
		Order: paywall.Order{
			PreImageHash: []byte("hash-1"),
			OrderAmount:  paywall.NewBTC(10),
			ExpireDate:   time.Now().Add(time.Hour),
		},
		PreImage: []byte("secret-preimage"),
	}

	for name, g := range generators(t) {
		t.Run(name, func(t *testing.T) {
			raw, err := g.GenerateToken(ctx, ContextPayment, time.Now().Add(time.Hour), time.Time{}, "central-node", &Claims{Order: order})
			if err != nil {
				t.Fatalf("GenerateToken: %v", err)
			}
			// An encrypted token must not leak the preimage in clear text.
			if bytes.Contains([]byte(raw), []byte("secret-preimage")) {
				t.Error("payment token leaks the preimage")
			}

			parsed, err := g.ParseToken(ctx, ContextPayment, raw)
			if err != nil {
				t.Fatalf("ParseToken: %v", err)
			}
			if parsed.Order == nil || !bytes.Equal(parsed.Order.PreImage, order.PreImage) {
				t.Error("order claim did not survive the encrypted round trip")
			}
		})
	}
}

func TestAsymmetricRejectsUnknownKey(t *testing.T) {
	ctx := context.Background()
	signer := NewAsymmetricGenerator(keymgmt.NewInMemoryKeyManager())
	verifier := NewAsymmetricGenerator(keymgmt.NewInMemoryKeyManager())

	raw, err := signer.GenerateToken(ctx, ContextSettlement, time.Now().Add(time.Hour), time.Time{}, "", &Claims{})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	// The signer's key is not in the verifier's trusted set; that is a key
	// resolution failure, not a forged token.
	_, err = verifier.ParseToken(ctx, ContextSettlement, raw)
	var tokenErr *paywall.TokenError
	if !errors.As(err, &tokenErr) || tokenErr.Reason != paywall.TokenErrorNotFound {
		t.Fatalf("unknown key parse error = %v, want NOT_FOUND token error", err)
	}
	if !errors.Is(err, paywall.ErrTokenNotFound) {
		t.Error("unknown key error should match ErrTokenNotFound")
	}
}

func TestSymmetricRejectsTamperedToken(t *testing.T) {
	ctx := context.Background()
	g := NewSymmetricGenerator(keymgmt.NewInMemoryKeyManager())

	raw, err := g.GenerateToken(ctx, ContextInvoice, time.Now().Add(time.Hour), time.Time{}, "", &Claims{})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	tampered := raw[:len(raw)-2] + "xx"
	if _, err := g.ParseToken(ctx, ContextInvoice, tampered); err == nil {
		t.Fatal("tampered token should not parse")
	}
}
