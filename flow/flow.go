package flow

import (
	"context"
	"net/http"
	"time"

	paywall "github.com/lnpaywall/go-paywall"
)

// PaymentFlow is the per-request payment state machine. Instances are
// cheap, single-use and not safe for concurrent use; durable state lives in
// the payment handler behind them.
type PaymentFlow interface {
	// IsPaymentRequired reports whether the request must be paid for. It
	// returns false only when the request carries a settlement token that
	// matches the request fingerprint and is inside its validity window.
	IsPaymentRequired(ctx context.Context) (bool, error)

	// RequestPayment starts a new payment: order request, fresh preimage,
	// priced order, converted amount, Lightning invoice and invoice token.
	RequestPayment(ctx context.Context) (*InvoiceResult, error)

	// IsSettled polls whether the flow's invoice has been paid.
	IsSettled(ctx context.Context) (bool, error)

	// GetSettlement produces the settlement and its token after IsSettled
	// reported true.
	GetSettlement(ctx context.Context) (*SettlementResult, error)

	// CheckSettledInvoice verifies a settled invoice against the node in
	// topologies where settlement happens remotely. Local flows do not
	// support it.
	CheckSettledInvoice(ctx context.Context) (*SettlementResult, error)

	// MarkAsExecuted consumes a pay-per-request payment after the resource
	// executed successfully.
	MarkAsExecuted(ctx context.Context) error

	// IsPayPerRequest reports whether the underlying payment is single-use.
	IsPayPerRequest() bool

	// PreImageHash identifies the payment the flow is bound to, nil before
	// RequestPayment on a fresh flow.
	PreImageHash() []byte
}

// InvoiceResult is everything the HTTP layer needs to answer 402: the
// invoice for the response body and the invoice token for the cookie.
type InvoiceResult struct {
	Invoice     *paywall.Invoice
	Token       string
	TokenExpire time.Time
}

// SettlementResult carries the settlement and the settlement token the
// client presents in the Payment header on subsequent requests.
type SettlementResult struct {
	Settlement  *paywall.Settlement
	Token       string
	TokenExpire time.Time
}

// tokenFromRequest extracts a token from a header, or from a cookie with a
// query parameter fallback. Empty string means no token present.
func tokenFromRequest(r *http.Request, header, cookie, param string) string {
	if header != "" {
		if v := r.Header.Get(header); v != "" {
			return v
		}
	}
	if cookie != "" {
		if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
			return c.Value
		}
	}
	if param != "" {
		if v := r.URL.Query().Get(param); v != "" {
			return v
		}
	}
	return ""
}
