package flow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/policy"
	"github.com/lnpaywall/go-paywall/token"
)

// Mode selects the flow topology.
type Mode string

const (
	// ModeLocal keeps order creation, invoicing and settlement on this
	// node.
	ModeLocal Mode = "LOCAL"
	// ModeCentral delegates invoicing and settlement to a central node via
	// encrypted payment tokens. Reserved; not implemented in this module.
	ModeCentral Mode = "CENTRAL"
)

// Default token validity fallbacks, used when neither the invoice nor the
// settlement carries an expire date.
const (
	DefaultInvoiceTokenValidity    = time.Hour
	DefaultSettlementTokenValidity = 24 * time.Hour
)

// Manager builds payment flows for incoming requests. One manager is shared
// by all routes of a service and is safe for concurrent use.
type Manager struct {
	mode       Mode
	tokens     token.Generator
	payments   paywall.PaymentHandler
	lightning  paywall.LightningHandler
	currency   paywall.CurrencyConverter
	policies   *policy.Factory
	generators *GeneratorRegistry
	log        *slog.Logger
	clock      func() time.Time

	// InvoiceTokenValidity bounds invoice tokens whose invoice has no
	// expire date. Zero means DefaultInvoiceTokenValidity.
	InvoiceTokenValidity time.Duration
	// SettlementTokenValidity bounds settlement tokens whose settlement
	// has no expire date. Zero means DefaultSettlementTokenValidity.
	SettlementTokenValidity time.Duration
	// TokenNotBeforeDuration, when non-zero, stamps generated tokens with
	// a not-before claim of issuance time plus the duration. Zero leaves
	// the claim unset.
	TokenNotBeforeDuration time.Duration
}

// NewManager wires a local-mode manager over the given collaborators.
func NewManager(tokens token.Generator, payments paywall.PaymentHandler, lightning paywall.LightningHandler, currency paywall.CurrencyConverter) *Manager {
	return &Manager{
		mode:       ModeLocal,
		tokens:     tokens,
		payments:   payments,
		lightning:  lightning,
		currency:   currency,
		policies:   policy.NewFactory(),
		generators: NewGeneratorRegistry(),
		log:        slog.Default(),
		clock:      time.Now,
	}
}

// Policies exposes the fingerprint policy factory for custom registrations.
func (m *Manager) Policies() *policy.Factory { return m.policies }

// Generators exposes the order request generator registry.
func (m *Manager) Generators() *GeneratorRegistry { return m.generators }

// FlowForRequest builds the flow for a payment protected resource request.
// The request fingerprint is computed with the declaration's policy, and a
// settlement token in the Payment header is verified and bound to the flow.
// A missing token is not an error; the flow then starts from its initial
// state.
func (m *Manager) FlowForRequest(ctx context.Context, declaration *paywall.PaymentRequired, r *paywall.CachableRequest) (PaymentFlow, error) {
	if m.mode != ModeLocal {
		return nil, fmt.Errorf("flow: mode %q is not supported", m.mode)
	}
	if declaration == nil {
		return nil, paywall.ErrMissingDeclaration
	}
	pol, err := m.policies.Policy(declaration)
	if err != nil {
		return nil, err
	}
	requestData, err := pol.SignificantRequestData(r)
	if err != nil {
		return nil, &paywall.InternalError{Op: "flow.SignificantRequestData", Err: err}
	}

	var claims *token.Claims
	if raw := tokenFromRequest(r.Request, paywall.HeaderPayment, "", ""); raw != "" {
		claims, err = m.tokens.ParseToken(ctx, token.ContextSettlement, raw)
		if err != nil {
			return nil, err
		}
	}
	return &LocalFlow{
		mgr:         m,
		declaration: declaration,
		request:     r,
		requestData: &requestData,
		claims:      claims,
	}, nil
}

// FlowFromInvoiceToken rebuilds a flow from the invoice token carried in the
// InvoiceRequest cookie or its query parameter fallback. Settlement check
// endpoints use it to poll payment state without a resource declaration.
func (m *Manager) FlowFromInvoiceToken(ctx context.Context, r *http.Request) (PaymentFlow, error) {
	raw := tokenFromRequest(r, "", paywall.CookieInvoiceRequest, paywall.ParamInvoiceRequest)
	if raw == "" {
		return nil, &paywall.TokenError{
			Reason: paywall.TokenErrorNotFound,
			Detail: "request carries no invoice token",
			Err:    paywall.ErrTokenAbsent,
		}
	}
	claims, err := m.tokens.ParseToken(ctx, token.ContextInvoice, raw)
	if err != nil {
		return nil, err
	}
	return &LocalFlow{mgr: m, claims: claims}, nil
}

func (m *Manager) now() time.Time {
	if m.clock != nil {
		return m.clock()
	}
	return time.Now()
}

func (m *Manager) invoiceTokenValidity() time.Duration {
	if m.InvoiceTokenValidity > 0 {
		return m.InvoiceTokenValidity
	}
	return DefaultInvoiceTokenValidity
}

func (m *Manager) settlementTokenValidity() time.Duration {
	if m.SettlementTokenValidity > 0 {
		return m.SettlementTokenValidity
	}
	return DefaultSettlementTokenValidity
}

// tokenNotBefore returns the not-before instant for freshly minted tokens,
// or the zero time when no not-before duration is configured.
func (m *Manager) tokenNotBefore() time.Time {
	if m.TokenNotBeforeDuration == 0 {
		return time.Time{}
	}
	return m.now().Add(m.TokenNotBeforeDuration)
}
