// Package flow drives a payment through its states: no payment, invoiced,
// settled and, for pay-per-request resources, executed. A PaymentFlow is
// short-lived, bound to one HTTP request, and built by the Manager from the
// resource declaration and whatever token the request carries.
package flow

import (
	"fmt"
	"sync"

	paywall "github.com/lnpaywall/go-paywall"
)

// UnitCalculator resolves how many units an order request buys. The default
// reads the declaration; custom calculators can derive units from the
// request, for instance from a quantity parameter.
type UnitCalculator interface {
	CalculateUnits(declaration *paywall.PaymentRequired, r *paywall.CachableRequest) int
}

// DefaultUnitCalculator uses the unit count declared on the resource.
type DefaultUnitCalculator struct{}

func (DefaultUnitCalculator) CalculateUnits(declaration *paywall.PaymentRequired, _ *paywall.CachableRequest) int {
	return declaration.UnitCount()
}

// OrderRequestGenerator turns a resource declaration and the current request
// into the order request sent to the payment handler.
type OrderRequestGenerator interface {
	GenerateOrderRequest(declaration *paywall.PaymentRequired, r *paywall.CachableRequest) (*paywall.OrderRequest, error)
}

// DefaultOrderRequestGenerator copies the declaration fields, resolving the
// unit count through its calculator.
type DefaultOrderRequestGenerator struct {
	Units UnitCalculator
}

func (g *DefaultOrderRequestGenerator) GenerateOrderRequest(declaration *paywall.PaymentRequired, r *paywall.CachableRequest) (*paywall.OrderRequest, error) {
	if declaration.ArticleID == "" {
		return nil, fmt.Errorf("flow: declaration has no article id")
	}
	calc := g.Units
	if calc == nil {
		calc = DefaultUnitCalculator{}
	}
	return &paywall.OrderRequest{
		ArticleID:      declaration.ArticleID,
		Units:          calc.CalculateUnits(declaration, r),
		PayPerRequest:  declaration.PayPerRequest,
		PaymentOptions: declaration.PaymentOptions,
	}, nil
}

// GeneratorRegistry resolves the order request generator for a declaration.
// Custom generators are registered once by key and shared, mirroring the
// custom fingerprint policy registry.
type GeneratorRegistry struct {
	mu     sync.RWMutex
	custom map[string]OrderRequestGenerator
	def    OrderRequestGenerator
}

// NewGeneratorRegistry returns a registry with the default generator.
func NewGeneratorRegistry() *GeneratorRegistry {
	return &GeneratorRegistry{
		custom: make(map[string]OrderRequestGenerator),
		def:    &DefaultOrderRequestGenerator{},
	}
}

// RegisterCustom makes generator available under the given key.
func (r *GeneratorRegistry) RegisterCustom(key string, generator OrderRequestGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[key] = generator
}

// Generator returns the generator named by the declaration, or the default.
func (r *GeneratorRegistry) Generator(declaration *paywall.PaymentRequired) (OrderRequestGenerator, error) {
	if declaration.OrderRequestGenerator == "" {
		return r.def, nil
	}
	r.mu.RLock()
	g, ok := r.custom[declaration.OrderRequestGenerator]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("flow: no order request generator registered under %q", declaration.OrderRequestGenerator)
	}
	return g, nil
}
