// Package chi provides Chi-compatible middleware for Lightning paywall
// payment gating. This package is a thin adapter over the http package;
// Chi middleware and stdlib middleware share the same shape.
package chi

import (
	"net/http"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/flow"
	paywallhttp "github.com/lnpaywall/go-paywall/http"
)

// NewPaywallMiddleware creates Lightning paywall middleware for Chi routes.
//
// Example usage:
//
//	manager := flow.NewManager(tokens, payments, lightning, converter)
//	r := chi.NewRouter()
//	r.Route("/premium", func(r chi.Router) {
//	    r.Use(chipaywall.NewPaywallMiddleware(manager, &paywall.PaymentRequired{
//	        ArticleID: "article-1",
//	    }))
//	    r.Get("/", premiumHandler)
//	})
//	r.Get("/paywall/settlement", paywallhttp.NewCheckSettlementHandler(manager).ServeHTTP)
func NewPaywallMiddleware(manager *flow.Manager, declaration *paywall.PaymentRequired) func(http.Handler) http.Handler {
	return paywallhttp.NewPaywallMiddleware(manager, declaration)
}
