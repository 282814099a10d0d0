// Package gin provides Gin-compatible middleware for Lightning paywall
// payment gating. This package is a thin adapter that translates gin.Context
// to stdlib http patterns and delegates all flow logic to the http package.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/flow"
	paywallhttp "github.com/lnpaywall/go-paywall/http"
)

// NewPaywallMiddleware creates Lightning paywall middleware for Gin routes.
// On unpaid requests the handler chain is aborted with a 402 invoice
// response; on paid requests the settlement is available both through the
// request context and gin's own context under "paywall_settlement".
//
// Example usage:
//
//	r := gin.Default()
//	r.GET("/premium",
//	    ginpaywall.NewPaywallMiddleware(manager, &paywall.PaymentRequired{ArticleID: "article-1"}),
//	    premiumHandler)
func NewPaywallMiddleware(manager *flow.Manager, declaration *paywall.PaymentRequired) gin.HandlerFunc {
	base := paywallhttp.NewPaywallMiddleware(manager, declaration)
	return func(c *gin.Context) {
		proceeded := false
		wrapped := base(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proceeded = true
			c.Request = r
			if settlement := paywallhttp.SettlementFromContext(r.Context()); settlement != nil {
				c.Set("paywall_settlement", settlement)
			}
			c.Writer = &ginWriter{ResponseWriter: c.Writer, w: w}
			c.Next()
		}))
		wrapped.ServeHTTP(c.Writer, c.Request)
		if !proceeded {
			c.Abort()
		}
	}
}

// ginWriter routes gin's response writes through the paywall's execution
// interceptor while keeping gin.ResponseWriter's bookkeeping interface.
type ginWriter struct {
	gin.ResponseWriter
	w http.ResponseWriter
}

func (g *ginWriter) Write(b []byte) (int, error) {
	return g.w.Write(b)
}

func (g *ginWriter) WriteHeader(statusCode int) {
	g.w.WriteHeader(statusCode)
}

func (g *ginWriter) WriteString(s string) (int, error) {
	return g.w.Write([]byte(s))
}
