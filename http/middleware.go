// Package http provides HTTP middleware for Lightning paywall payment
// gating.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/flow"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// SettlementContextKey is the context key for storing the verified
// settlement of a paid request.
const SettlementContextKey = contextKey("paywall_settlement")

// SettlementFromContext returns the settlement of a paid request, or nil on
// unpaid routes.
func SettlementFromContext(ctx context.Context) *paywall.Settlement {
	settlement, _ := ctx.Value(SettlementContextKey).(*paywall.Settlement)
	return settlement
}

// NewPaywallMiddleware creates payment gating middleware for one protected
// route. Unpaid requests are answered with 402 and a Lightning invoice;
// requests carrying a valid settlement token pass through with the
// settlement stored in the request context. Pay-per-request declarations are
// marked as executed at the moment the handler commits a success response.
func NewPaywallMiddleware(manager *flow.Manager, declaration *paywall.PaymentRequired) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := slog.Default()
			request := paywall.NewCachableRequest(r)

			paymentFlow, err := manager.FlowForRequest(r.Context(), declaration, request)
			if err != nil {
				writeFlowError(w, logger, err)
				return
			}

			required, err := paymentFlow.IsPaymentRequired(r.Context())
			if err != nil {
				writeFlowError(w, logger, err)
				return
			}

			if required {
				result, err := paymentFlow.RequestPayment(r.Context())
				if err != nil {
					writeFlowError(w, logger, err)
					return
				}
				logger.Info("payment required, invoice issued",
					"path", r.URL.Path,
					"preImageHash", paywall.PreImageHashString(result.Invoice.PreImageHash))
				writePaymentRequired(w, result)
				return
			}

			settlement := settlementOf(paymentFlow)
			ctx := context.WithValue(r.Context(), SettlementContextKey, settlement)
			r = r.WithContext(ctx)
			request.Rewind()

			if !paymentFlow.IsPayPerRequest() {
				next.ServeHTTP(w, r)
				return
			}

			// Pay-per-request payments are consumed exactly once, at the
			// moment the handler commits a success status. Error responses
			// leave the payment claimable for a retry.
			interceptor := &executionInterceptor{
				w: w,
				markExecuted: func() bool {
					if err := paymentFlow.MarkAsExecuted(r.Context()); err != nil {
						var executed *paywall.AlreadyExecutedError
						if errors.As(err, &executed) {
							logger.Warn("concurrent execution of pay-per-request payment",
								"preImageHash", paywall.PreImageHashString(executed.PreImageHash))
							writeError(w, http.StatusUnauthorized, "payment already used")
							return false
						}
						logger.Error("failed to mark payment as executed", "error", err)
						writeError(w, http.StatusInternalServerError, "internal error")
						return false
					}
					return true
				},
				onFailure: func(statusCode int) {
					logger.Warn("handler returned non-success, payment stays claimable", "status", statusCode)
				},
			}
			next.ServeHTTP(interceptor, r)
		})
	}
}

func settlementOf(paymentFlow flow.PaymentFlow) *paywall.Settlement {
	type settlementCarrier interface{ CurrentSettlement() *paywall.Settlement }
	if c, ok := paymentFlow.(settlementCarrier); ok {
		return c.CurrentSettlement()
	}
	return nil
}

// writeFlowError maps flow and token errors to HTTP status codes.
func writeFlowError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var tokenErr *paywall.TokenError
	if errors.As(err, &tokenErr) {
		logger.Warn("rejecting request token", "reason", string(tokenErr.Reason), "detail", tokenErr.Detail)
		writeError(w, http.StatusUnauthorized, tokenErr.Error())
		return
	}
	var executed *paywall.AlreadyExecutedError
	if errors.As(err, &executed) {
		logger.Warn("pay-per-request payment already used",
			"preImageHash", paywall.PreImageHashString(executed.PreImageHash))
		writeError(w, http.StatusUnauthorized, executed.Error())
		return
	}
	if errors.Is(err, paywall.ErrInvalidCurrency) || errors.Is(err, paywall.ErrArticleNotFound) || errors.Is(err, paywall.ErrMissingDeclaration) {
		logger.Error("paywall misconfiguration", "error", err)
		writeError(w, http.StatusInternalServerError, "paywall misconfigured")
		return
	}
	logger.Error("payment flow failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
