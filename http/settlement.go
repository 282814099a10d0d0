package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/flow"
)

// NewCheckSettlementHandler returns the polling endpoint clients call while
// waiting for their invoice to be paid. The invoice token arrives in the
// InvoiceRequest cookie or the pwir query parameter. Once the invoice is
// settled the response carries the settlement token for the Payment header.
func NewCheckSettlementHandler(manager *flow.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := slog.Default()

		paymentFlow, err := manager.FlowFromInvoiceToken(r.Context(), r)
		if err != nil {
			writeFlowError(w, logger, err)
			return
		}

		settled, err := paymentFlow.IsSettled(r.Context())
		if err != nil {
			writeFlowError(w, logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if !settled {
			json.NewEncoder(w).Encode(SettlementResponse{Status: "NOT_SETTLED", Settled: false})
			return
		}

		result, err := paymentFlow.GetSettlement(r.Context())
		if err != nil {
			writeFlowError(w, logger, err)
			return
		}
		logger.Info("settlement token issued",
			"preImageHash", paywall.PreImageHashString(result.Settlement.PreImageHash))

		resp := SettlementResponse{
			Status:       "SETTLED",
			Settled:      true,
			PreImageHash: paywall.PreImageHashString(result.Settlement.PreImageHash),
			Token:        result.Token,
			TokenExpire:  &result.TokenExpire,
			ValidUntil:   &result.Settlement.ValidUntil,
			ValidFrom:    result.Settlement.ValidFrom,
		}
		json.NewEncoder(w).Encode(resp)
	})
}
