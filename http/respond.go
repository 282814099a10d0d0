package http

import (
	"encoding/json"
	"net/http"
	"time"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/flow"
)

// PaymentRequiredResponse is the 402 response body announcing a Lightning
// invoice. The invoice token is also set as the InvoiceRequest cookie; the
// body repeats it for clients that cannot use cookies.
type PaymentRequiredResponse struct {
	Status        string               `json:"status"`
	PreImageHash  string               `json:"preImageHash"`
	Bolt11Invoice string               `json:"bolt11Invoice"`
	Description   string               `json:"description,omitempty"`
	InvoiceAmount paywall.CryptoAmount `json:"invoiceAmount"`
	NodeConnect   string               `json:"nodeConnect,omitempty"`
	InvoiceDate   time.Time            `json:"invoiceDate"`
	ExpireDate    time.Time            `json:"expireDate"`
	Token         string               `json:"token"`
	TokenExpire   time.Time            `json:"tokenExpire"`
}

// SettlementResponse is the settlement check response body. Once settled it
// carries the settlement token for the Payment header.
type SettlementResponse struct {
	Status       string     `json:"status"`
	Settled      bool       `json:"settled"`
	PreImageHash string     `json:"preImageHash,omitempty"`
	Token        string     `json:"token,omitempty"`
	TokenExpire  *time.Time `json:"tokenExpire,omitempty"`
	ValidUntil   *time.Time `json:"validUntil,omitempty"`
	ValidFrom    *time.Time `json:"validFrom,omitempty"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func writePaymentRequired(w http.ResponseWriter, result *flow.InvoiceResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     paywall.CookieInvoiceRequest,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.TokenExpire,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set(paywall.HeaderPaywallMessage, "TRUE")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)

	invoice := result.Invoice
	resp := PaymentRequiredResponse{
		Status:        "PAYMENT_REQUIRED",
		PreImageHash:  paywall.PreImageHashString(invoice.PreImageHash),
		Bolt11Invoice: invoice.Bolt11Invoice,
		Description:   invoice.Description,
		InvoiceAmount: invoice.InvoiceAmount,
		InvoiceDate:   invoice.InvoiceDate,
		ExpireDate:    invoice.ExpireDate,
		Token:         result.Token,
		TokenExpire:   result.TokenExpire,
	}
	if invoice.NodeInfo != nil {
		resp.NodeConnect = invoice.NodeInfo.ConnectString()
	}
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(paywall.HeaderPaywallMessage, "TRUE")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Status: "ERROR", Error: message})
}
