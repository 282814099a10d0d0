package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/currency"
	"github.com/lnpaywall/go-paywall/flow"
	"github.com/lnpaywall/go-paywall/keymgmt"
	"github.com/lnpaywall/go-paywall/lightning"
	"github.com/lnpaywall/go-paywall/paymenthandler"
	"github.com/lnpaywall/go-paywall/token"
)

type fixture struct {
	manager  *flow.Manager
	node     *lightning.SimulatedHandler
	payments *paymenthandler.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	node := lightning.NewSimulatedHandler()
	payments := paymenthandler.New(paymenthandler.NewMemStore(), paymenthandler.NewCatalogPricer(map[string]paymenthandler.Article{
		"article": {UnitPrice: paywall.NewBTC(10), Description: "Premium content"},
	}))
	node.RegisterListener(payments)
	tokens := token.NewSymmetricGenerator(keymgmt.NewInMemoryKeyManager())
	return &fixture{
		manager:  flow.NewManager(tokens, payments, node, currency.NewSameCryptoConverter()),
		node:     node,
		payments: payments,
	}
}

func decodeHash(t *testing.T, s string) []byte {
	t.Helper()
	hash := base58.Decode(s)
	if len(hash) == 0 {
		t.Fatalf("invalid preimage hash %q", s)
	}
	return hash
}

func protectedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("premium content"))
	})
}

// payInvoice walks the client side of the payment flow: take the 402
// response, settle the invoice on the node and fetch the settlement token
// from the polling endpoint.
func payInvoice(t *testing.T, fx *fixture, resp402 *httptest.ResponseRecorder) string {
	t.Helper()
	var invoiceResp PaymentRequiredResponse
	if err := json.Unmarshal(resp402.Body.Bytes(), &invoiceResp); err != nil {
		t.Fatalf("unmarshal 402 body: %v", err)
	}

	if err := fx.node.SettleInvoice(decodeHash(t, invoiceResp.PreImageHash)); err != nil {
		t.Fatalf("SettleInvoice: %v", err)
	}

	checkReq := httptest.NewRequest("GET", "/paywall/settlement", nil)
	checkReq.AddCookie(&http.Cookie{Name: paywall.CookieInvoiceRequest, Value: invoiceResp.Token})
	checkResp := httptest.NewRecorder()
	NewCheckSettlementHandler(fx.manager).ServeHTTP(checkResp, checkReq)
	if checkResp.Code != http.StatusOK {
		t.Fatalf("settlement check status = %d, body %s", checkResp.Code, checkResp.Body.String())
	}
	var settlementResp SettlementResponse
	if err := json.Unmarshal(checkResp.Body.Bytes(), &settlementResp); err != nil {
		t.Fatalf("unmarshal settlement body: %v", err)
	}
	if !settlementResp.Settled {
		t.Fatal("settlement check should report settled")
	}
	return settlementResp.Token
}

func TestMiddlewarePaymentCycle(t *testing.T) {
	fx := newFixture(t)
	handler := NewPaywallMiddleware(fx.manager, &paywall.PaymentRequired{ArticleID: "article"})(protectedHandler())

	// Unpaid request: 402 with invoice, cookie and paywall marker header.
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest("GET", "/premium", nil))
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.Code)
	}
	if resp.Header().Get(paywall.HeaderPaywallMessage) != "TRUE" {
		t.Error("402 response should carry the paywall marker header")
	}
	foundCookie := false
	for _, c := range resp.Result().Cookies() {
		if c.Name == paywall.CookieInvoiceRequest && c.Value != "" {
			foundCookie = true
		}
	}
	if !foundCookie {
		t.Error("402 response should set the invoice token cookie")
	}

	settlementToken := payInvoice(t, fx, resp)

	// Paid request passes through to the handler.
	paidReq := httptest.NewRequest("GET", "/premium", nil)
	paidReq.Header.Set(paywall.HeaderPayment, settlementToken)
	paidResp := httptest.NewRecorder()
	handler.ServeHTTP(paidResp, paidReq)
	if paidResp.Code != http.StatusOK {
		t.Fatalf("paid status = %d, body %s", paidResp.Code, paidResp.Body.String())
	}
	if paidResp.Body.String() != "premium content" {
		t.Errorf("paid body = %q", paidResp.Body.String())
	}

	// The settlement token stays valid for repeated requests.
	againResp := httptest.NewRecorder()
	againReq := httptest.NewRequest("GET", "/premium", nil)
	againReq.Header.Set(paywall.HeaderPayment, settlementToken)
	handler.ServeHTTP(againResp, againReq)
	if againResp.Code != http.StatusOK {
		t.Fatalf("repeat status = %d, want 200", againResp.Code)
	}
}

func TestMiddlewarePayPerRequest(t *testing.T) {
	fx := newFixture(t)
	handler := NewPaywallMiddleware(fx.manager, &paywall.PaymentRequired{
		ArticleID:     "article",
		PayPerRequest: true,
	})(protectedHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest("GET", "/report", nil))
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.Code)
	}
	settlementToken := payInvoice(t, fx, resp)

	paidReq := httptest.NewRequest("GET", "/report", nil)
	paidReq.Header.Set(paywall.HeaderPayment, settlementToken)
	paidResp := httptest.NewRecorder()
	handler.ServeHTTP(paidResp, paidReq)
	if paidResp.Code != http.StatusOK {
		t.Fatalf("first paid status = %d, body %s", paidResp.Code, paidResp.Body.String())
	}

	// Second use of the same single-use payment is rejected.
	replayReq := httptest.NewRequest("GET", "/report", nil)
	replayReq.Header.Set(paywall.HeaderPayment, settlementToken)
	replayResp := httptest.NewRecorder()
	handler.ServeHTTP(replayResp, replayReq)
	if replayResp.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", replayResp.Code)
	}
}

func TestMiddlewarePayPerRequestErrorKeepsPayment(t *testing.T) {
	fx := newFixture(t)
	failing := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "temporarily broken", http.StatusInternalServerError)
	})
	handler := NewPaywallMiddleware(fx.manager, &paywall.PaymentRequired{
		ArticleID:     "article",
		PayPerRequest: true,
	})(failing)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest("GET", "/report", nil))
	settlementToken := payInvoice(t, fx, resp)

	// The handler fails: payment must not be consumed.
	failReq := httptest.NewRequest("GET", "/report", nil)
	failReq.Header.Set(paywall.HeaderPayment, settlementToken)
	failResp := httptest.NewRecorder()
	handler.ServeHTTP(failResp, failReq)
	if failResp.Code != http.StatusInternalServerError {
		t.Fatalf("failing status = %d, want 500", failResp.Code)
	}

	okHandler := NewPaywallMiddleware(fx.manager, &paywall.PaymentRequired{
		ArticleID:     "article",
		PayPerRequest: true,
	})(protectedHandler())
	retryReq := httptest.NewRequest("GET", "/report", nil)
	retryReq.Header.Set(paywall.HeaderPayment, settlementToken)
	retryResp := httptest.NewRecorder()
	okHandler.ServeHTTP(retryResp, retryReq)
	if retryResp.Code != http.StatusOK {
		t.Fatalf("retry status = %d, want 200", retryResp.Code)
	}
}

func TestMiddlewareInvalidToken(t *testing.T) {
	fx := newFixture(t)
	handler := NewPaywallMiddleware(fx.manager, &paywall.PaymentRequired{ArticleID: "article"})(protectedHandler())

	req := httptest.NewRequest("GET", "/premium", nil)
	req.Header.Set(paywall.HeaderPayment, "not-a-token")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestMiddlewareSettlementFromContext(t *testing.T) {
	fx := newFixture(t)
	var seen *paywall.Settlement
	inspect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SettlementFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := NewPaywallMiddleware(fx.manager, &paywall.PaymentRequired{ArticleID: "article"})(inspect)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest("GET", "/premium", nil))
	settlementToken := payInvoice(t, fx, resp)

	paidReq := httptest.NewRequest("GET", "/premium", nil)
	paidReq.Header.Set(paywall.HeaderPayment, settlementToken)
	handler.ServeHTTP(httptest.NewRecorder(), paidReq)
	if seen == nil {
		t.Fatal("handler should see the settlement in its context")
	}
}
