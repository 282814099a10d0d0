package gin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/gin-gonic/gin"

	paywall "github.com/lnpaywall/go-paywall"
	"github.com/lnpaywall/go-paywall/currency"
	"github.com/lnpaywall/go-paywall/flow"
	paywallhttp "github.com/lnpaywall/go-paywall/http"
	"github.com/lnpaywall/go-paywall/keymgmt"
	"github.com/lnpaywall/go-paywall/lightning"
	"github.com/lnpaywall/go-paywall/paymenthandler"
	"github.com/lnpaywall/go-paywall/token"
)

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	node := lightning.NewSimulatedHandler()
	payments := paymenthandler.New(paymenthandler.NewMemStore(), paymenthandler.NewCatalogPricer(map[string]paymenthandler.Article{
		"article": {UnitPrice: paywall.NewBTC(10)},
	}))
	node.RegisterListener(payments)
	manager := flow.NewManager(token.NewSymmetricGenerator(keymgmt.NewInMemoryKeyManager()), payments, node, currency.NewSameCryptoConverter())

	r := gin.New()
	r.GET("/premium",
		NewPaywallMiddleware(manager, &paywall.PaymentRequired{ArticleID: "article"}),
		func(c *gin.Context) {
			if _, exists := c.Get("paywall_settlement"); !exists {
				t.Error("handler should see the settlement in gin context")
			}
			c.String(http.StatusOK, "premium content")
		})
	r.GET("/paywall/settlement", gin.WrapH(paywallhttp.NewCheckSettlementHandler(manager)))

	server := httptest.NewServer(r)
	defer server.Close()

	resp, err := http.Get(server.URL + "/premium")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
	var invoiceResp paywallhttp.PaymentRequiredResponse
	if err := json.NewDecoder(resp.Body).Decode(&invoiceResp); err != nil {
		t.Fatalf("decode 402 body: %v", err)
	}

	if err := node.SettleInvoice(base58.Decode(invoiceResp.PreImageHash)); err != nil {
		t.Fatalf("SettleInvoice: %v", err)
	}
	checkResp, err := http.Get(server.URL + "/paywall/settlement?" + paywall.ParamInvoiceRequest + "=" + invoiceResp.Token)
	if err != nil {
		t.Fatalf("GET settlement: %v", err)
	}
	defer checkResp.Body.Close()
	var settlementResp paywallhttp.SettlementResponse
	if err := json.NewDecoder(checkResp.Body).Decode(&settlementResp); err != nil {
		t.Fatalf("decode settlement body: %v", err)
	}
	if !settlementResp.Settled {
		t.Fatal("invoice should be settled")
	}

	paidReq, err := http.NewRequest(http.MethodGet, server.URL+"/premium", nil)
	if err != nil {
		t.Fatal(err)
	}
	paidReq.Header.Set(paywall.HeaderPayment, settlementResp.Token)
	paidResp, err := http.DefaultClient.Do(paidReq)
	if err != nil {
		t.Fatalf("paid GET: %v", err)
	}
	defer paidResp.Body.Close()
	if paidResp.StatusCode != http.StatusOK {
		t.Fatalf("paid status = %d, want 200", paidResp.StatusCode)
	}
}
