package lightning

import (
	"context"
	"errors"
	"testing"
	"time"

	paywall "github.com/lnpaywall/go-paywall"
)

func testOrder(hash string) *paywall.ConvertedOrder {
	return &paywall.ConvertedOrder{
		Order: paywall.Order{
			PreImageHash: []byte(hash),
			Description:  "test order",
			ExpireDate:   time.Now().Add(time.Hour),
		},
		ConvertedAmount: paywall.NewBTC(10),
	}
}

func TestSimulatedInvoiceLifecycle(t *testing.T) {
	ctx := context.Background()
	h := NewSimulatedHandler()

	var events []paywall.LightningEvent
	id := h.RegisterListener(listenerFunc(func(e paywall.LightningEvent) {
		events = append(events, e)
	}))
	defer h.UnregisterListener(id)

	invoice, err := h.GenerateInvoice(ctx, testOrder("hash-1"))
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}
	if invoice.Settled {
		t.Error("new invoice should not be settled")
	}
	if invoice.Bolt11Invoice == "" {
		t.Error("invoice should carry a payment request string")
	}

	looked, err := h.LookupInvoice(ctx, []byte("hash-1"))
	if err != nil {
		t.Fatalf("LookupInvoice: %v", err)
	}
	if looked.Bolt11Invoice != invoice.Bolt11Invoice {
		t.Error("lookup should return the generated invoice")
	}

	if err := h.SettleInvoice([]byte("hash-1")); err != nil {
		t.Fatalf("SettleInvoice: %v", err)
	}
	looked, err = h.LookupInvoice(ctx, []byte("hash-1"))
	if err != nil {
		t.Fatalf("LookupInvoice after settle: %v", err)
	}
	if !looked.Settled || looked.SettledAmount == nil {
		t.Error("settled invoice should carry settlement fields")
	}

	if len(events) != 2 || events[0].Type != paywall.LightningEventAdded || events[1].Type != paywall.LightningEventSettled {
		t.Errorf("events = %v, want ADDED then SETTLED", events)
	}
}

func TestSimulatedConnectionLifecycle(t *testing.T) {
	h := NewSimulatedHandler()
	if !h.IsConnected() {
		t.Fatal("new handler should report connected")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.IsConnected() {
		t.Fatal("closed handler should not report connected")
	}
	if err := h.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !h.IsConnected() {
		t.Fatal("reconnected handler should report connected")
	}
}

func TestSimulatedUnknownInvoice(t *testing.T) {
	h := NewSimulatedHandler()
	if _, err := h.LookupInvoice(context.Background(), []byte("nope")); !errors.Is(err, paywall.ErrInvoiceNotFound) {
		t.Fatalf("lookup error = %v, want ErrInvoiceNotFound", err)
	}
	if err := h.SettleInvoice([]byte("nope")); !errors.Is(err, paywall.ErrInvoiceNotFound) {
		t.Fatalf("settle error = %v, want ErrInvoiceNotFound", err)
	}
}

type listenerFunc func(paywall.LightningEvent)

func (f listenerFunc) OnLightningEvent(e paywall.LightningEvent) { f(e) }
