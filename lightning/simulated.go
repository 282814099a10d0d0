// Package lightning provides an in-process simulation of a Lightning node
// for development and tests. Real node integrations implement
// paywall.LightningHandler against LND or similar outside this module.
package lightning

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	paywall "github.com/lnpaywall/go-paywall"
)

// DefaultInvoiceValidity is how long simulated invoices stay payable.
const DefaultInvoiceValidity = time.Hour

// SimulatedHandler keeps invoices in memory and settles them on demand via
// SettleInvoice. It emits the same added/settled events a real node
// subscription would.
type SimulatedHandler struct {
	mu        sync.Mutex
	connected bool
	invoices  map[string]*paywall.Invoice
	listeners map[string]paywall.LightningEventListener

	node     paywall.NodeInfo
	validity time.Duration
	log      *slog.Logger
}

// NewSimulatedHandler returns a handler posing as a testnet node. It starts
// connected; Connect and Close only flip the flag.
func NewSimulatedHandler() *SimulatedHandler {
	return &SimulatedHandler{
		connected: true,
		invoices:  make(map[string]*paywall.Invoice),
		listeners: make(map[string]paywall.LightningEventListener),
		node: paywall.NodeInfo{
			PublicKeyInfo: "03simulatednode000000000000000000000000000000000000000000000000000",
			NodeAddress:   "127.0.0.1",
			NodePort:      9735,
			Network:       paywall.NodeNetworkTestNet,
		},
		validity: DefaultInvoiceValidity,
		log:      slog.Default(),
	}
}

func (h *SimulatedHandler) Connect(context.Context) error {
	h.mu.Lock()
	h.connected = true
	h.mu.Unlock()
	return nil
}

func (h *SimulatedHandler) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *SimulatedHandler) Close() error {
	h.mu.Lock()
	h.connected = false
	h.mu.Unlock()
	return nil
}

func (h *SimulatedHandler) GenerateInvoice(_ context.Context, order *paywall.ConvertedOrder) (*paywall.Invoice, error) {
	now := time.Now()
	invoice := &paywall.Invoice{
		PreImageHash:  order.PreImageHash,
		Bolt11Invoice: "lnsim1" + paywall.PreImageHashString(order.PreImageHash),
		Description:   order.Description,
		InvoiceAmount: order.ConvertedAmount,
		NodeInfo:      &h.node,
		InvoiceDate:   now,
		ExpireDate:    now.Add(h.validity),
	}

	h.mu.Lock()
	h.invoices[string(order.PreImageHash)] = invoice
	h.mu.Unlock()

	h.log.Debug("simulated invoice generated",
		"preImageHash", paywall.PreImageHashString(order.PreImageHash),
		"amount", order.ConvertedAmount.Value)
	h.notify(paywall.LightningEvent{Type: paywall.LightningEventAdded, Invoice: copyInvoice(invoice)})
	return copyInvoice(invoice), nil
}

func (h *SimulatedHandler) LookupInvoice(_ context.Context, preImageHash []byte) (*paywall.Invoice, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	invoice, ok := h.invoices[string(preImageHash)]
	if !ok {
		return nil, paywall.ErrInvoiceNotFound
	}
	return copyInvoice(invoice), nil
}

// SettleInvoice marks the invoice as paid in full and notifies listeners.
// Tests and examples call it in place of a real Lightning payment.
func (h *SimulatedHandler) SettleInvoice(preImageHash []byte) error {
	h.mu.Lock()
	invoice, ok := h.invoices[string(preImageHash)]
	if ok && !invoice.Settled {
		now := time.Now()
		amount := invoice.InvoiceAmount
		invoice.Settled = true
		invoice.SettledAmount = &amount
		invoice.SettlementDate = &now
	}
	h.mu.Unlock()

	if !ok {
		return paywall.ErrInvoiceNotFound
	}
	h.log.Info("simulated invoice settled",
		"preImageHash", paywall.PreImageHashString(preImageHash))
	h.notify(paywall.LightningEvent{Type: paywall.LightningEventSettled, Invoice: copyInvoice(invoice)})
	return nil
}

func (h *SimulatedHandler) RegisterListener(listener paywall.LightningEventListener) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.listeners[id] = listener
	h.mu.Unlock()
	return id
}

func (h *SimulatedHandler) UnregisterListener(id string) {
	h.mu.Lock()
	delete(h.listeners, id)
	h.mu.Unlock()
}

func (h *SimulatedHandler) NodeInfo(context.Context) (*paywall.NodeInfo, error) {
	node := h.node
	return &node, nil
}

func (h *SimulatedHandler) notify(event paywall.LightningEvent) {
	h.mu.Lock()
	listeners := make([]paywall.LightningEventListener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()
	for _, l := range listeners {
		l.OnLightningEvent(event)
	}
}

func copyInvoice(invoice *paywall.Invoice) *paywall.Invoice {
	cp := *invoice
	return &cp
}
