package paymenthandler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	paywall "github.com/lnpaywall/go-paywall"
)

// DefaultOrderValidity bounds how long an unpaid order stays claimable.
const DefaultOrderValidity = time.Hour

// Handler is the in-process paywall.PaymentHandler. It also implements
// paywall.LightningEventListener so node-side settlements flow into the
// store without polling; register it on the lightning handler at startup.
type Handler struct {
	store     Store
	pricer    ArticlePricer
	converter *Converter
	bus       *eventBus
	log       *slog.Logger

	// OrderValidity overrides DefaultOrderValidity when non-zero.
	OrderValidity time.Duration
	// SettlementDuration is stamped on new payment records so their
	// settlements expire relative to the settlement date.
	SettlementDuration time.Duration
}

// New builds a handler over the given store and pricer.
func New(store Store, pricer ArticlePricer) *Handler {
	return &Handler{
		store:     store,
		pricer:    pricer,
		converter: &Converter{},
		bus:       newEventBus(),
		log:       slog.Default(),
	}
}

func (h *Handler) CreateOrder(ctx context.Context, preImageHash []byte, request *paywall.OrderRequest) (*paywall.Order, error) {
	amount, description, err := h.pricer.PriceOrder(ctx, request)
	if err != nil {
		return nil, err
	}
	level := LevelStandard
	if h.SettlementDuration == 0 {
		level = LevelMinimal
	}
	data := &Data{
		PreImageHash:       preImageHash,
		Level:              level,
		Description:        description,
		OrderAmount:        amount,
		PayPerRequest:      request.PayPerRequest,
		SettlementDuration: h.SettlementDuration,
	}
	if err := h.store.Create(ctx, data); err != nil {
		return nil, &paywall.InternalError{Op: "paymenthandler.Create", Err: err}
	}

	order := &paywall.Order{
		PreImageHash: preImageHash,
		OrderAmount:  amount,
		Description:  description,
		ExpireDate:   time.Now().Add(h.orderValidity()),
	}
	h.log.Debug("order created",
		"preImageHash", paywall.PreImageHashString(preImageHash),
		"articleId", request.ArticleID)
	h.bus.publish(paywall.PaymentEvent{Type: paywall.EventOrderCreated, Payment: order})
	return order, nil
}

func (h *Handler) RegisterInvoice(ctx context.Context, invoice *paywall.Invoice) error {
	data, err := h.store.Get(ctx, invoice.PreImageHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return paywall.ErrInvoiceNotFound
		}
		return &paywall.InternalError{Op: "paymenthandler.Get", Err: err}
	}
	data.Bolt11Invoice = invoice.Bolt11Invoice
	data.InvoiceDate = invoice.InvoiceDate
	data.InvoiceExpireDate = invoice.ExpireDate
	if err := h.store.Update(ctx, data); err != nil {
		return &paywall.InternalError{Op: "paymenthandler.Update", Err: err}
	}
	h.bus.publish(paywall.PaymentEvent{Type: paywall.EventInvoiceCreated, Payment: invoice})
	return nil
}

func (h *Handler) RegisterSettledInvoice(ctx context.Context, invoice *paywall.Invoice, registerNew bool, request *paywall.OrderRequest) (*paywall.Settlement, error) {
	data, err := h.store.Get(ctx, invoice.PreImageHash)
	switch {
	case errors.Is(err, ErrNotFound):
		if !registerNew {
			return nil, paywall.ErrInvoiceNotFound
		}
		data = &Data{
			PreImageHash:       invoice.PreImageHash,
			Level:              LevelStandard,
			Bolt11Invoice:      invoice.Bolt11Invoice,
			Description:        invoice.Description,
			OrderAmount:        invoice.InvoiceAmount,
			InvoiceDate:        invoice.InvoiceDate,
			InvoiceExpireDate:  invoice.ExpireDate,
			SettlementDuration: h.SettlementDuration,
		}
		if request != nil {
			data.PayPerRequest = request.PayPerRequest
		}
		if err := h.store.Create(ctx, data); err != nil {
			return nil, &paywall.InternalError{Op: "paymenthandler.Create", Err: err}
		}
	case err != nil:
		return nil, &paywall.InternalError{Op: "paymenthandler.Get", Err: err}
	}

	h.applySettled(data, invoice)
	if err := h.store.Update(ctx, data); err != nil {
		return nil, &paywall.InternalError{Op: "paymenthandler.Update", Err: err}
	}
	settlement := h.converter.ToSettlement(data, true)
	h.bus.publish(paywall.PaymentEvent{Type: paywall.EventInvoiceSettled, Payment: settlement})
	return settlement, nil
}

func (h *Handler) CheckSettlement(ctx context.Context, preImageHash []byte, includeInvoice bool) (*paywall.Settlement, error) {
	data, err := h.store.Get(ctx, preImageHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, &paywall.InternalError{Op: "paymenthandler.Get", Err: err}
	}
	if !data.Settled {
		return nil, nil
	}
	if data.PayPerRequest && data.Executed {
		return nil, &paywall.AlreadyExecutedError{PreImageHash: preImageHash}
	}
	return h.converter.ToSettlement(data, includeInvoice), nil
}

func (h *Handler) MarkAsExecuted(ctx context.Context, preImageHash []byte) error {
	data, err := h.store.Get(ctx, preImageHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return paywall.ErrInvoiceNotFound
		}
		return &paywall.InternalError{Op: "paymenthandler.Get", Err: err}
	}
	if data.Executed {
		return &paywall.AlreadyExecutedError{PreImageHash: preImageHash}
	}
	data.Executed = true
	if err := h.store.Update(ctx, data); err != nil {
		return &paywall.InternalError{Op: "paymenthandler.Update", Err: err}
	}
	h.bus.publish(paywall.PaymentEvent{
		Type:    paywall.EventRequestExecuted,
		Payment: h.converter.ToSettlement(data, false),
	})
	return nil
}

func (h *Handler) RegisterListener(listener paywall.PaymentListener, filter paywall.PaymentEventFilter) string {
	return h.bus.register(listener, filter)
}

func (h *Handler) UnregisterListener(id string) {
	h.bus.unregister(id)
}

// OnLightningEvent folds node-side invoice events into the payment store.
// Settlements for unknown preimage hashes are logged and dropped; they
// belong to invoices this paywall never issued.
func (h *Handler) OnLightningEvent(event paywall.LightningEvent) {
	if event.Invoice == nil {
		return
	}
	ctx := context.Background()
	data, err := h.store.Get(ctx, event.Invoice.PreImageHash)
	if err != nil {
		h.log.Warn("lightning event for unknown payment",
			"type", string(event.Type),
			"preImageHash", paywall.PreImageHashString(event.Invoice.PreImageHash))
		return
	}
	switch event.Type {
	case paywall.LightningEventAdded:
		data.Bolt11Invoice = event.Invoice.Bolt11Invoice
		data.InvoiceDate = event.Invoice.InvoiceDate
		data.InvoiceExpireDate = event.Invoice.ExpireDate
		if err := h.store.Update(ctx, data); err != nil {
			h.log.Error("failed to record invoice from lightning event", "error", err)
			return
		}
		h.bus.publish(paywall.PaymentEvent{Type: paywall.EventInvoiceCreated, Payment: event.Invoice})
	case paywall.LightningEventSettled:
		h.applySettled(data, event.Invoice)
		if err := h.store.Update(ctx, data); err != nil {
			h.log.Error("failed to record settlement from lightning event", "error", err)
			return
		}
		h.log.Info("invoice settled",
			"preImageHash", paywall.PreImageHashString(event.Invoice.PreImageHash))
		h.bus.publish(paywall.PaymentEvent{
			Type:    paywall.EventInvoiceSettled,
			Payment: h.converter.ToSettlement(data, true),
		})
	}
}

func (h *Handler) applySettled(data *Data, invoice *paywall.Invoice) {
	data.Settled = true
	if invoice.SettledAmount != nil {
		data.SettledAmount = *invoice.SettledAmount
	} else {
		data.SettledAmount = invoice.InvoiceAmount
	}
	if invoice.SettlementDate != nil {
		data.SettlementDate = *invoice.SettlementDate
	} else if data.SettlementDate.IsZero() {
		data.SettlementDate = time.Now()
	}
}

func (h *Handler) orderValidity() time.Duration {
	if h.OrderValidity > 0 {
		return h.OrderValidity
	}
	return DefaultOrderValidity
}
