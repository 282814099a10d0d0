package paywall

// PaymentEventType classifies the lifecycle notifications emitted by a
// payment handler.
type PaymentEventType string

const (
	EventOrderCreated    PaymentEventType = "ORDER_CREATED"
	EventInvoiceCreated  PaymentEventType = "INVOICE_CREATED"
	EventInvoiceSettled  PaymentEventType = "INVOICE_SETTLED"
	EventRequestExecuted PaymentEventType = "REQUEST_EXECUTED"
	// EventAny is a listener filter matching every event type, never an
	// event type itself.
	EventAny PaymentEventType = "ANY"
)

// PaymentEvent is published by the payment handler whenever a payment changes
// state. Payment is the Order, Invoice or Settlement the event relates to.
type PaymentEvent struct {
	Type    PaymentEventType
	Payment Payment
}

// PaymentEventFilter selects which events a listener receives. A nil
// PreImageHash matches every payment; EventAny matches every type.
type PaymentEventFilter struct {
	PreImageHash []byte
	Type         PaymentEventType
	// UnregisterAfterEvent removes the listener once a matching event has
	// been delivered, for one-shot settlement waits.
	UnregisterAfterEvent bool
}

// PaymentListener receives payment events matching its filter.
type PaymentListener interface {
	OnPaymentEvent(event PaymentEvent)
}

// PaymentListenerFunc adapts a function to PaymentListener.
type PaymentListenerFunc func(event PaymentEvent)

func (f PaymentListenerFunc) OnPaymentEvent(event PaymentEvent) { f(event) }

// LightningEventType classifies invoice notifications from a Lightning node.
type LightningEventType string

const (
	LightningEventAdded   LightningEventType = "ADDED"
	LightningEventSettled LightningEventType = "SETTLED"
)

// LightningEvent is emitted by a LightningHandler when an invoice is added or
// settled on the node.
type LightningEvent struct {
	Type    LightningEventType
	Invoice *Invoice
	// Context carries opaque data a payment handler attached when the
	// invoice was generated, echoed back on settlement.
	Context map[string]string
}

// LightningEventListener receives invoice notifications from a node.
type LightningEventListener interface {
	OnLightningEvent(event LightningEvent)
}
