package paywall

import "context"

// LightningHandler abstracts the Lightning node the paywall creates invoices
// on. Real node integrations (LND gRPC, BTCPay) implement this interface
// outside the module; the lightning package ships an in-memory simulator for
// development and tests.
type LightningHandler interface {
	// Connect establishes the connection to the node. Remote integrations
	// dial the node here; in-process implementations have nothing to dial.
	Connect(ctx context.Context) error

	// IsConnected reports whether the node connection is usable.
	IsConnected() bool

	// Close releases the node connection.
	Close() error

	// GenerateInvoice creates a BOLT11 invoice for the converted order using
	// the supplied preimage hash as payment hash.
	GenerateInvoice(ctx context.Context, order *ConvertedOrder) (*Invoice, error)

	// LookupInvoice fetches the current state of an invoice by preimage
	// hash. Returns ErrInvoiceNotFound if the node has no such invoice.
	LookupInvoice(ctx context.Context, preImageHash []byte) (*Invoice, error)

	// RegisterListener subscribes to invoice added/settled events. The
	// returned id unregisters the listener.
	RegisterListener(listener LightningEventListener) string

	// UnregisterListener removes a previously registered listener.
	UnregisterListener(id string)

	// NodeInfo describes the node invoices are issued from.
	NodeInfo(ctx context.Context) (*NodeInfo, error)
}

// PaymentHandler owns payment state. It prices order requests into orders,
// tracks invoices and settlements per preimage hash, and publishes payment
// events.
type PaymentHandler interface {
	// CreateOrder prices an order request and persists the new payment
	// keyed by the preimage hash. Returns ErrArticleNotFound when the
	// article id is unknown.
	CreateOrder(ctx context.Context, preImageHash []byte, request *OrderRequest) (*Order, error)

	// RegisterInvoice records the invoice generated for an order.
	RegisterInvoice(ctx context.Context, invoice *Invoice) error

	// RegisterSettledInvoice records an invoice that arrives already
	// settled. With registerNew true an unknown preimage hash creates a new
	// payment record; otherwise it is an error.
	RegisterSettledInvoice(ctx context.Context, invoice *Invoice, registerNew bool, request *OrderRequest) (*Settlement, error)

	// CheckSettlement reports whether the payment is settled. A nil
	// settlement with a nil error means not yet settled. includeInvoice
	// controls whether the settlement embeds the full invoice.
	CheckSettlement(ctx context.Context, preImageHash []byte, includeInvoice bool) (*Settlement, error)

	// MarkAsExecuted flags a pay-per-request payment as consumed. Returns
	// AlreadyExecutedError if it was already flagged.
	MarkAsExecuted(ctx context.Context, preImageHash []byte) error

	// RegisterListener subscribes to payment events matching the filter.
	// The returned id unregisters the listener.
	RegisterListener(listener PaymentListener, filter PaymentEventFilter) string

	// UnregisterListener removes a previously registered listener.
	UnregisterListener(id string)
}

// CurrencyConverter turns an order amount, possibly fiat, into the crypto
// amount to invoice. Implementations return InvalidCurrencyError for
// currencies they cannot convert.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount Amount) (CryptoAmount, error)
}
