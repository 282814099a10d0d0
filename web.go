package paywall

// Token transport locations. Settlement tokens arrive in the Payment header,
// invoice and payment tokens round-trip through cookies with query parameter
// fallbacks for cookie-less clients.
const (
	// HeaderPayment carries the settlement token on paid requests.
	HeaderPayment = "Payment"

	// HeaderPaywallMessage flags 402 responses whose body is a paywall
	// invoice document rather than application payload.
	HeaderPaywallMessage = "PAYWALL_MESSAGE"

	// CookieInvoiceRequest carries the invoice token between the 402
	// response and the settlement poll.
	CookieInvoiceRequest = "InvoiceRequest"

	// CookiePaymentRequest carries the payment token in distributed
	// topologies where the order travels with the client.
	CookiePaymentRequest = "PaymentRequest"

	// ParamInvoiceRequest is the query parameter fallback for
	// CookieInvoiceRequest.
	ParamInvoiceRequest = "pwir"

	// ParamPaymentRequest is the query parameter fallback for
	// CookiePaymentRequest.
	ParamPaymentRequest = "pwpr"
)
