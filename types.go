// Package paywall contains the value types, collaborator interfaces and error
// taxonomy shared by the Lightning paywall middleware. The payment flow state
// machine lives in the flow package, the JOSE token codec in the token package
// and the request fingerprint policies in the policy package.
package paywall

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// PreImageHashString renders a preimage hash the way it appears in logs,
// errors and API responses.
func PreImageHashString(preImageHash []byte) string {
	return base58.Encode(preImageHash)
}

// RequestData binds a token to the significant content of the HTTP request it
// was issued for. Two RequestData values are equivalent iff their digests are
// byte equal; the request date is informational only.
type RequestData struct {
	// SignificantData is the SHA-256 digest over the request fields selected
	// by the fingerprint policy.
	SignificantData []byte    `json:"significantData"`
	RequestDate     time.Time `json:"requestDate"`
}

// Equal reports whether both fingerprints cover the same request content.
func (r RequestData) Equal(other RequestData) bool {
	return bytes.Equal(r.SignificantData, other.SignificantData)
}

// PreImageData is the secret/hash pair proving an invoice was paid. The
// preimage must never leave the node that generated it except inside the
// Lightning payment secret itself.
type PreImageData struct {
	PreImage     []byte `json:"preImage"`
	PreImageHash []byte `json:"preImageHash"`
}

// PaymentOption is a free-form name/value pair forwarded from the resource
// declaration to the payment handler.
type PaymentOption struct {
	Option string `json:"option"`
	Value  string `json:"value"`
}

// OrderRequest describes what is being bought, not the price. It is derived
// from the resource declaration at request time, or recovered from a token
// claim in later flow states.
type OrderRequest struct {
	ArticleID      string          `json:"articleId"`
	Units          int             `json:"units"`
	PayPerRequest  bool            `json:"payPerRequest"`
	PaymentOptions []PaymentOption `json:"paymentOptions,omitempty"`
}

// Order is the priced counterpart of an OrderRequest, created by the payment
// handler and keyed by preimage hash. The order amount may still be fiat at
// this point.
type Order struct {
	PreImageHash []byte    `json:"preImageHash"`
	OrderAmount  Amount    `json:"-"`
	Description  string    `json:"description,omitempty"`
	ExpireDate   time.Time `json:"expireDate"`
}

// PaymentPreImageHash implements Payment.
func (o *Order) PaymentPreImageHash() []byte { return o.PreImageHash }

type orderJSON struct {
	PreImageHash []byte          `json:"preImageHash"`
	OrderAmount  json.RawMessage `json:"orderAmount,omitempty"`
	Description  string          `json:"description,omitempty"`
	ExpireDate   time.Time       `json:"expireDate"`
}

// MarshalJSON encodes the amount union with an explicit type tag.
func (o Order) MarshalJSON() ([]byte, error) {
	amount, err := MarshalAmount(o.OrderAmount)
	if err != nil {
		return nil, err
	}
	return json.Marshal(orderJSON{
		PreImageHash: o.PreImageHash,
		OrderAmount:  amount,
		Description:  o.Description,
		ExpireDate:   o.ExpireDate,
	})
}

// UnmarshalJSON decodes the amount union encoded by MarshalJSON.
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw orderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.PreImageHash = raw.PreImageHash
	o.Description = raw.Description
	o.ExpireDate = raw.ExpireDate
	if len(raw.OrderAmount) > 0 {
		amount, err := UnmarshalAmount(raw.OrderAmount)
		if err != nil {
			return err
		}
		o.OrderAmount = amount
	}
	return nil
}

// PreImageOrder is an Order together with the generated preimage. It is only
// embedded in encrypted payment tokens in distributed topologies, since the
// preimage is secret.
type PreImageOrder struct {
	Order
	PreImage []byte `json:"preImage"`
}

type preImageOrderJSON struct {
	orderJSON
	PreImage []byte `json:"preImage"`
}

// MarshalJSON keeps the preimage alongside the amount-tagged order fields.
// Without it the embedded Order's marshaler would drop the preimage.
func (o PreImageOrder) MarshalJSON() ([]byte, error) {
	amount, err := MarshalAmount(o.OrderAmount)
	if err != nil {
		return nil, err
	}
	return json.Marshal(preImageOrderJSON{
		orderJSON: orderJSON{
			PreImageHash: o.PreImageHash,
			OrderAmount:  amount,
			Description:  o.Description,
			ExpireDate:   o.ExpireDate,
		},
		PreImage: o.PreImage,
	})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (o *PreImageOrder) UnmarshalJSON(data []byte) error {
	if err := o.Order.UnmarshalJSON(data); err != nil {
		return err
	}
	var raw preImageOrderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.PreImage = raw.PreImage
	return nil
}

// ConvertedOrder bridges an Order, whose amount may be fiat, to the crypto
// amount actually invoiced.
type ConvertedOrder struct {
	Order
	ConvertedAmount CryptoAmount `json:"convertedAmount"`
}

type convertedOrderJSON struct {
	orderJSON
	ConvertedAmount CryptoAmount `json:"convertedAmount"`
}

// MarshalJSON keeps the converted amount alongside the order fields.
func (o ConvertedOrder) MarshalJSON() ([]byte, error) {
	amount, err := MarshalAmount(o.OrderAmount)
	if err != nil {
		return nil, err
	}
	return json.Marshal(convertedOrderJSON{
		orderJSON: orderJSON{
			PreImageHash: o.PreImageHash,
			OrderAmount:  amount,
			Description:  o.Description,
			ExpireDate:   o.ExpireDate,
		},
		ConvertedAmount: o.ConvertedAmount,
	})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (o *ConvertedOrder) UnmarshalJSON(data []byte) error {
	if err := o.Order.UnmarshalJSON(data); err != nil {
		return err
	}
	var raw convertedOrderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.ConvertedAmount = raw.ConvertedAmount
	return nil
}

// NodeNetwork tells which Bitcoin network a Lightning node is connected to.
type NodeNetwork string

const (
	NodeNetworkMainNet NodeNetwork = "MAIN_NET"
	NodeNetworkTestNet NodeNetwork = "TEST_NET"
	NodeNetworkUnknown NodeNetwork = "UNKNOWN"
)

// NodeInfo identifies the Lightning node that issued an invoice.
type NodeInfo struct {
	PublicKeyInfo string      `json:"publicKeyInfo"`
	NodeAddress   string      `json:"nodeAddress"`
	NodePort      int         `json:"nodePort,omitempty"`
	Network       NodeNetwork `json:"network,omitempty"`
}

// ConnectString returns the publicKey@host:port string clients use to open a
// channel to the node, or just publicKey@host when no port is known.
func (n NodeInfo) ConnectString() string {
	if n.PublicKeyInfo == "" {
		return ""
	}
	s := n.PublicKeyInfo + "@" + n.NodeAddress
	if n.NodePort > 0 {
		s += ":" + itoa(n.NodePort)
	}
	return s
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Invoice is a Lightning payment request created for a converted order.
// It is immutable once issued except for the settled fields, which are
// updated exactly once upon settlement.
type Invoice struct {
	PreImageHash   []byte        `json:"preImageHash"`
	Bolt11Invoice  string        `json:"bolt11Invoice"`
	Description    string        `json:"description,omitempty"`
	InvoiceAmount  CryptoAmount  `json:"invoiceAmount"`
	NodeInfo       *NodeInfo     `json:"nodeInfo,omitempty"`
	ExpireDate     time.Time     `json:"expireDate"`
	InvoiceDate    time.Time     `json:"invoiceDate"`
	Settled        bool          `json:"settled"`
	SettledAmount  *CryptoAmount `json:"settledAmount,omitempty"`
	SettlementDate *time.Time    `json:"settlementDate,omitempty"`
}

// PaymentPreImageHash implements Payment.
func (i *Invoice) PaymentPreImageHash() []byte { return i.PreImageHash }

// MinimalInvoice is the invoice view embedded in invoice tokens. Only the
// preimage hash is carried; the full invoice travels in the response body and
// the token stays small.
type MinimalInvoice struct {
	PreImageHash []byte `json:"preImageHash"`
}

// NewMinimalInvoice extracts the token view of an invoice.
func NewMinimalInvoice(invoice *Invoice) *MinimalInvoice {
	return &MinimalInvoice{PreImageHash: invoice.PreImageHash}
}

// Settlement is proof that an invoice's payment was received, usable until
// ValidUntil. ValidFrom supports clock skew tolerance across distributed
// nodes. Settlements are derived from payment data on demand and never
// persisted directly.
type Settlement struct {
	PreImageHash  []byte     `json:"preImageHash"`
	Invoice       *Invoice   `json:"invoice,omitempty"`
	ValidUntil    time.Time  `json:"validUntil"`
	ValidFrom     *time.Time `json:"validFrom,omitempty"`
	PayPerRequest bool       `json:"payPerRequest"`
}

// PaymentPreImageHash implements Payment.
func (s *Settlement) PaymentPreImageHash() []byte { return s.PreImageHash }

// MinimizeData strips the embedded invoice before the settlement is placed
// inside a token claim.
func (s *Settlement) MinimizeData() {
	s.Invoice = nil
}

// Payment is implemented by the value types that correlate to a payment by
// preimage hash: Order, Invoice and Settlement.
type Payment interface {
	PaymentPreImageHash() []byte
}

// RequestPolicyType selects which parts of an HTTP request the fingerprint
// policy digests.
type RequestPolicyType string

const (
	// RequestPolicyURLAndMethod digests the HTTP method and URL only.
	RequestPolicyURLAndMethod RequestPolicyType = "URL_AND_METHOD"
	// RequestPolicyURLMethodAndParameters adds all query and form parameters
	// in a stable order.
	RequestPolicyURLMethodAndParameters RequestPolicyType = "URL_METHOD_AND_PARAMETERS"
	// RequestPolicyWithBody additionally digests the raw request body.
	RequestPolicyWithBody RequestPolicyType = "WITH_BODY"
	// RequestPolicyCustom dispatches to a policy registered by the resource
	// owner under PaymentRequired.CustomPolicy.
	RequestPolicyCustom RequestPolicyType = "CUSTOM"
)

// PaymentRequired declares that a resource is payment protected. It is the
// explicit configuration equivalent of the annotation used by annotation
// driven frameworks, resolved once at route registration time.
type PaymentRequired struct {
	// ArticleID identifies the priced article in the payment handler.
	// Mandatory unless a custom order request generator is used.
	ArticleID string

	// Units is the number of units bought per payment. Zero means one.
	Units int

	// PayPerRequest makes the payment valid for exactly one resource
	// execution, tracked through the executed flag on payment data.
	PayPerRequest bool

	// RequestPolicy selects the fingerprint granularity. Defaults to
	// RequestPolicyURLAndMethod.
	RequestPolicy RequestPolicyType

	// CustomPolicy is the registry key of a custom fingerprint policy,
	// required when RequestPolicy is RequestPolicyCustom.
	CustomPolicy string

	// OrderRequestGenerator is the registry key of a custom order request
	// generator. Empty selects the default generator.
	OrderRequestGenerator string

	// PaymentOptions are forwarded untouched to the payment handler.
	PaymentOptions []PaymentOption
}

// UnitCount returns the declared number of units, defaulting to one.
func (p *PaymentRequired) UnitCount() int {
	if p.Units <= 0 {
		return 1
	}
	return p.Units
}
