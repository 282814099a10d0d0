package paywall

import (
	"encoding/json"
	"fmt"
)

// Magnitude indicates the unit scale of a CryptoAmount value. Lightning
// supports sub-satoshi precision, so an amount of 10 with magnitude MILLI
// means 10 millisatoshi when the currency code is BTC.
type Magnitude string

const (
	MagnitudeNone  Magnitude = "NONE"
	MagnitudeMilli Magnitude = "MILLI"
	MagnitudeNano  Magnitude = "NANO"
)

// CurrencyCodeBTC is the currency code used for Bitcoin amounts, denominated
// in satoshis unless a magnitude says otherwise.
const CurrencyCodeBTC = "BTC"

// Amount is a tagged union of FiatAmount and CryptoAmount. Order amounts may
// be either; invoice amounts are always crypto.
type Amount interface {
	// CurrencyCode returns the ISO 4217 code for fiat amounts or the
	// crypto currency code (e.g. "BTC") for crypto amounts.
	Currency() string

	amountType() string
}

// CryptoAmount is an amount in a crypto currency's smallest unit, adjusted
// by Magnitude.
type CryptoAmount struct {
	Value        int64     `json:"value"`
	CurrencyCode string    `json:"currencyCode"`
	Magnitude    Magnitude `json:"magnitude"`
}

// NewBTC creates a CryptoAmount of the given number of satoshis.
func NewBTC(satoshis int64) CryptoAmount {
	return CryptoAmount{Value: satoshis, CurrencyCode: CurrencyCodeBTC, Magnitude: MagnitudeNone}
}

func (a CryptoAmount) Currency() string { return a.CurrencyCode }

func (a CryptoAmount) amountType() string { return amountTypeCrypto }

// FiatAmount is an amount in a fiat currency. It must be converted to a
// CryptoAmount by a CurrencyConverter before an invoice can be created.
type FiatAmount struct {
	Value        float64 `json:"value"`
	CurrencyCode string  `json:"currencyCode"`
}

func (a FiatAmount) Currency() string { return a.CurrencyCode }

func (a FiatAmount) amountType() string { return amountTypeFiat }

const (
	amountTypeCrypto = "CRYPTO"
	amountTypeFiat   = "FIAT"
)

// amountEnvelope is the wire form of the Amount union inside JSON documents
// such as token claims.
type amountEnvelope struct {
	Type         string    `json:"type"`
	Value        float64   `json:"value"`
	CurrencyCode string    `json:"currencyCode"`
	Magnitude    Magnitude `json:"magnitude,omitempty"`
}

// MarshalAmount encodes an Amount with an explicit type tag.
func MarshalAmount(a Amount) ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	switch v := a.(type) {
	case CryptoAmount:
		return json.Marshal(amountEnvelope{Type: amountTypeCrypto, Value: float64(v.Value), CurrencyCode: v.CurrencyCode, Magnitude: v.Magnitude})
	case FiatAmount:
		return json.Marshal(amountEnvelope{Type: amountTypeFiat, Value: v.Value, CurrencyCode: v.CurrencyCode})
	default:
		return nil, fmt.Errorf("paywall: unknown amount type %T", a)
	}
}

// UnmarshalAmount decodes an Amount encoded by MarshalAmount.
func UnmarshalAmount(data []byte) (Amount, error) {
	if string(data) == "null" {
		return nil, nil
	}
	var env amountEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("paywall: failed to unmarshal amount: %w", err)
	}
	switch env.Type {
	case amountTypeCrypto:
		mag := env.Magnitude
		if mag == "" {
			mag = MagnitudeNone
		}
		return CryptoAmount{Value: int64(env.Value), CurrencyCode: env.CurrencyCode, Magnitude: mag}, nil
	case amountTypeFiat:
		return FiatAmount{Value: env.Value, CurrencyCode: env.CurrencyCode}, nil
	default:
		return nil, fmt.Errorf("paywall: unknown amount type tag %q", env.Type)
	}
}
