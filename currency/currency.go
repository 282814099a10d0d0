// Package currency converts order amounts into the crypto amounts that end
// up on Lightning invoices. Only identity BTC conversion ships with the
// module; fiat exchange rate lookups belong to external implementations of
// paywall.CurrencyConverter.
package currency

import (
	"context"

	paywall "github.com/lnpaywall/go-paywall"
)

// SameCryptoConverter passes BTC amounts through unchanged, normalizing the
// magnitude to satoshis. Any fiat amount or foreign crypto currency yields an
// InvalidCurrencyError.
type SameCryptoConverter struct{}

// NewSameCryptoConverter returns the identity BTC converter.
func NewSameCryptoConverter() *SameCryptoConverter {
	return &SameCryptoConverter{}
}

func (c *SameCryptoConverter) Convert(_ context.Context, amount paywall.Amount) (paywall.CryptoAmount, error) {
	crypto, ok := amount.(paywall.CryptoAmount)
	if !ok || crypto.CurrencyCode != paywall.CurrencyCodeBTC {
		return paywall.CryptoAmount{}, &paywall.InvalidCurrencyError{CurrencyCode: amount.Currency()}
	}
	switch crypto.Magnitude {
	case "", paywall.MagnitudeNone:
		crypto.Magnitude = paywall.MagnitudeNone
		return crypto, nil
	case paywall.MagnitudeMilli, paywall.MagnitudeNano:
		return crypto, nil
	default:
		return paywall.CryptoAmount{}, &paywall.InvalidCurrencyError{CurrencyCode: amount.Currency()}
	}
}
