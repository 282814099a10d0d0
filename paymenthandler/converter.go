package paymenthandler

import (
	"time"

	paywall "github.com/lnpaywall/go-paywall"
)

// DefaultSettlementValidity applies when a payment record specifies neither a
// settlement duration nor an explicit expire date.
const DefaultSettlementValidity = 24 * time.Hour

// Converter derives Order, Invoice and Settlement values from payment
// records, respecting the record's capability level.
type Converter struct {
	// DefaultValidity overrides DefaultSettlementValidity when non-zero.
	DefaultValidity time.Duration

	clock func() time.Time
}

func (c *Converter) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}

// ToInvoice reconstructs the invoice view of a payment record.
func (c *Converter) ToInvoice(data *Data) *paywall.Invoice {
	invoice := &paywall.Invoice{
		PreImageHash:  data.PreImageHash,
		Bolt11Invoice: data.Bolt11Invoice,
		Description:   data.Description,
		Settled:       data.Settled,
		InvoiceDate:   data.InvoiceDate,
		ExpireDate:    data.InvoiceExpireDate,
	}
	if crypto, ok := data.OrderAmount.(paywall.CryptoAmount); ok {
		invoice.InvoiceAmount = crypto
	}
	if data.Settled {
		amount := data.SettledAmount
		invoice.SettledAmount = &amount
		if !data.SettlementDate.IsZero() {
			date := data.SettlementDate
			invoice.SettlementDate = &date
		}
	}
	return invoice
}

// ToSettlement derives the settlement for a settled payment record. An
// explicit settlement expire date wins over a relative duration; with
// neither, the converter default applies from now.
func (c *Converter) ToSettlement(data *Data, includeInvoice bool) *paywall.Settlement {
	settlement := &paywall.Settlement{
		PreImageHash:  data.PreImageHash,
		PayPerRequest: data.PayPerRequest,
		ValidUntil:    c.validUntil(data),
	}
	if !data.SettlementValidFrom.IsZero() {
		from := data.SettlementValidFrom
		settlement.ValidFrom = &from
	}
	if includeInvoice {
		settlement.Invoice = c.ToInvoice(data)
	}
	return settlement
}

func (c *Converter) validUntil(data *Data) time.Time {
	if data.Level == LevelFull && !data.SettlementExpireDate.IsZero() {
		return data.SettlementExpireDate
	}
	if data.Level != LevelMinimal && data.SettlementDuration > 0 {
		base := data.SettlementDate
		if base.IsZero() {
			base = c.now()
		}
		return base.Add(data.SettlementDuration)
	}
	validity := c.DefaultValidity
	if validity <= 0 {
		validity = DefaultSettlementValidity
	}
	return c.now().Add(validity)
}
