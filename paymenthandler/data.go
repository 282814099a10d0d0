// Package paymenthandler tracks payment state per preimage hash. It prices
// order requests, records invoices and settlements, republishes Lightning
// events as payment events and derives Settlement values on demand. State
// lives behind the Store interface; an in-memory store ships with the
// package.
package paymenthandler

import (
	"time"

	paywall "github.com/lnpaywall/go-paywall"
)

// Level tells how much settlement detail a payment record carries. Higher
// levels include everything below them.
type Level string

const (
	// LevelMinimal records only the invoice and whether it settled.
	// Settlement validity falls back to the handler default.
	LevelMinimal Level = "MINIMAL"
	// LevelStandard adds amounts, dates and a relative settlement
	// validity duration.
	LevelStandard Level = "STANDARD"
	// LevelFull adds an explicit settlement expire window.
	LevelFull Level = "FULL"
)

// Data is one payment record. Which fields are meaningful depends on Level;
// PayPerRequest and Executed apply orthogonally at every level.
type Data struct {
	PreImageHash  []byte
	Level         Level
	Bolt11Invoice string
	Settled       bool

	// Standard level fields.
	Description        string
	OrderAmount        paywall.Amount
	InvoiceDate        time.Time
	InvoiceExpireDate  time.Time
	SettledAmount      paywall.CryptoAmount
	SettlementDate     time.Time
	SettlementDuration time.Duration

	// Full level fields. A non-zero SettlementExpireDate overrides
	// SettlementDuration.
	SettlementExpireDate time.Time
	SettlementValidFrom  time.Time

	// Pay-per-request tracking.
	PayPerRequest bool
	Executed      bool
}

// clone returns an independent copy so store internals never alias caller
// state.
func (d *Data) clone() *Data {
	cp := *d
	cp.PreImageHash = append([]byte(nil), d.PreImageHash...)
	return &cp
}
