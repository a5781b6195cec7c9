package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	InstrumentID   int64
	OwnerID        int64
	Symbol         string
	Quantity       int
	AvgCost        decimal.Decimal
	CurrentPrice   decimal.Decimal
	DayPnL         decimal.Decimal
	AccumulatedPnL decimal.Decimal
	PriceSource    QuoteSource
	UpdatedAt      time.Time
}

// Invested is quantity * avg cost.
func (p Position) Invested() decimal.Decimal {
	return p.AvgCost.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// CurrentValue is quantity * current price.
func (p Position) CurrentValue() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// LedgerFold is the result of folding the full transaction history of one instrument.
type LedgerFold struct {
	Quantity  int
	GrossCost decimal.Decimal
	AvgCost   decimal.Decimal
}
