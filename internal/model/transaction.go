package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

type Transaction struct {
	ID           int64
	InstrumentID int64
	OwnerID      int64
	Symbol       string
	TradeDate    time.Time
	Side         Side
	Quantity     int
	Price        decimal.Decimal
	CreatedAt    time.Time
}

// Total is quantity * price.
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(int64(t.Quantity)))
}

// NewTransaction is the input of a trade registration.
type NewTransaction struct {
	InstrumentID int64
	TradeDate    time.Time
	Side         Side
	Quantity     int
	Price        decimal.Decimal
}

type TransactionsSummary struct {
	TotalBought      int
	TotalSold        int
	CurrentQuantity  int
	BoughtValue      decimal.Decimal
	SoldValue        decimal.Decimal
	AvgBuyPrice      decimal.Decimal
	AvgSellPrice     decimal.Decimal
	TransactionCount int
}
