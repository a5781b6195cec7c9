package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID           int64           `db:"transaction_id"`
	InstrumentID int64           `db:"instrument_id"`
	OwnerID      int64           `db:"owner_id"`
	Symbol       string          `db:"symbol"`
	TradeDate    time.Time       `db:"trade_date"`
	Side         string          `db:"side"`
	Quantity     int             `db:"quantity"`
	Price        decimal.Decimal `db:"price"`
	CreatedAt    time.Time       `db:"dt_create"`
}

type DailyClose struct {
	InstrumentID int64           `db:"instrument_id"`
	OwnerID      int64           `db:"owner_id"`
	CloseDate    time.Time       `db:"close_date"`
	ClosePrice   decimal.Decimal `db:"close_price"`
}

type Position struct {
	InstrumentID   int64           `db:"instrument_id"`
	OwnerID        int64           `db:"owner_id"`
	Symbol         string          `db:"symbol"`
	Quantity       int             `db:"quantity"`
	AvgCost        decimal.Decimal `db:"avg_cost"`
	CurrentPrice   decimal.Decimal `db:"current_price"`
	DayPnL         decimal.Decimal `db:"day_pnl"`
	AccumulatedPnL decimal.Decimal `db:"accumulated_pnl"`
	PriceSource    string          `db:"price_source"`
	UpdatedAt      time.Time       `db:"dt_update"`
}
