package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteSource string

const (
	QuoteSourceLive       QuoteSource = "LIVE"
	QuoteSourceCached     QuoteSource = "CACHED"
	QuoteSourceHistorical QuoteSource = "HISTORICAL_FALLBACK"
	QuoteSourceDefault    QuoteSource = "DEFAULT"
)

// Degraded reports whether a price from this source is anything but a fresh market price.
func (s QuoteSource) Degraded() bool {
	return s != QuoteSourceLive
}

type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Open          decimal.Decimal `json:"open"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	DayChange     decimal.Decimal `json:"day_change"`
	DayChangePct  decimal.Decimal `json:"day_change_pct"`
	Volume        int64           `json:"volume"`
	AsOf          time.Time       `json:"as_of"`
	Source        QuoteSource     `json:"source"`
}

// Bar is one daily OHLCV candle from the market source.
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

type DailyClose struct {
	InstrumentID int64
	OwnerID      int64
	Date         time.Time
	Price        decimal.Decimal
}
