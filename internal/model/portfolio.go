package model

import (
	"github.com/shopspring/decimal"
)

type PortfolioSummary struct {
	PositionsCount int
	Invested       decimal.Decimal
	CurrentValue   decimal.Decimal
	DayPnL         decimal.Decimal
	AccumulatedPnL decimal.Decimal
	PercentResult  decimal.Decimal
	// Degraded is set when at least one position is priced from a quote that is not LIVE.
	Degraded bool
}

type RefreshResult struct {
	Total   int
	Updated int
	Failed  int
}
