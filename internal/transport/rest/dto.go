package rest

import (
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type registerOwnerRequest struct {
	ChatID int64 `json:"chat_id"`
}

type ownerResponse struct {
	OwnerID int64 `json:"owner_id"`
}

type addInstrumentRequest struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type instrumentResponse struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

func toInstrumentResponse(i model.Instrument) instrumentResponse {
	return instrumentResponse{ID: i.ID, Symbol: i.Symbol, Name: i.Name, Active: i.Active, CreatedAt: i.CreatedAt}
}

// registerTransactionRequest identifies the instrument by id or by symbol.
type registerTransactionRequest struct {
	InstrumentID int64           `json:"instrument_id"`
	Symbol       string          `json:"symbol"`
	TradeDate    string          `json:"trade_date"`
	Side         string          `json:"side"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

type transactionResponse struct {
	ID           int64           `json:"id"`
	InstrumentID int64           `json:"instrument_id"`
	Symbol       string          `json:"symbol"`
	TradeDate    string          `json:"trade_date"`
	Side         model.Side      `json:"side"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Total        decimal.Decimal `json:"total"`
}

func toTransactionResponse(t model.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		InstrumentID: t.InstrumentID,
		Symbol:       t.Symbol,
		TradeDate:    t.TradeDate.Format(dateLayout),
		Side:         t.Side,
		Quantity:     t.Quantity,
		Price:        t.Price,
		Total:        t.Total(),
	}
}

type positionResponse struct {
	InstrumentID   int64             `json:"instrument_id"`
	Symbol         string            `json:"symbol"`
	Quantity       int               `json:"quantity"`
	AvgCost        decimal.Decimal   `json:"avg_cost"`
	CurrentPrice   decimal.Decimal   `json:"current_price"`
	Invested       decimal.Decimal   `json:"invested"`
	CurrentValue   decimal.Decimal   `json:"current_value"`
	DayPnL         decimal.Decimal   `json:"day_pnl"`
	AccumulatedPnL decimal.Decimal   `json:"accumulated_pnl"`
	PriceSource    model.QuoteSource `json:"price_source"`
	Degraded       bool              `json:"degraded"`
}

func toPositionResponse(p model.Position) positionResponse {
	return positionResponse{
		InstrumentID:   p.InstrumentID,
		Symbol:         p.Symbol,
		Quantity:       p.Quantity,
		AvgCost:        p.AvgCost,
		CurrentPrice:   p.CurrentPrice,
		Invested:       p.Invested(),
		CurrentValue:   p.CurrentValue(),
		DayPnL:         p.DayPnL,
		AccumulatedPnL: p.AccumulatedPnL,
		PriceSource:    p.PriceSource,
		Degraded:       p.PriceSource.Degraded(),
	}
}

type registerTransactionResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Position    positionResponse    `json:"position"`
}

type transactionsSummaryResponse struct {
	TotalBought      int             `json:"total_bought"`
	TotalSold        int             `json:"total_sold"`
	CurrentQuantity  int             `json:"current_quantity"`
	BoughtValue      decimal.Decimal `json:"bought_value"`
	SoldValue        decimal.Decimal `json:"sold_value"`
	AvgBuyPrice      decimal.Decimal `json:"avg_buy_price"`
	AvgSellPrice     decimal.Decimal `json:"avg_sell_price"`
	TransactionCount int             `json:"transaction_count"`
}

func toTransactionsSummaryResponse(s model.TransactionsSummary) transactionsSummaryResponse {
	return transactionsSummaryResponse(s)
}

type portfolioSummaryResponse struct {
	PositionsCount int             `json:"positions_count"`
	Invested       decimal.Decimal `json:"invested"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	DayPnL         decimal.Decimal `json:"day_pnl"`
	AccumulatedPnL decimal.Decimal `json:"accumulated_pnl"`
	PercentResult  decimal.Decimal `json:"percent_result"`
	Degraded       bool            `json:"degraded"`
}

func toPortfolioSummaryResponse(s model.PortfolioSummary) portfolioSummaryResponse {
	return portfolioSummaryResponse(s)
}

type refreshResponse struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}
