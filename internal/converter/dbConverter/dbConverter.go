package dbConverter

import (
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
)

func ConvertInstrument(row dbModel.Instrument) model.Instrument {
	return model.Instrument{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Symbol:    row.Symbol,
		Name:      row.Name,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
	}
}

func ConvertTransaction(row dbModel.Transaction) model.Transaction {
	return model.Transaction{
		ID:           row.ID,
		InstrumentID: row.InstrumentID,
		OwnerID:      row.OwnerID,
		Symbol:       row.Symbol,
		TradeDate:    row.TradeDate,
		Side:         model.Side(row.Side),
		Quantity:     row.Quantity,
		Price:        row.Price,
		CreatedAt:    row.CreatedAt,
	}
}

func ConvertDailyClose(row dbModel.DailyClose) model.DailyClose {
	return model.DailyClose{
		InstrumentID: row.InstrumentID,
		OwnerID:      row.OwnerID,
		Date:         row.CloseDate,
		Price:        row.ClosePrice,
	}
}

func ConvertPosition(row dbModel.Position) model.Position {
	return model.Position{
		InstrumentID:   row.InstrumentID,
		OwnerID:        row.OwnerID,
		Symbol:         row.Symbol,
		Quantity:       row.Quantity,
		AvgCost:        row.AvgCost,
		CurrentPrice:   row.CurrentPrice,
		DayPnL:         row.DayPnL,
		AccumulatedPnL: row.AccumulatedPnL,
		PriceSource:    model.QuoteSource(row.PriceSource),
		UpdatedAt:      row.UpdatedAt,
	}
}
