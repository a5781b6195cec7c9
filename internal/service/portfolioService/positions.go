package portfolioService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/metrics"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/shopspring/decimal"
)

// FoldLedger recomputes quantity and cost basis from the full transaction history of one instrument.
// The result does not depend on the order of transactions.
func FoldLedger(transactions []model.Transaction) model.LedgerFold {
	fold := model.LedgerFold{GrossCost: decimal.Zero, AvgCost: decimal.Zero}

	for _, t := range transactions {
		switch t.Side {
		case model.SideBuy:
			fold.Quantity += t.Quantity
			fold.GrossCost = fold.GrossCost.Add(t.Total())
		case model.SideSell:
			fold.Quantity -= t.Quantity
			fold.GrossCost = fold.GrossCost.Sub(t.Total())
		}
	}

	if fold.Quantity > 0 {
		fold.AvgCost = fold.GrossCost.Div(quantity(fold.Quantity)).Round(moneyPlaces)
	}

	return fold
}

// ReconcilePosition refolds the instrument's ledger under a fresh quote and overwrites its position row.
func (s *PortfolioService) ReconcilePosition(ctx context.Context, ownerID, instrumentID int64) (position model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ReconcilePosition"

	slog.Debug("ReconcilePosition start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("ownerID", ownerID), slog.Int64("instrumentID", instrumentID))
	defer func() {
		slog.Debug("ReconcilePosition finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("instrumentID", instrumentID))
	}()

	instrument, err := s.instrument(ctx, ownerID, instrumentID)
	if err != nil {
		return model.Position{}, err
	}

	quote := s.quotes.ResolveQuote(ctx, ownerID, instrument.Symbol)

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockInstrument(ctx, ownerID, instrumentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrInstrumentNotFound
			}
			return err
		}

		var err error
		position, err = s.reconcile(ctx, instrument, quote)
		return err
	})
	if err != nil {
		slog.Error("can't reconcile position", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Position{}, err
	}

	return position, nil
}

// reconcile must run inside a transaction holding the instrument lock.
func (s *PortfolioService) reconcile(ctx context.Context, instrument model.Instrument, quote model.Quote) (position model.Position, err error) {
	start := time.Now()
	defer func() {
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ReconcileTotal.WithLabelValues(result).Inc()
	}()

	transactions, err := s.repo.ListTransactions(ctx, instrument.OwnerID, &instrument.ID)
	if err != nil {
		return model.Position{}, err
	}

	fold := FoldLedger(transactions)
	if fold.Quantity < 0 {
		return model.Position{}, fmt.Errorf("%w: ledger of %s folds to quantity %d", service.ErrInsufficientBalance, instrument.Symbol, fold.Quantity)
	}

	position = model.Position{
		InstrumentID:   instrument.ID,
		OwnerID:        instrument.OwnerID,
		Symbol:         instrument.Symbol,
		Quantity:       fold.Quantity,
		AvgCost:        fold.AvgCost,
		CurrentPrice:   quote.Price,
		DayPnL:         decimal.Zero,
		AccumulatedPnL: decimal.Zero,
		PriceSource:    quote.Source,
	}

	if fold.Quantity > 0 {
		// unrounded average, only the stored AvgCost and the result are rounded
		avgCost := fold.GrossCost.Div(quantity(fold.Quantity))
		position.AccumulatedPnL = quote.Price.Sub(avgCost).Mul(quantity(fold.Quantity)).Round(moneyPlaces)

		// calendar day minus one, weekends and holidays leave day P&L at zero
		yesterday := utils.Day(s.now()).AddDate(0, 0, -1)
		closing, err := s.repo.GetDailyClose(ctx, instrument.OwnerID, instrument.ID, yesterday)
		switch {
		case err == nil:
			position.DayPnL = quote.Price.Sub(closing.Price).Mul(quantity(fold.Quantity)).Round(moneyPlaces)
		case !errors.Is(err, repository.ErrNotFound):
			return model.Position{}, err
		}
	}

	if err = s.repo.UpsertPosition(ctx, position); err != nil {
		return model.Position{}, err
	}

	position.UpdatedAt = s.now()
	return position, nil
}

func (s *PortfolioService) ListPositions(ctx context.Context, ownerID int64) ([]model.Position, error) {
	positions, err := s.repo.ListPositions(ctx, ownerID, true)
	if err != nil {
		slog.Error("got error from repo.ListPositions", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return nil, err
	}
	return positions, nil
}

func (s *PortfolioService) GetPosition(ctx context.Context, ownerID, instrumentID int64) (model.Position, error) {
	position, err := s.repo.GetPosition(ctx, ownerID, instrumentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Position{}, service.ErrNoPosition
		}
		return model.Position{}, err
	}
	return position, nil
}

// DeletePosition removes a closed position, open positions are kept.
func (s *PortfolioService) DeletePosition(ctx context.Context, ownerID, instrumentID int64) error {
	position, err := s.GetPosition(ctx, ownerID, instrumentID)
	if err != nil {
		return err
	}
	if position.Quantity > 0 {
		return fmt.Errorf("%w: %s holds %d", service.ErrOpenPosition, position.Symbol, position.Quantity)
	}

	err = s.repo.DeletePosition(ctx, ownerID, instrumentID)
	if errors.Is(err, repository.ErrNotFound) {
		return service.ErrNoPosition
	}
	return err
}

// RefreshPositions reconciles every position row of the owner.
func (s *PortfolioService) RefreshPositions(ctx context.Context, ownerID int64) (model.RefreshResult, error) {
	positions, err := s.repo.ListPositions(ctx, ownerID, false)
	if err != nil {
		return model.RefreshResult{}, err
	}
	return s.refresh(ctx, "PortfolioService.RefreshPositions", positions), nil
}

// RefreshAllPositions reconciles every position row of every owner.
func (s *PortfolioService) RefreshAllPositions(ctx context.Context) (model.RefreshResult, error) {
	positions, err := s.repo.ListAllPositions(ctx)
	if err != nil {
		return model.RefreshResult{}, err
	}
	return s.refresh(ctx, "PortfolioService.RefreshAllPositions", positions), nil
}

func (s *PortfolioService) refresh(ctx context.Context, op string, positions []model.Position) model.RefreshResult {
	rqID := utils.GetRequestIDFromCtx(ctx)
	result := model.RefreshResult{Total: len(positions)}

	for _, p := range positions {
		if ctx.Err() != nil {
			result.Failed += result.Total - result.Updated - result.Failed
			break
		}

		if _, err := s.ReconcilePosition(ctx, p.OwnerID, p.InstrumentID); err != nil {
			result.Failed++
			slog.Warn("position refresh failed",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("symbol", p.Symbol),
				slog.String("err", err.Error()),
			)
			continue
		}
		result.Updated++
	}

	slog.Info("positions refreshed",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int("total", result.Total),
		slog.Int("updated", result.Updated),
		slog.Int("failed", result.Failed),
	)

	return result
}

// SummarizePortfolio totals the owner's open positions as stored, without reconciling them.
func (s *PortfolioService) SummarizePortfolio(ctx context.Context, ownerID int64) (model.PortfolioSummary, error) {
	positions, err := s.repo.ListPositions(ctx, ownerID, true)
	if err != nil {
		slog.Error("got error from repo.ListPositions", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return model.PortfolioSummary{}, err
	}

	return Summarize(positions), nil
}

// Summarize aggregates positions with quantity > 0.
func Summarize(positions []model.Position) model.PortfolioSummary {
	summary := model.PortfolioSummary{
		Invested:       decimal.Zero,
		CurrentValue:   decimal.Zero,
		DayPnL:         decimal.Zero,
		AccumulatedPnL: decimal.Zero,
		PercentResult:  decimal.Zero,
	}

	for _, p := range positions {
		if p.Quantity <= 0 {
			continue
		}
		summary.PositionsCount++
		summary.Invested = summary.Invested.Add(p.Invested())
		summary.CurrentValue = summary.CurrentValue.Add(p.CurrentValue())
		summary.DayPnL = summary.DayPnL.Add(p.DayPnL)
		summary.AccumulatedPnL = summary.AccumulatedPnL.Add(p.AccumulatedPnL)
		if p.PriceSource.Degraded() {
			summary.Degraded = true
		}
	}

	if !summary.Invested.IsZero() {
		summary.PercentResult = summary.AccumulatedPnL.Div(summary.Invested).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return summary
}
