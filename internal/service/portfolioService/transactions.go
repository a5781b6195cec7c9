package portfolioService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/metrics"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/shopspring/decimal"
)

func validateTransaction(tx model.NewTransaction) error {
	switch {
	case !tx.Side.Valid():
		return fmt.Errorf("%w: unknown side %q", service.ErrInvalidTransaction, tx.Side)
	case tx.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", service.ErrInvalidTransaction)
	case !tx.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive", service.ErrInvalidTransaction)
	case tx.TradeDate.IsZero():
		return fmt.Errorf("%w: trade date is required", service.ErrInvalidTransaction)
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidTransaction):
		return "invalid"
	case errors.Is(err, service.ErrInstrumentNotFound):
		return "instrument_not_found"
	case errors.Is(err, service.ErrInstrumentInactive):
		return "inactive"
	case errors.Is(err, service.ErrNoPosition):
		return "no_position"
	case errors.Is(err, service.ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return ""
	}
}

// RegisterTransaction appends a trade to the ledger and reconciles the instrument's position.
// A SELL is checked against the position snapshot before the quote is resolved and again
// under the instrument lock, so a rejected trade neither hits the market nor writes anything.
func (s *PortfolioService) RegisterTransaction(ctx context.Context, ownerID int64, newTx model.NewTransaction) (transaction model.Transaction, position model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RegisterTransaction"

	slog.Debug("RegisterTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("instrumentID", newTx.InstrumentID),
		slog.String("side", string(newTx.Side)),
		slog.Int("quantity", newTx.Quantity),
		slog.String("price", newTx.Price.String()),
	)
	defer func() {
		if reason := rejectReason(err); reason != "" {
			metrics.TransactionsRejected.WithLabelValues(reason).Inc()
			slog.Info("transaction rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("reason", err.Error()))
		}
		slog.Debug("RegisterTransaction finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	if err = validateTransaction(newTx); err != nil {
		return model.Transaction{}, model.Position{}, err
	}

	instrument, err := s.instrument(ctx, ownerID, newTx.InstrumentID)
	if err != nil {
		return model.Transaction{}, model.Position{}, err
	}
	if !instrument.Active {
		return model.Transaction{}, model.Position{}, fmt.Errorf("%w: %s", service.ErrInstrumentInactive, instrument.Symbol)
	}

	transaction = model.Transaction{
		InstrumentID: instrument.ID,
		OwnerID:      ownerID,
		Symbol:       instrument.Symbol,
		TradeDate:    utils.Day(newTx.TradeDate),
		Side:         newTx.Side,
		Quantity:     newTx.Quantity,
		Price:        newTx.Price.Round(moneyPlaces),
	}

	if transaction.Side == model.SideSell {
		if err = s.checkSell(ctx, instrument, transaction.Quantity); err != nil {
			if rejectReason(err) == "" {
				slog.Error("can't check position", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			}
			return model.Transaction{}, model.Position{}, err
		}
	}

	quote := s.quotes.ResolveQuote(ctx, ownerID, instrument.Symbol)

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockInstrument(ctx, ownerID, instrument.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrInstrumentNotFound
			}
			return err
		}

		// the position may have moved while the quote was resolving
		if transaction.Side == model.SideSell {
			if err := s.checkSell(ctx, instrument, transaction.Quantity); err != nil {
				return err
			}
		}

		id, err := s.repo.InsertTransaction(ctx, transaction)
		if err != nil {
			return err
		}
		transaction.ID = id

		position, err = s.reconcile(ctx, instrument, quote)
		return err
	})
	if err != nil {
		if rejectReason(err) == "" {
			slog.Error("can't register transaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return model.Transaction{}, model.Position{}, err
	}

	return transaction, position, nil
}

func (s *PortfolioService) checkSell(ctx context.Context, instrument model.Instrument, qty int) error {
	position, err := s.repo.GetPosition(ctx, instrument.OwnerID, instrument.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", service.ErrNoPosition, instrument.Symbol)
		}
		return err
	}

	if qty > position.Quantity {
		return fmt.Errorf("%w: selling %d %s, holding %d", service.ErrInsufficientBalance, qty, instrument.Symbol, position.Quantity)
	}

	return nil
}

// DeleteTransaction removes a ledger entry and reconciles the affected position.
// Deleting a BUY that later SELLs depend on is refused.
func (s *PortfolioService) DeleteTransaction(ctx context.Context, ownerID, transactionID int64) (position model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteTransaction"

	slog.Debug("DeleteTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	defer func() {
		slog.Debug("DeleteTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	}()

	transaction, err := s.repo.GetTransaction(ctx, ownerID, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Position{}, service.ErrTransactionNotFound
		}
		return model.Position{}, err
	}

	instrument, err := s.instrument(ctx, ownerID, transaction.InstrumentID)
	if err != nil {
		return model.Position{}, err
	}

	quote := s.quotes.ResolveQuote(ctx, ownerID, instrument.Symbol)

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockInstrument(ctx, ownerID, instrument.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrInstrumentNotFound
			}
			return err
		}

		if err := s.repo.DeleteTransaction(ctx, ownerID, transactionID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrTransactionNotFound
			}
			return err
		}

		var err error
		position, err = s.reconcile(ctx, instrument, quote)
		return err
	})
	if err != nil {
		slog.Error("can't delete transaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Position{}, err
	}

	return position, nil
}

// ListTransactions returns the owner's ledger newest first, narrowed to one instrument when instrumentID is set.
func (s *PortfolioService) ListTransactions(ctx context.Context, ownerID int64, instrumentID *int64) ([]model.Transaction, error) {
	if instrumentID != nil {
		if _, err := s.instrument(ctx, ownerID, *instrumentID); err != nil {
			return nil, err
		}
	}

	transactions, err := s.repo.ListTransactions(ctx, ownerID, instrumentID)
	if err != nil {
		slog.Error("got error from repo.ListTransactions", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return nil, err
	}
	return transactions, nil
}

func (s *PortfolioService) TransactionsSummary(ctx context.Context, ownerID, instrumentID int64) (model.TransactionsSummary, error) {
	transactions, err := s.ListTransactions(ctx, ownerID, &instrumentID)
	if err != nil {
		return model.TransactionsSummary{}, err
	}
	return SummarizeTransactions(transactions), nil
}

func SummarizeTransactions(transactions []model.Transaction) model.TransactionsSummary {
	summary := model.TransactionsSummary{
		BoughtValue:      decimal.Zero,
		SoldValue:        decimal.Zero,
		AvgBuyPrice:      decimal.Zero,
		AvgSellPrice:     decimal.Zero,
		TransactionCount: len(transactions),
	}

	for _, t := range transactions {
		switch t.Side {
		case model.SideBuy:
			summary.TotalBought += t.Quantity
			summary.BoughtValue = summary.BoughtValue.Add(t.Total())
		case model.SideSell:
			summary.TotalSold += t.Quantity
			summary.SoldValue = summary.SoldValue.Add(t.Total())
		}
	}

	summary.CurrentQuantity = summary.TotalBought - summary.TotalSold
	if summary.TotalBought > 0 {
		summary.AvgBuyPrice = summary.BoughtValue.Div(quantity(summary.TotalBought)).Round(moneyPlaces)
	}
	if summary.TotalSold > 0 {
		summary.AvgSellPrice = summary.SoldValue.Div(quantity(summary.TotalSold)).Round(moneyPlaces)
	}

	return summary
}
