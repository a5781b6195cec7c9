package portfolioService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/utils"
)

const maxSymbolLen = 10

func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || len(symbol) > maxSymbolLen || strings.ContainsAny(symbol, " \t\n/") {
		return "", fmt.Errorf("%w: %q", service.ErrInvalidTicker, symbol)
	}
	return symbol, nil
}

// AddInstrument registers a ticker for the owner. The market lookup supplies the display name,
// when the lookup itself is unavailable the ticker is accepted as a manual entry.
func (s *PortfolioService) AddInstrument(ctx context.Context, ownerID int64, symbol, name string) (instrument model.Instrument, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AddInstrument"

	slog.Debug("AddInstrument start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("ownerID", ownerID), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("AddInstrument finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	symbol, err = NormalizeSymbol(symbol)
	if err != nil {
		return model.Instrument{}, err
	}

	exists, err := s.repo.UserExists(ctx, ownerID)
	if err != nil {
		return model.Instrument{}, err
	}
	if !exists {
		return model.Instrument{}, service.ErrOwnerNotFound
	}

	lookedUp, err := s.lookup.LookupTicker(ctx, symbol)
	switch {
	case err == nil:
		if strings.TrimSpace(name) == "" {
			name = lookedUp
		}
	case errors.Is(err, externalApi.ErrNotFound):
		return model.Instrument{}, fmt.Errorf("%w: %s is unknown to the market source", service.ErrInvalidTicker, symbol)
	default:
		slog.Warn("ticker lookup unavailable, adding manually", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}
	if strings.TrimSpace(name) == "" {
		name = symbol
	}

	instrument = model.Instrument{
		OwnerID: ownerID,
		Symbol:  symbol,
		Name:    strings.TrimSpace(name),
		Active:  true,
	}

	instrument.ID, err = s.repo.InsertInstrument(ctx, instrument)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.Instrument{}, fmt.Errorf("%w: %s", service.ErrAlreadyExists, symbol)
		}
		slog.Error("got error from repo.InsertInstrument", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Instrument{}, err
	}

	return instrument, nil
}

func (s *PortfolioService) ListInstruments(ctx context.Context, ownerID int64, onlyActive bool) ([]model.Instrument, error) {
	return s.repo.ListInstruments(ctx, ownerID, onlyActive)
}

// InstrumentBySymbol finds one of the owner's instruments by ticker.
func (s *PortfolioService) InstrumentBySymbol(ctx context.Context, ownerID int64, symbol string) (model.Instrument, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return model.Instrument{}, err
	}

	instrument, err := s.repo.GetInstrumentBySymbol(ctx, ownerID, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Instrument{}, service.ErrInstrumentNotFound
		}
		return model.Instrument{}, err
	}
	return instrument, nil
}

func (s *PortfolioService) DeactivateInstrument(ctx context.Context, ownerID, instrumentID int64) error {
	return s.setActive(ctx, ownerID, instrumentID, false)
}

func (s *PortfolioService) ReactivateInstrument(ctx context.Context, ownerID, instrumentID int64) error {
	return s.setActive(ctx, ownerID, instrumentID, true)
}

func (s *PortfolioService) setActive(ctx context.Context, ownerID, instrumentID int64, active bool) error {
	err := s.repo.SetInstrumentActive(ctx, ownerID, instrumentID, active)
	if errors.Is(err, repository.ErrNotFound) {
		return service.ErrInstrumentNotFound
	}
	return err
}

// DeleteInstrument drops the instrument together with its ledger, closes and position.
// An instrument with an open position can't be deleted.
func (s *PortfolioService) DeleteInstrument(ctx context.Context, ownerID, instrumentID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteInstrument"

	return s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockInstrument(ctx, ownerID, instrumentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrInstrumentNotFound
			}
			return err
		}

		position, err := s.repo.GetPosition(ctx, ownerID, instrumentID)
		switch {
		case err == nil && position.Quantity > 0:
			return fmt.Errorf("%w: %s holds %d", service.ErrOpenPosition, position.Symbol, position.Quantity)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return err
		}

		if err = s.repo.DeleteInstrument(ctx, ownerID, instrumentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrInstrumentNotFound
			}
			slog.Error("got error from repo.DeleteInstrument", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return err
		}
		return nil
	})
}
