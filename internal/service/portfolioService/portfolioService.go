package portfolioService

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 4

type QuoteResolver interface {
	ResolveQuote(ctx context.Context, ownerID int64, symbol string) model.Quote
}

type TickerLookup interface {
	LookupTicker(ctx context.Context, symbol string) (name string, err error)
}

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	InsertUser(ctx context.Context, chatID int64) (userID int64, err error)
	GetUserID(ctx context.Context, chatID int64) (userID int64, err error)
	UserExists(ctx context.Context, userID int64) (bool, error)

	InsertInstrument(ctx context.Context, instrument model.Instrument) (instrumentID int64, err error)
	GetInstrument(ctx context.Context, ownerID, instrumentID int64) (model.Instrument, error)
	GetInstrumentBySymbol(ctx context.Context, ownerID int64, symbol string) (model.Instrument, error)
	ListInstruments(ctx context.Context, ownerID int64, onlyActive bool) ([]model.Instrument, error)
	ListActiveInstruments(ctx context.Context) ([]model.Instrument, error)
	SetInstrumentActive(ctx context.Context, ownerID, instrumentID int64, active bool) error
	DeleteInstrument(ctx context.Context, ownerID, instrumentID int64) error

	InsertTransaction(ctx context.Context, transaction model.Transaction) (transactionID int64, err error)
	GetTransaction(ctx context.Context, ownerID, transactionID int64) (model.Transaction, error)
	DeleteTransaction(ctx context.Context, ownerID, transactionID int64) error
	ListTransactions(ctx context.Context, ownerID int64, instrumentID *int64) ([]model.Transaction, error)

	GetDailyClose(ctx context.Context, ownerID, instrumentID int64, date time.Time) (model.DailyClose, error)

	LockInstrument(ctx context.Context, ownerID, instrumentID int64) error
	GetPosition(ctx context.Context, ownerID, instrumentID int64) (model.Position, error)
	UpsertPosition(ctx context.Context, position model.Position) error
	ListPositions(ctx context.Context, ownerID int64, onlyOpen bool) ([]model.Position, error)
	ListAllPositions(ctx context.Context) ([]model.Position, error)
	DeletePosition(ctx context.Context, ownerID, instrumentID int64) error
}

type Option func(*PortfolioService)

func WithClock(now func() time.Time) Option {
	return func(s *PortfolioService) { s.now = now }
}

type PortfolioService struct {
	repo   Repository
	quotes QuoteResolver
	lookup TickerLookup
	now    func() time.Time
}

func New(repo Repository, quotes QuoteResolver, lookup TickerLookup, opts ...Option) *PortfolioService {
	s := &PortfolioService{
		repo:   repo,
		quotes: quotes,
		lookup: lookup,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PortfolioService) RegisterOwner(ctx context.Context, chatID int64) (ownerID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RegisterOwner"

	slog.Debug("RegisterOwner start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("RegisterOwner finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	ownerID, err = s.repo.InsertUser(ctx, chatID)
	if err == nil {
		return ownerID, nil
	}

	if !errors.Is(err, repository.ErrAlreadyExists) {
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	return s.GetOwnerID(ctx, chatID)
}

func (s *PortfolioService) GetOwnerID(ctx context.Context, chatID int64) (int64, error) {
	ownerID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrOwnerNotFound
		}
		slog.Error("got error from repo.GetUserID", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return 0, err
	}
	return ownerID, nil
}

// ResolveQuote exposes the quote fallback chain for display.
func (s *PortfolioService) ResolveQuote(ctx context.Context, ownerID int64, symbol string) model.Quote {
	return s.quotes.ResolveQuote(ctx, ownerID, symbol)
}

// SaveDailyCloses resolves a quote for every active instrument of every owner.
// Each LIVE resolution stores the day's close as a side effect.
func (s *PortfolioService) SaveDailyCloses(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.SaveDailyCloses"

	instruments, err := s.repo.ListActiveInstruments(ctx)
	if err != nil {
		slog.Error("got error from repo.ListActiveInstruments", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	degraded := 0
	for _, instrument := range instruments {
		if err = ctx.Err(); err != nil {
			return err
		}
		quote := s.quotes.ResolveQuote(ctx, instrument.OwnerID, instrument.Symbol)
		if quote.Source.Degraded() {
			degraded++
		}
	}

	slog.Info("daily closes saved",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int("instruments", len(instruments)),
		slog.Int("degraded", degraded),
	)

	return nil
}

func (s *PortfolioService) instrument(ctx context.Context, ownerID, instrumentID int64) (model.Instrument, error) {
	instrument, err := s.repo.GetInstrument(ctx, ownerID, instrumentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Instrument{}, service.ErrInstrumentNotFound
		}
		slog.Error("got error from repo.GetInstrument", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return model.Instrument{}, err
	}
	return instrument, nil
}

func quantity(q int) decimal.Decimal {
	return decimal.NewFromInt(int64(q))
}
