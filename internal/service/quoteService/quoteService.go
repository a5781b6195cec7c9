package quoteService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/metrics"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/shopspring/decimal"
)

const (
	moneyPlaces   = 4
	percentPlaces = 2
)

var (
	errTierMiss    = errors.New("tier has no quote")
	defaultPrice   = decimal.NewFromInt(100)
	hundredPercent = decimal.NewFromInt(100)
)

type Cache interface {
	Get(ctx context.Context, key string) (model.Quote, error)
	Put(ctx context.Context, key string, quote model.Quote) error
	PurgeExpired(ctx context.Context) (int, error)
}

type MarketSource interface {
	GetDailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error)
}

type HistoricalStore interface {
	GetLatestDailyClose(ctx context.Context, ownerID int64, symbol string) (model.DailyClose, error)
	GetDailyCloseBefore(ctx context.Context, ownerID int64, symbol string, date time.Time) (model.DailyClose, error)
	UpsertDailyClose(ctx context.Context, ownerID int64, symbol string, date time.Time, price decimal.Decimal) error
}

type Option func(*QuoteService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *QuoteService) { s.now = now }
}

// WithSleep replaces the rate limiting pause before live fetches.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *QuoteService) { s.sleep = sleep }
}

type QuoteService struct {
	cache       Cache
	market      MarketSource
	history     HistoricalStore
	historyDays int
	delayMin    time.Duration
	delayMax    time.Duration
	apiTimeout  time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(cfg *config.Config, cache Cache, market MarketSource, history HistoricalStore, opts ...Option) *QuoteService {
	s := &QuoteService{
		cache:       cache,
		market:      market,
		history:     history,
		historyDays: cfg.Quotes.HistoryDays,
		delayMin:    cfg.Quotes.DelayMin,
		delayMax:    cfg.Quotes.DelayMax,
		apiTimeout:  cfg.Quotes.ApiTimeout,
		now:         time.Now,
		sleep:       sleepCtx,
	}
	if s.historyDays < 2 {
		s.historyDays = 5
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type quoteRequest struct {
	ownerID int64
	symbol  string
	now     time.Time
}

// cacheKey buckets by minute so redraws within the same minute share one fetch.
func (r quoteRequest) cacheKey() string {
	return fmt.Sprintf("quote:%d:%s:%s", r.ownerID, r.symbol, r.now.Truncate(time.Minute).Format("200601021504"))
}

type tier struct {
	name    string
	resolve func(ctx context.Context, req quoteRequest) (model.Quote, error)
}

func (s *QuoteService) tiers() []tier {
	return []tier{
		{name: "cache", resolve: s.fromCache},
		{name: "live", resolve: s.fromMarket},
		{name: "historical", resolve: s.fromHistory},
		{name: "default", resolve: s.fallbackQuote},
	}
}

// ResolveQuote never fails: when every source is unavailable it returns a DEFAULT quote,
// callers must look at Quote.Source before trusting the price.
func (s *QuoteService) ResolveQuote(ctx context.Context, ownerID int64, symbol string) model.Quote {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteService.ResolveQuote"

	req := quoteRequest{
		ownerID: ownerID,
		symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		now:     s.now(),
	}

	slog.Debug("ResolveQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("ownerID", ownerID), slog.String("symbol", req.symbol))

	for _, t := range s.tiers() {
		quote, err := t.resolve(ctx, req)
		if err != nil {
			metrics.QuoteTierFailures.WithLabelValues(t.name).Inc()
			level := slog.LevelWarn
			if errors.Is(err, errTierMiss) {
				level = slog.LevelDebug
			}
			slog.Log(ctx, level, "quote tier fell through",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("tier", t.name),
				slog.String("symbol", req.symbol),
				slog.String("err", err.Error()),
			)
			continue
		}

		metrics.QuotesResolved.WithLabelValues(string(quote.Source)).Inc()
		slog.Debug("ResolveQuote finished",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("symbol", req.symbol),
			slog.String("source", string(quote.Source)),
			slog.String("price", quote.Price.String()),
		)
		return quote
	}

	// unreachable, the default tier always succeeds
	quote, _ := s.fallbackQuote(ctx, req)
	return quote
}

func (s *QuoteService) fromCache(ctx context.Context, req quoteRequest) (model.Quote, error) {
	if _, err := s.cache.PurgeExpired(ctx); err != nil {
		slog.Warn("quote cache purge failed", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}

	quote, err := s.cache.Get(ctx, req.cacheKey())
	if err != nil {
		return model.Quote{}, fmt.Errorf("%w: %w", errTierMiss, err)
	}

	quote.Source = model.QuoteSourceCached
	return quote, nil
}

func (s *QuoteService) fromMarket(ctx context.Context, req quoteRequest) (model.Quote, error) {
	if err := s.sleep(ctx, s.randomDelay()); err != nil {
		return model.Quote{}, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.apiTimeout)
	defer cancel()

	bars, err := s.market.GetDailyBars(fetchCtx, req.symbol, s.historyDays)
	if err != nil {
		return model.Quote{}, err
	}
	if len(bars) == 0 {
		return model.Quote{}, errors.New("market source returned no bars")
	}

	quote := QuoteFromBars(req.symbol, bars)

	if err = s.cache.Put(ctx, req.cacheKey(), quote); err != nil {
		slog.Warn("can't put quote into cache", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}

	if err = s.history.UpsertDailyClose(ctx, req.ownerID, req.symbol, quote.AsOf, quote.Price); err != nil {
		slog.Error("can't save daily close", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("symbol", req.symbol), slog.String("err", err.Error()))
	}

	return quote, nil
}

func (s *QuoteService) fromHistory(ctx context.Context, req quoteRequest) (model.Quote, error) {
	latest, err := s.history.GetLatestDailyClose(ctx, req.ownerID, req.symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Quote{}, fmt.Errorf("%w: no stored closes", errTierMiss)
		}
		return model.Quote{}, err
	}

	previous := latest.Price
	before, err := s.history.GetDailyCloseBefore(ctx, req.ownerID, req.symbol, latest.Date)
	switch {
	case err == nil:
		previous = before.Price
	case !errors.Is(err, repository.ErrNotFound):
		slog.Warn("can't read previous close, assuming no change",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("symbol", req.symbol),
			slog.String("err", err.Error()),
		)
	}

	change, pct := dayChange(latest.Price, previous)

	return model.Quote{
		Symbol:        req.symbol,
		Price:         latest.Price.Round(moneyPlaces),
		Open:          latest.Price.Round(moneyPlaces),
		PreviousClose: previous.Round(moneyPlaces),
		DayChange:     change,
		DayChangePct:  pct,
		Volume:        0,
		AsOf:          latest.Date,
		Source:        model.QuoteSourceHistorical,
	}, nil
}

func (s *QuoteService) fallbackQuote(_ context.Context, req quoteRequest) (model.Quote, error) {
	return model.Quote{
		Symbol:        req.symbol,
		Price:         defaultPrice,
		Open:          defaultPrice,
		PreviousClose: defaultPrice,
		DayChange:     decimal.Zero,
		DayChangePct:  decimal.Zero,
		Volume:        0,
		AsOf:          utils.Day(req.now),
		Source:        model.QuoteSourceDefault,
	}, nil
}

// QuoteFromBars builds a LIVE quote from daily bars ordered oldest first.
// With a single bar yesterday equals today.
func QuoteFromBars(symbol string, bars []model.Bar) model.Quote {
	today := bars[len(bars)-1]
	yesterday := today
	if len(bars) > 1 {
		yesterday = bars[len(bars)-2]
	}

	change, pct := dayChange(today.Close, yesterday.Close)

	return model.Quote{
		Symbol:        symbol,
		Price:         today.Close.Round(moneyPlaces),
		Open:          today.Open.Round(moneyPlaces),
		PreviousClose: yesterday.Close.Round(moneyPlaces),
		DayChange:     change,
		DayChangePct:  pct,
		Volume:        today.Volume,
		AsOf:          utils.Day(today.Date),
		Source:        model.QuoteSourceLive,
	}
}

// dayChange returns the absolute change rounded to 4 places and the percent change rounded to 2.
// A zero previous close yields a zero percent.
func dayChange(current, previous decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	change := current.Sub(previous)
	if previous.IsZero() {
		return change.Round(moneyPlaces), decimal.Zero
	}
	return change.Round(moneyPlaces), change.Div(previous).Mul(hundredPercent).Round(percentPlaces)
}

func (s *QuoteService) randomDelay() time.Duration {
	if s.delayMax <= s.delayMin {
		return s.delayMin
	}
	return s.delayMin + time.Duration(rand.Int64N(int64(s.delayMax-s.delayMin)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
