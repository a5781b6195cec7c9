package portfolioService_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/internal/service/portfolioService"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatID int64 = 777

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type testEnv struct {
	svc     *portfolioService.PortfolioService
	repo    *fakeRepo
	quotes  *fakeQuotes
	ownerID int64
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		repo:   newFakeRepo(),
		quotes: newFakeQuotes(),
		now:    time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	e.svc = portfolioService.New(e.repo, e.quotes, fakeLookup{name: "Some Corp"},
		portfolioService.WithClock(func() time.Time { return e.now }),
	)

	ownerID, err := e.svc.RegisterOwner(context.Background(), chatID)
	require.NoError(t, err)
	e.ownerID = ownerID

	return e
}

func (e *testEnv) addInstrument(t *testing.T, symbol string) model.Instrument {
	t.Helper()
	instrument, err := e.svc.AddInstrument(context.Background(), e.ownerID, symbol, "")
	require.NoError(t, err)
	return instrument
}

func (e *testEnv) trade(t *testing.T, instrumentID int64, side model.Side, qty int, price, date string) (model.Position, error) {
	t.Helper()
	_, position, err := e.svc.RegisterTransaction(context.Background(), e.ownerID, model.NewTransaction{
		InstrumentID: instrumentID,
		TradeDate:    day(date),
		Side:         side,
		Quantity:     qty,
		Price:        d(price),
	})
	return position, err
}

func TestRegisterOwner_Idempotent(t *testing.T) {
	e := newTestEnv(t)

	again, err := e.svc.RegisterOwner(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, e.ownerID, again)

	_, err = e.svc.GetOwnerID(context.Background(), 1)
	assert.ErrorIs(t, err, service.ErrOwnerNotFound)
}

func TestEndToEndScenario(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	e.quotes.set("X", "50", model.QuoteSourceLive)
	position, err := e.trade(t, x.ID, model.SideBuy, 10, "50", "2024-03-13")
	require.NoError(t, err)
	assert.Equal(t, 10, position.Quantity)
	assertDecimal(t, "50", position.AvgCost)

	e.quotes.set("X", "55", model.QuoteSourceLive)
	position, err = e.svc.ReconcilePosition(context.Background(), e.ownerID, x.ID)
	require.NoError(t, err)
	assertDecimal(t, "50", position.AccumulatedPnL)

	position, err = e.trade(t, x.ID, model.SideSell, 4, "60", "2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, 6, position.Quantity)
	assertDecimal(t, "43.3333", position.AvgCost)
	assertDecimal(t, "55", position.CurrentPrice)
	assertDecimal(t, "70", position.AccumulatedPnL)

	_, err = e.trade(t, x.ID, model.SideSell, 100, "60", "2024-03-14")
	assert.ErrorIs(t, err, service.ErrInsufficientBalance)

	stored, err := e.svc.GetPosition(context.Background(), e.ownerID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.Quantity)
	assertDecimal(t, "43.3333", stored.AvgCost)
}

func TestRegisterTransaction_OversellWritesNothing(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideBuy, 6, "10", "2024-03-13")
	require.NoError(t, err)

	inserts, upserts, quoteCalls := e.repo.inserts, e.repo.upserts, e.quotes.calls
	txs, err := e.svc.ListTransactions(context.Background(), e.ownerID, &x.ID)
	require.NoError(t, err)

	_, err = e.trade(t, x.ID, model.SideSell, 7, "10", "2024-03-14")
	require.ErrorIs(t, err, service.ErrInsufficientBalance)

	assert.Equal(t, inserts, e.repo.inserts)
	assert.Equal(t, upserts, e.repo.upserts)
	assert.Equal(t, quoteCalls, e.quotes.calls, "a rejected sell doesn't resolve a quote")

	after, err := e.svc.ListTransactions(context.Background(), e.ownerID, &x.ID)
	require.NoError(t, err)
	assert.Equal(t, txs, after)
}

func TestRegisterTransaction_SellWithoutPosition(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideSell, 1, "10", "2024-03-14")

	assert.ErrorIs(t, err, service.ErrNoPosition)
	assert.Zero(t, e.repo.inserts)
	assert.Zero(t, e.quotes.calls)
}

func TestRegisterTransaction_SellWholePosition(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideBuy, 5, "10", "2024-03-13")
	require.NoError(t, err)
	position, err := e.trade(t, x.ID, model.SideSell, 5, "12", "2024-03-14")
	require.NoError(t, err)

	assert.Equal(t, 0, position.Quantity)
	assertDecimal(t, "0", position.AvgCost)
	assertDecimal(t, "0", position.AccumulatedPnL)
	assertDecimal(t, "0", position.DayPnL)

	positions, err := e.svc.ListPositions(context.Background(), e.ownerID)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestRegisterTransaction_Validation(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	tests := []struct {
		name string
		tx   model.NewTransaction
		want error
	}{
		{"unknown side", model.NewTransaction{InstrumentID: x.ID, TradeDate: day("2024-03-14"), Side: "HOLD", Quantity: 1, Price: d("1")}, service.ErrInvalidTransaction},
		{"zero quantity", model.NewTransaction{InstrumentID: x.ID, TradeDate: day("2024-03-14"), Side: model.SideBuy, Quantity: 0, Price: d("1")}, service.ErrInvalidTransaction},
		{"negative price", model.NewTransaction{InstrumentID: x.ID, TradeDate: day("2024-03-14"), Side: model.SideBuy, Quantity: 1, Price: d("-1")}, service.ErrInvalidTransaction},
		{"no date", model.NewTransaction{InstrumentID: x.ID, Side: model.SideBuy, Quantity: 1, Price: d("1")}, service.ErrInvalidTransaction},
		{"foreign instrument", model.NewTransaction{InstrumentID: 9999, TradeDate: day("2024-03-14"), Side: model.SideBuy, Quantity: 1, Price: d("1")}, service.ErrInstrumentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.svc.RegisterTransaction(context.Background(), e.ownerID, tt.tx)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, e.repo.inserts)
}

func TestRegisterTransaction_InactiveInstrument(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")
	require.NoError(t, e.svc.DeactivateInstrument(context.Background(), e.ownerID, x.ID))

	_, err := e.trade(t, x.ID, model.SideBuy, 1, "10", "2024-03-14")
	assert.ErrorIs(t, err, service.ErrInstrumentInactive)

	require.NoError(t, e.svc.ReactivateInstrument(context.Background(), e.ownerID, x.ID))
	_, err = e.trade(t, x.ID, model.SideBuy, 1, "10", "2024-03-14")
	assert.NoError(t, err)
}

func TestReconcilePosition_DayPnLUsesCalendarYesterday(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")
	e.quotes.set("X", "55", model.QuoteSourceLive)

	_, err := e.trade(t, x.ID, model.SideBuy, 10, "50", "2024-03-10")
	require.NoError(t, err)

	e.repo.setClose(e.ownerID, x.ID, day("2024-03-12"), d("40"))
	position, err := e.svc.ReconcilePosition(context.Background(), e.ownerID, x.ID)
	require.NoError(t, err)
	assertDecimal(t, "0", position.DayPnL)

	e.repo.setClose(e.ownerID, x.ID, day("2024-03-13"), d("52.5"))
	position, err = e.svc.ReconcilePosition(context.Background(), e.ownerID, x.ID)
	require.NoError(t, err)
	assertDecimal(t, "25", position.DayPnL)
}

func TestReconcilePosition_DefaultQuoteIsFlagged(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	position, err := e.trade(t, x.ID, model.SideBuy, 2, "80", "2024-03-14")
	require.NoError(t, err)

	assert.Equal(t, model.QuoteSourceDefault, position.PriceSource)
	assertDecimal(t, "100", position.CurrentPrice)
	assertDecimal(t, "40", position.AccumulatedPnL)
}

func TestReconcilePosition_UnknownInstrument(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.ReconcilePosition(context.Background(), e.ownerID, 12345)

	assert.ErrorIs(t, err, service.ErrInstrumentNotFound)
	assert.Zero(t, e.repo.upserts)
}

func TestReconcilePosition_LedgerErrorRollsBack(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")
	e.repo.listErr = errors.New("connection reset")

	_, err := e.svc.ReconcilePosition(context.Background(), e.ownerID, x.ID)

	assert.Error(t, err)
	_, err = e.svc.GetPosition(context.Background(), e.ownerID, x.ID)
	assert.ErrorIs(t, err, service.ErrNoPosition)
}

func TestDeleteTransaction_Reconciles(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideBuy, 10, "100", "2024-03-12")
	require.NoError(t, err)
	_, err = e.trade(t, x.ID, model.SideBuy, 10, "200", "2024-03-13")
	require.NoError(t, err)

	txs, err := e.svc.ListTransactions(context.Background(), e.ownerID, &x.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, day("2024-03-13"), txs[0].TradeDate, "newest first")

	position, err := e.svc.DeleteTransaction(context.Background(), e.ownerID, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 10, position.Quantity)
	assertDecimal(t, "100", position.AvgCost)

	_, err = e.svc.DeleteTransaction(context.Background(), e.ownerID, txs[0].ID)
	assert.ErrorIs(t, err, service.ErrTransactionNotFound)
}

func TestDeleteTransaction_RefusesNegativeQuantity(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideBuy, 10, "100", "2024-03-12")
	require.NoError(t, err)
	_, err = e.trade(t, x.ID, model.SideSell, 5, "110", "2024-03-13")
	require.NoError(t, err)

	txs, err := e.svc.ListTransactions(context.Background(), e.ownerID, &x.ID)
	require.NoError(t, err)
	buy := txs[1]
	require.Equal(t, model.SideBuy, buy.Side)

	_, err = e.svc.DeleteTransaction(context.Background(), e.ownerID, buy.ID)
	assert.ErrorIs(t, err, service.ErrInsufficientBalance)

	after, err := e.svc.ListTransactions(context.Background(), e.ownerID, &x.ID)
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestDeleteTransaction_InstrumentGoneUnderLock(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideBuy, 10, "100", "2024-03-12")
	require.NoError(t, err)
	txs, err := e.svc.ListTransactions(context.Background(), e.ownerID, &x.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	e.repo.lockErr = repository.ErrNotFound

	_, err = e.svc.DeleteTransaction(context.Background(), e.ownerID, txs[0].ID)
	assert.ErrorIs(t, err, service.ErrInstrumentNotFound)

	after, err := e.svc.ListTransactions(context.Background(), e.ownerID, &x.ID)
	require.NoError(t, err)
	assert.Len(t, after, 1)
}

func TestTransactionsSummary(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideBuy, 10, "100", "2024-03-11")
	require.NoError(t, err)
	_, err = e.trade(t, x.ID, model.SideBuy, 5, "130", "2024-03-12")
	require.NoError(t, err)
	_, err = e.trade(t, x.ID, model.SideSell, 3, "150", "2024-03-13")
	require.NoError(t, err)

	summary, err := e.svc.TransactionsSummary(context.Background(), e.ownerID, x.ID)
	require.NoError(t, err)

	assert.Equal(t, 15, summary.TotalBought)
	assert.Equal(t, 3, summary.TotalSold)
	assert.Equal(t, 12, summary.CurrentQuantity)
	assert.Equal(t, 3, summary.TransactionCount)
	assertDecimal(t, "1650", summary.BoughtValue)
	assertDecimal(t, "450", summary.SoldValue)
	assertDecimal(t, "110", summary.AvgBuyPrice)
	assertDecimal(t, "150", summary.AvgSellPrice)
}

func TestAddInstrument(t *testing.T) {
	e := newTestEnv(t)

	instrument, err := e.svc.AddInstrument(context.Background(), e.ownerID, " aapl ", "")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", instrument.Symbol)
	assert.Equal(t, "Some Corp", instrument.Name)
	assert.True(t, instrument.Active)

	_, err = e.svc.AddInstrument(context.Background(), e.ownerID, "AAPL", "")
	assert.ErrorIs(t, err, service.ErrAlreadyExists)

	_, err = e.svc.AddInstrument(context.Background(), e.ownerID, "TOOLONGTICKER", "")
	assert.ErrorIs(t, err, service.ErrInvalidTicker)

	_, err = e.svc.AddInstrument(context.Background(), e.ownerID+100, "MSFT", "")
	assert.ErrorIs(t, err, service.ErrOwnerNotFound)
}

func TestAddInstrument_Lookup(t *testing.T) {
	tests := []struct {
		name     string
		lookup   fakeLookup
		given    string
		wantName string
		wantErr  error
	}{
		{"unknown ticker", fakeLookup{err: externalApi.ErrNotFound}, "", "", service.ErrInvalidTicker},
		{"lookup unavailable", fakeLookup{err: errors.New("timeout")}, "", "ZZZ", nil},
		{"given name wins", fakeLookup{name: "Provider Name"}, "My Name", "My Name", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			svc := portfolioService.New(repo, newFakeQuotes(), tt.lookup)
			ownerID, err := svc.RegisterOwner(context.Background(), chatID)
			require.NoError(t, err)

			instrument, err := svc.AddInstrument(context.Background(), ownerID, "zzz", tt.given)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, instrument.Name)
		})
	}
}

func TestDeleteInstrument_GuardedByOpenPosition(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideBuy, 1, "10", "2024-03-14")
	require.NoError(t, err)

	err = e.svc.DeleteInstrument(context.Background(), e.ownerID, x.ID)
	assert.ErrorIs(t, err, service.ErrOpenPosition)

	_, err = e.trade(t, x.ID, model.SideSell, 1, "10", "2024-03-14")
	require.NoError(t, err)

	require.NoError(t, e.svc.DeleteInstrument(context.Background(), e.ownerID, x.ID))
	_, err = e.svc.InstrumentBySymbol(context.Background(), e.ownerID, "x")
	assert.ErrorIs(t, err, service.ErrInstrumentNotFound)
}

func TestDeletePosition_OnlyClosed(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")

	_, err := e.trade(t, x.ID, model.SideBuy, 3, "10", "2024-03-14")
	require.NoError(t, err)
	assert.ErrorIs(t, e.svc.DeletePosition(context.Background(), e.ownerID, x.ID), service.ErrOpenPosition)

	_, err = e.trade(t, x.ID, model.SideSell, 3, "10", "2024-03-14")
	require.NoError(t, err)
	require.NoError(t, e.svc.DeletePosition(context.Background(), e.ownerID, x.ID))

	_, err = e.svc.GetPosition(context.Background(), e.ownerID, x.ID)
	assert.ErrorIs(t, err, service.ErrNoPosition)
}

func TestRefreshPositions(t *testing.T) {
	e := newTestEnv(t)
	x := e.addInstrument(t, "X")
	y := e.addInstrument(t, "Y")

	_, err := e.trade(t, x.ID, model.SideBuy, 1, "10", "2024-03-14")
	require.NoError(t, err)
	_, err = e.trade(t, y.ID, model.SideBuy, 2, "20", "2024-03-14")
	require.NoError(t, err)

	e.quotes.set("X", "12", model.QuoteSourceLive)
	e.quotes.set("Y", "25", model.QuoteSourceLive)

	result, err := e.svc.RefreshPositions(context.Background(), e.ownerID)
	require.NoError(t, err)
	assert.Equal(t, model.RefreshResult{Total: 2, Updated: 2}, result)

	all, err := e.svc.RefreshAllPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, all.Updated)

	summary, err := e.svc.SummarizePortfolio(context.Background(), e.ownerID)
	require.NoError(t, err)
	assertDecimal(t, "50", summary.Invested)
	assertDecimal(t, "62", summary.CurrentValue)
	assertDecimal(t, "12", summary.AccumulatedPnL)
	assertDecimal(t, "24", summary.PercentResult)
	assert.False(t, summary.Degraded)
}

func TestSaveDailyCloses(t *testing.T) {
	e := newTestEnv(t)
	e.addInstrument(t, "X")
	y := e.addInstrument(t, "Y")
	require.NoError(t, e.svc.DeactivateInstrument(context.Background(), e.ownerID, y.ID))

	require.NoError(t, e.svc.SaveDailyCloses(context.Background()))
	assert.Equal(t, 1, e.quotes.calls)
}
