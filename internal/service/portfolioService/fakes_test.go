package portfolioService_test

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/shopspring/decimal"
)

type positionKey struct {
	ownerID      int64
	instrumentID int64
}

type closeKey struct {
	ownerID      int64
	instrumentID int64
	date         string
}

type repoState struct {
	users        map[int64]int64
	instruments  map[int64]model.Instrument
	transactions map[int64]model.Transaction
	positions    map[positionKey]model.Position
	closes       map[closeKey]decimal.Decimal
	nextID       int64
}

func (s repoState) clone() repoState {
	return repoState{
		users:        maps.Clone(s.users),
		instruments:  maps.Clone(s.instruments),
		transactions: maps.Clone(s.transactions),
		positions:    maps.Clone(s.positions),
		closes:       maps.Clone(s.closes),
		nextID:       s.nextID,
	}
}

// fakeRepo is an in-memory Repository; WithinTransaction restores the previous state when fn fails.
type fakeRepo struct {
	mu    sync.Mutex
	state repoState

	upserts int
	inserts int
	listErr error
	lockErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{state: repoState{
		users:        map[int64]int64{},
		instruments:  map[int64]model.Instrument{},
		transactions: map[int64]model.Transaction{},
		positions:    map[positionKey]model.Position{},
		closes:       map[closeKey]decimal.Decimal{},
	}}
}

func (r *fakeRepo) id() int64 {
	r.state.nextID++
	return r.state.nextID
}

func (r *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	r.mu.Lock()
	snapshot := r.state.clone()
	r.mu.Unlock()

	if err := tFunc(ctx); err != nil {
		r.mu.Lock()
		r.state = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakeRepo) InsertUser(_ context.Context, chatID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.users[chatID]; ok {
		return 0, repository.ErrAlreadyExists
	}
	id := r.id()
	r.state.users[chatID] = id
	return id, nil
}

func (r *fakeRepo) GetUserID(_ context.Context, chatID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.state.users[chatID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (r *fakeRepo) UserExists(_ context.Context, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(slices.Collect(maps.Values(r.state.users)), userID), nil
}

func (r *fakeRepo) InsertInstrument(_ context.Context, instrument model.Instrument) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.state.instruments {
		if i.OwnerID == instrument.OwnerID && i.Symbol == instrument.Symbol {
			return 0, repository.ErrAlreadyExists
		}
	}
	instrument.ID = r.id()
	r.state.instruments[instrument.ID] = instrument
	return instrument.ID, nil
}

func (r *fakeRepo) GetInstrument(_ context.Context, ownerID, instrumentID int64) (model.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.state.instruments[instrumentID]
	if !ok || i.OwnerID != ownerID {
		return model.Instrument{}, repository.ErrNotFound
	}
	return i, nil
}

func (r *fakeRepo) GetInstrumentBySymbol(_ context.Context, ownerID int64, symbol string) (model.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.state.instruments {
		if i.OwnerID == ownerID && i.Symbol == symbol {
			return i, nil
		}
	}
	return model.Instrument{}, repository.ErrNotFound
}

func (r *fakeRepo) ListInstruments(_ context.Context, ownerID int64, onlyActive bool) ([]model.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Instrument
	for _, i := range r.state.instruments {
		if i.OwnerID == ownerID && (i.Active || !onlyActive) {
			res = append(res, i)
		}
	}
	return res, nil
}

func (r *fakeRepo) ListActiveInstruments(_ context.Context) ([]model.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Instrument
	for _, i := range r.state.instruments {
		if i.Active {
			res = append(res, i)
		}
	}
	return res, nil
}

func (r *fakeRepo) SetInstrumentActive(_ context.Context, ownerID, instrumentID int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.state.instruments[instrumentID]
	if !ok || i.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	i.Active = active
	r.state.instruments[instrumentID] = i
	return nil
}

func (r *fakeRepo) DeleteInstrument(_ context.Context, ownerID, instrumentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.state.instruments[instrumentID]
	if !ok || i.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.state.instruments, instrumentID)
	delete(r.state.positions, positionKey{ownerID, instrumentID})
	for id, t := range r.state.transactions {
		if t.InstrumentID == instrumentID {
			delete(r.state.transactions, id)
		}
	}
	return nil
}

func (r *fakeRepo) InsertTransaction(_ context.Context, transaction model.Transaction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	transaction.ID = r.id()
	r.state.transactions[transaction.ID] = transaction
	return transaction.ID, nil
}

func (r *fakeRepo) GetTransaction(_ context.Context, ownerID, transactionID int64) (model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.state.transactions[transactionID]
	if !ok || t.OwnerID != ownerID {
		return model.Transaction{}, repository.ErrNotFound
	}
	return t, nil
}

func (r *fakeRepo) DeleteTransaction(_ context.Context, ownerID, transactionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.state.transactions[transactionID]
	if !ok || t.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.state.transactions, transactionID)
	return nil
}

func (r *fakeRepo) ListTransactions(_ context.Context, ownerID int64, instrumentID *int64) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var res []model.Transaction
	for _, t := range r.state.transactions {
		if t.OwnerID == ownerID && (instrumentID == nil || t.InstrumentID == *instrumentID) {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].TradeDate.Equal(res[j].TradeDate) {
			return res[i].TradeDate.After(res[j].TradeDate)
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

func (r *fakeRepo) GetDailyClose(_ context.Context, ownerID, instrumentID int64, date time.Time) (model.DailyClose, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	price, ok := r.state.closes[closeKey{ownerID, instrumentID, date.Format(time.DateOnly)}]
	if !ok {
		return model.DailyClose{}, repository.ErrNotFound
	}
	return model.DailyClose{InstrumentID: instrumentID, OwnerID: ownerID, Date: date, Price: price}, nil
}

func (r *fakeRepo) setClose(ownerID, instrumentID int64, date time.Time, price decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.closes[closeKey{ownerID, instrumentID, date.Format(time.DateOnly)}] = price
}

func (r *fakeRepo) LockInstrument(_ context.Context, ownerID, instrumentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockErr != nil {
		return r.lockErr
	}
	i, ok := r.state.instruments[instrumentID]
	if !ok || i.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	return nil
}

func (r *fakeRepo) GetPosition(_ context.Context, ownerID, instrumentID int64) (model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.state.positions[positionKey{ownerID, instrumentID}]
	if !ok {
		return model.Position{}, repository.ErrNotFound
	}
	return p, nil
}

func (r *fakeRepo) UpsertPosition(_ context.Context, position model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	r.state.positions[positionKey{position.OwnerID, position.InstrumentID}] = position
	return nil
}

func (r *fakeRepo) ListPositions(_ context.Context, ownerID int64, onlyOpen bool) ([]model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Position
	for k, p := range r.state.positions {
		if k.ownerID == ownerID && (p.Quantity > 0 || !onlyOpen) {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Symbol < res[j].Symbol })
	return res, nil
}

func (r *fakeRepo) ListAllPositions(_ context.Context) ([]model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Values(r.state.positions)), nil
}

func (r *fakeRepo) DeletePosition(_ context.Context, ownerID, instrumentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := positionKey{ownerID, instrumentID}
	if _, ok := r.state.positions[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.state.positions, key)
	return nil
}

// fakeQuotes returns a fixed quote per symbol, DEFAULT 100 otherwise.
type fakeQuotes struct {
	mu     sync.Mutex
	prices map[string]model.Quote
	calls  int
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{prices: map[string]model.Quote{}}
}

func (q *fakeQuotes) set(symbol, price string, source model.QuoteSource) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[symbol] = model.Quote{Symbol: symbol, Price: decimal.RequireFromString(price), Source: source}
}

func (q *fakeQuotes) ResolveQuote(_ context.Context, _ int64, symbol string) model.Quote {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if quote, ok := q.prices[symbol]; ok {
		return quote
	}
	return model.Quote{Symbol: symbol, Price: decimal.NewFromInt(100), Source: model.QuoteSourceDefault}
}

type fakeLookup struct {
	name string
	err  error
}

func (l fakeLookup) LookupTicker(context.Context, string) (string, error) {
	return l.name, l.err
}
