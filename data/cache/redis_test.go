package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker/data/cache"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_Put(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(db, 5*time.Minute)

	payload, err := json.Marshal(testQuote())
	require.NoError(t, err)
	mock.ExpectSet("quote:1:AAPL", payload, 5*time.Minute).SetVal("OK")

	require.NoError(t, c.Put(context.Background(), "quote:1:AAPL", testQuote()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(db, 5*time.Minute)

	payload, err := json.Marshal(testQuote())
	require.NoError(t, err)
	mock.ExpectGet("quote:1:AAPL").SetVal(string(payload))

	got, err := c.Get(context.Background(), "quote:1:AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.True(t, testQuote().Price.Equal(got.Price))
	assert.Equal(t, testQuote().Source, got.Source)
	assert.True(t, testQuote().AsOf.Equal(got.AsOf))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_GetErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(db, time.Minute)

	mock.ExpectGet("missing").RedisNil()
	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, cache.ErrMiss)

	mock.ExpectGet("broken").SetVal("{not json")
	_, err = c.Get(context.Background(), "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrMiss)

	mock.ExpectGet("down").SetErr(errors.New("connection refused"))
	_, err = c.Get(context.Background(), "down")
	assert.EqualError(t, err, "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_PurgeExpiredIsNoop(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(db, time.Minute)

	removed, err := c.PurgeExpired(context.Background())

	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
