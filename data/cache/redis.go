package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/redis/go-redis/v9"
)

// RedisCache shares quotes between processes, redis expires the keys itself.
type RedisCache struct {
	redis   *redis.Client
	timeout time.Duration
}

func NewRedisCache(redisClient *redis.Client, timeout time.Duration) *RedisCache {
	return &RedisCache{redis: redisClient, timeout: timeout}
}

func (r *RedisCache) Put(ctx context.Context, key string, quote model.Quote) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.Put"

	quoteJson, err := json.Marshal(quote)
	if err != nil {
		slog.Error("can't marshall quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return errors.New("can't marshall quote")
	}

	err = r.redis.Set(ctx, key, quoteJson, r.timeout).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.Get"

	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Quote{}, ErrMiss
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.String("key", key))
		return model.Quote{}, err
	}

	quote := model.Quote{}
	err = json.Unmarshal([]byte(res), &quote)
	if err != nil {
		slog.Error(
			"can't unmarshall quote",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.Quote{}, errors.New("can't unmarshall quote")
	}

	return quote, nil
}

// PurgeExpired has nothing to do, keys carry a TTL.
func (r *RedisCache) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}
