package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/data"
	"github.com/KotFed0t/portfolio_tracker/data/cache"
	"github.com/KotFed0t/portfolio_tracker/data/repository/postgres"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi/yahooApi"
	"github.com/KotFed0t/portfolio_tracker/internal/scheduler"
	"github.com/KotFed0t/portfolio_tracker/internal/service/portfolioService"
	"github.com/KotFed0t/portfolio_tracker/internal/service/quoteService"
	"github.com/KotFed0t/portfolio_tracker/internal/tgbot"
	"github.com/KotFed0t/portfolio_tracker/internal/transport/rest"
	"github.com/KotFed0t/portfolio_tracker/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(ctx, cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(pgClient)

	var quoteCache quoteService.Cache
	switch cfg.Quotes.CacheBackend {
	case "redis":
		redisClient := data.NewRedisClient(ctx, cfg)
		defer redisClient.Close()
		quoteCache = cache.NewRedisCache(redisClient, cfg.Quotes.CacheTimeout)
	default:
		quoteCache = cache.NewMemoryCache(cfg.Quotes.CacheTimeout)
	}
	slog.Info("quote cache ready", slog.String("backend", cfg.Quotes.CacheBackend))

	yahooApiClient := yahooApi.New(cfg)

	quoteSrv := quoteService.New(cfg, quoteCache, yahooApiClient, pgRepo)
	portfolioSrv := portfolioService.New(pgRepo, quoteSrv, yahooApiClient)

	sched, err := scheduler.New()
	if err != nil {
		slog.Error("can't create scheduler", slog.String("err", err.Error()))
		os.Exit(1)
	}
	mustJob(sched.NewIntervalJob("refresh positions", func(ctx context.Context) error {
		res, err := portfolioSrv.RefreshAllPositions(ctx)
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d positions failed to refresh", res.Failed, res.Total)
		}
		return nil
	}, cfg.Jobs.RefreshPositionsInterval, false))
	mustJob(sched.NewCrontabJob("save daily closes", portfolioSrv.SaveDailyCloses, cfg.Jobs.DailyCloseCrontab, false))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      rest.NewRouter(rest.NewController(portfolioSrv), cfg.HTTP.WriteTimeout),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", slog.String("err", err.Error()))
			cancel()
		}
	}()

	if cfg.Telegram.Enabled {
		tgBot, err := tgbot.New(cfg, telegram.NewController(portfolioSrv))
		if err != nil {
			slog.Error("can't start telegram bot", slog.String("err", err.Error()))
			os.Exit(1)
		}
		tgBot.Start()
		defer tgBot.Stop()
	}

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-interrupt:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	slog.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", slog.String("err", err.Error()))
	}
}

func mustJob(err error) {
	if err != nil {
		slog.Error("can't register job", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
