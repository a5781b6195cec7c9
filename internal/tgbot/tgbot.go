package tgbot

import (
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/model/tg/tgCallback"
	"github.com/KotFed0t/portfolio_tracker/internal/transport/telegram"
	customMW "github.com/KotFed0t/portfolio_tracker/internal/transport/telegram/middleware"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type TGBot struct {
	bot  *tele.Bot
	ctrl *telegram.Controller
}

func New(cfg *config.Config, ctrl *telegram.Controller) (*TGBot, error) {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
		OnError: func(err error, c tele.Context) {
			slog.Error("tgbot handler error", slog.String("err", err.Error()))
		},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TGBot{bot: b, ctrl: ctrl}, nil
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		return c.Send("unknown command, try /positions, /summary, /quote TICKER, /add TICKER, /buy or /sell")
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/add", b.ctrl.AddInstrument)
	b.bot.Handle("/instruments", b.ctrl.ListInstruments)
	b.bot.Handle("/buy", b.ctrl.Buy)
	b.bot.Handle("/sell", b.ctrl.Sell)
	b.bot.Handle("/history", b.ctrl.History)
	b.bot.Handle("/quote", b.ctrl.Quote)
	b.bot.Handle("/positions", b.ctrl.Positions)
	b.bot.Handle("/summary", b.ctrl.Summary)
	b.bot.Handle("/refresh", b.ctrl.Refresh)

	b.bot.Handle(&tele.Btn{Unique: tgCallback.RefreshPositions}, b.ctrl.Refresh)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.ShowSummary}, b.ctrl.Summary)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.ShowPositions}, b.ctrl.Positions)
}
