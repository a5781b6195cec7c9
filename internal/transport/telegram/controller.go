package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/converter/telebotConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg = "something went wrong..."
	notStartedMsg  = "send /start first"
	tradeUsageMsg  = "usage: /buy TICKER QUANTITY PRICE [YYYY-MM-DD]"
)

type PortfolioService interface {
	RegisterOwner(ctx context.Context, chatID int64) (int64, error)
	GetOwnerID(ctx context.Context, chatID int64) (int64, error)
	ResolveQuote(ctx context.Context, ownerID int64, symbol string) model.Quote

	AddInstrument(ctx context.Context, ownerID int64, symbol, name string) (model.Instrument, error)
	ListInstruments(ctx context.Context, ownerID int64, onlyActive bool) ([]model.Instrument, error)
	InstrumentBySymbol(ctx context.Context, ownerID int64, symbol string) (model.Instrument, error)

	RegisterTransaction(ctx context.Context, ownerID int64, newTx model.NewTransaction) (model.Transaction, model.Position, error)
	ListTransactions(ctx context.Context, ownerID int64, instrumentID *int64) ([]model.Transaction, error)

	ListPositions(ctx context.Context, ownerID int64) ([]model.Position, error)
	RefreshPositions(ctx context.Context, ownerID int64) (model.RefreshResult, error)
	SummarizePortfolio(ctx context.Context, ownerID int64) (model.PortfolioSummary, error)
}

type Controller struct {
	portfolioService PortfolioService
	now              func() time.Time
}

func NewController(portfolioService PortfolioService) *Controller {
	return &Controller{portfolioService: portfolioService, now: time.Now}
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	if _, err := ctrl.portfolioService.RegisterOwner(ctx, c.Chat().ID); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Reply("Hello! Add a ticker with /add TICKER, then register trades with /buy and /sell.")
}

// ownerID resolves the chat owner, the reply is already sent when ok is false.
func (ctrl *Controller) ownerID(ctx context.Context, c tele.Context) (ownerID int64, ok bool, err error) {
	ownerID, err = ctrl.portfolioService.GetOwnerID(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrOwnerNotFound) {
			return 0, false, c.Send(notStartedMsg)
		}
		return 0, false, c.Send(internalErrMsg)
	}
	return ownerID, true, nil
}

// AddInstrument handles /add TICKER [name]
func (ctrl *Controller) AddInstrument(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	ownerID, ok, err := ctrl.ownerID(ctx, c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) == 0 {
		return c.Send("usage: /add TICKER [name]")
	}

	instrument, err := ctrl.portfolioService.AddInstrument(ctx, ownerID, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return ctrl.sendServiceError(ctx, c, err)
	}

	return c.Send(telebotConverter.InstrumentResponse(instrument))
}

func (ctrl *Controller) ListInstruments(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	ownerID, ok, err := ctrl.ownerID(ctx, c)
	if !ok {
		return err
	}

	instruments, err := ctrl.portfolioService.ListInstruments(ctx, ownerID, false)
	if err != nil {
		return ctrl.sendServiceError(ctx, c, err)
	}

	return c.Send(telebotConverter.InstrumentsResponse(instruments))
}

func (ctrl *Controller) Buy(c tele.Context) error {
	return ctrl.trade(c, model.SideBuy)
}

func (ctrl *Controller) Sell(c tele.Context) error {
	return ctrl.trade(c, model.SideSell)
}

// trade handles /buy and /sell TICKER QUANTITY PRICE [YYYY-MM-DD]
func (ctrl *Controller) trade(c tele.Context, side model.Side) error {
	ctx := utils.CreateCtxWithRqID(c)
	ownerID, ok, err := ctrl.ownerID(ctx, c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) < 3 || len(args) > 4 {
		return c.Send(tradeUsageMsg)
	}

	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return c.Send(tradeUsageMsg)
	}

	price, err := decimal.NewFromString(strings.ReplaceAll(args[2], ",", "."))
	if err != nil {
		return c.Send(tradeUsageMsg)
	}

	tradeDate := utils.Day(ctrl.now())
	if len(args) == 4 {
		tradeDate, err = time.Parse("2006-01-02", args[3])
		if err != nil {
			return c.Send(tradeUsageMsg)
		}
	}

	instrument, err := ctrl.portfolioService.InstrumentBySymbol(ctx, ownerID, args[0])
	if err != nil {
		return ctrl.sendServiceError(ctx, c, err)
	}

	transaction, position, err := ctrl.portfolioService.RegisterTransaction(ctx, ownerID, model.NewTransaction{
		InstrumentID: instrument.ID,
		TradeDate:    tradeDate,
		Side:         side,
		Quantity:     qty,
		Price:        price,
	})
	if err != nil {
		return ctrl.sendServiceError(ctx, c, err)
	}

	return c.Send(telebotConverter.TransactionResponse(transaction, position))
}

// History handles /history TICKER
func (ctrl *Controller) History(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	ownerID, ok, err := ctrl.ownerID(ctx, c)
	if !ok {
		return err
	}

	var instrumentID *int64
	if args := c.Args(); len(args) > 0 {
		instrument, err := ctrl.portfolioService.InstrumentBySymbol(ctx, ownerID, args[0])
		if err != nil {
			return ctrl.sendServiceError(ctx, c, err)
		}
		instrumentID = &instrument.ID
	}

	transactions, err := ctrl.portfolioService.ListTransactions(ctx, ownerID, instrumentID)
	if err != nil {
		return ctrl.sendServiceError(ctx, c, err)
	}

	return c.Send(telebotConverter.TransactionsResponse(transactions))
}

// Quote handles /quote TICKER
func (ctrl *Controller) Quote(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	ownerID, ok, err := ctrl.ownerID(ctx, c)
	if !ok {
		return err
	}

	args := c.Args()
	if len(args) == 0 {
		return c.Send("usage: /quote TICKER")
	}

	quote := ctrl.portfolioService.ResolveQuote(ctx, ownerID, args[0])
	return c.Send(telebotConverter.QuoteResponse(quote))
}

func (ctrl *Controller) Positions(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	ownerID, ok, err := ctrl.ownerID(ctx, c)
	if !ok {
		return err
	}

	positions, err := ctrl.portfolioService.ListPositions(ctx, ownerID)
	if err != nil {
		return ctrl.sendServiceError(ctx, c, err)
	}

	text, markup := telebotConverter.PositionsResponse(positions)
	return c.Send(text, markup)
}

func (ctrl *Controller) Summary(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	ownerID, ok, err := ctrl.ownerID(ctx, c)
	if !ok {
		return err
	}

	summary, err := ctrl.portfolioService.SummarizePortfolio(ctx, ownerID)
	if err != nil {
		return ctrl.sendServiceError(ctx, c, err)
	}

	text, markup := telebotConverter.SummaryResponse(summary)
	return c.Send(text, markup)
}

func (ctrl *Controller) Refresh(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	ownerID, ok, err := ctrl.ownerID(ctx, c)
	if !ok {
		return err
	}

	if c.Callback() != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "refreshing..."})
	}

	result, err := ctrl.portfolioService.RefreshPositions(ctx, ownerID)
	if err != nil {
		return ctrl.sendServiceError(ctx, c, err)
	}

	return c.Send(telebotConverter.RefreshResponse(result))
}

func (ctrl *Controller) sendServiceError(ctx context.Context, c tele.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInstrumentNotFound):
		return c.Send("ticker is not registered, add it with /add TICKER")
	case errors.Is(err, service.ErrInvalidTicker),
		errors.Is(err, service.ErrAlreadyExists),
		errors.Is(err, service.ErrInvalidTransaction),
		errors.Is(err, service.ErrInstrumentInactive),
		errors.Is(err, service.ErrNoPosition),
		errors.Is(err, service.ErrInsufficientBalance):
		return c.Send("❌ " + err.Error())
	default:
		slog.Error("got error from portfolioService", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}
}
