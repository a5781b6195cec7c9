package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/go-chi/chi/v5"
)

type PortfolioService interface {
	RegisterOwner(ctx context.Context, chatID int64) (int64, error)
	ResolveQuote(ctx context.Context, ownerID int64, symbol string) model.Quote

	AddInstrument(ctx context.Context, ownerID int64, symbol, name string) (model.Instrument, error)
	ListInstruments(ctx context.Context, ownerID int64, onlyActive bool) ([]model.Instrument, error)
	InstrumentBySymbol(ctx context.Context, ownerID int64, symbol string) (model.Instrument, error)
	DeactivateInstrument(ctx context.Context, ownerID, instrumentID int64) error
	ReactivateInstrument(ctx context.Context, ownerID, instrumentID int64) error
	DeleteInstrument(ctx context.Context, ownerID, instrumentID int64) error

	RegisterTransaction(ctx context.Context, ownerID int64, newTx model.NewTransaction) (model.Transaction, model.Position, error)
	DeleteTransaction(ctx context.Context, ownerID, transactionID int64) (model.Position, error)
	ListTransactions(ctx context.Context, ownerID int64, instrumentID *int64) ([]model.Transaction, error)
	TransactionsSummary(ctx context.Context, ownerID, instrumentID int64) (model.TransactionsSummary, error)

	ReconcilePosition(ctx context.Context, ownerID, instrumentID int64) (model.Position, error)
	ListPositions(ctx context.Context, ownerID int64) ([]model.Position, error)
	GetPosition(ctx context.Context, ownerID, instrumentID int64) (model.Position, error)
	DeletePosition(ctx context.Context, ownerID, instrumentID int64) error
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

// RegisterRoutes mounts the API under /api/v1.
func (ctrl *Controller) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/owners", ctrl.RegisterOwner)

		r.Route("/owners/{ownerID}", func(r chi.Router) {
			r.Get("/quotes/{symbol}", ctrl.GetQuote)

			r.Get("/instruments", ctrl.ListInstruments)
			r.Post("/instruments", ctrl.AddInstrument)
			r.Delete("/instruments/{instrumentID}", ctrl.DeleteInstrument)
			r.Post("/instruments/{instrumentID}/deactivate", ctrl.DeactivateInstrument)
			r.Post("/instruments/{instrumentID}/reactivate", ctrl.ReactivateInstrument)
			r.Get("/instruments/{instrumentID}/transactions/summary", ctrl.TransactionsSummary)

			r.Get("/transactions", ctrl.ListTransactions)
			r.Post("/transactions", ctrl.RegisterTransaction)
			r.Delete("/transactions/{transactionID}", ctrl.DeleteTransaction)

			r.Get("/positions", ctrl.ListPositions)
			r.Post("/positions/refresh", ctrl.RefreshPositions)
			r.Get("/positions/{instrumentID}", ctrl.GetPosition)
			r.Delete("/positions/{instrumentID}", ctrl.DeletePosition)
			r.Post("/positions/{instrumentID}/reconcile", ctrl.ReconcilePosition)

			r.Get("/summary", ctrl.Summary)
		})
	})
}

// RegisterOwner handles POST /api/v1/owners
func (ctrl *Controller) RegisterOwner(w http.ResponseWriter, r *http.Request) {
	var req registerOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		writeError(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	ownerID, err := ctrl.portfolioService.RegisterOwner(r.Context(), req.ChatID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ownerResponse{OwnerID: ownerID})
}

// GetQuote handles GET /api/v1/owners/{ownerID}/quotes/{symbol}
func (ctrl *Controller) GetQuote(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}

	quote := ctrl.portfolioService.ResolveQuote(r.Context(), ownerID, chi.URLParam(r, "symbol"))
	writeJSON(w, http.StatusOK, quote)
}

// ListInstruments handles GET /api/v1/owners/{ownerID}/instruments?active=true
func (ctrl *Controller) ListInstruments(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}

	onlyActive, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	instruments, err := ctrl.portfolioService.ListInstruments(r.Context(), ownerID, onlyActive)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	resp := make([]instrumentResponse, 0, len(instruments))
	for _, i := range instruments {
		resp = append(resp, toInstrumentResponse(i))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddInstrument handles POST /api/v1/owners/{ownerID}/instruments
func (ctrl *Controller) AddInstrument(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}

	var req addInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	instrument, err := ctrl.portfolioService.AddInstrument(r.Context(), ownerID, req.Symbol, req.Name)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInstrumentResponse(instrument))
}

// DeleteInstrument handles DELETE /api/v1/owners/{ownerID}/instruments/{instrumentID}
func (ctrl *Controller) DeleteInstrument(w http.ResponseWriter, r *http.Request) {
	ctrl.instrumentAction(w, r, ctrl.portfolioService.DeleteInstrument)
}

func (ctrl *Controller) DeactivateInstrument(w http.ResponseWriter, r *http.Request) {
	ctrl.instrumentAction(w, r, ctrl.portfolioService.DeactivateInstrument)
}

func (ctrl *Controller) ReactivateInstrument(w http.ResponseWriter, r *http.Request) {
	ctrl.instrumentAction(w, r, ctrl.portfolioService.ReactivateInstrument)
}

func (ctrl *Controller) instrumentAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, ownerID, instrumentID int64) error) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}
	instrumentID, ok := pathID(w, r, "instrumentID")
	if !ok {
		return
	}

	if err := action(r.Context(), ownerID, instrumentID); err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TransactionsSummary handles GET /api/v1/owners/{ownerID}/instruments/{instrumentID}/transactions/summary
func (ctrl *Controller) TransactionsSummary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}
	instrumentID, ok := pathID(w, r, "instrumentID")
	if !ok {
		return
	}

	summary, err := ctrl.portfolioService.TransactionsSummary(r.Context(), ownerID, instrumentID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionsSummaryResponse(summary))
}

// ListTransactions handles GET /api/v1/owners/{ownerID}/transactions?instrument_id=N
func (ctrl *Controller) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}

	var instrumentID *int64
	if raw := r.URL.Query().Get("instrument_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, "invalid instrument_id", http.StatusBadRequest)
			return
		}
		instrumentID = &id
	}

	transactions, err := ctrl.portfolioService.ListTransactions(r.Context(), ownerID, instrumentID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RegisterTransaction handles POST /api/v1/owners/{ownerID}/transactions
// The trade date defaults to today.
func (ctrl *Controller) RegisterTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}

	var req registerTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tradeDate := utils.Day(ctrl.now())
	if req.TradeDate != "" {
		parsed, err := time.Parse(dateLayout, req.TradeDate)
		if err != nil {
			writeError(w, "trade_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		tradeDate = parsed
	}

	instrumentID := req.InstrumentID
	if instrumentID == 0 {
		if req.Symbol == "" {
			writeError(w, "instrument_id or symbol is required", http.StatusBadRequest)
			return
		}
		instrument, err := ctrl.portfolioService.InstrumentBySymbol(r.Context(), ownerID, req.Symbol)
		if err != nil {
			ctrl.writeServiceError(w, r, err)
			return
		}
		instrumentID = instrument.ID
	}

	transaction, position, err := ctrl.portfolioService.RegisterTransaction(r.Context(), ownerID, model.NewTransaction{
		InstrumentID: instrumentID,
		TradeDate:    tradeDate,
		Side:         model.Side(req.Side),
		Quantity:     req.Quantity,
		Price:        req.Price,
	})
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerTransactionResponse{
		Transaction: toTransactionResponse(transaction),
		Position:    toPositionResponse(position),
	})
}

// DeleteTransaction handles DELETE /api/v1/owners/{ownerID}/transactions/{transactionID}
func (ctrl *Controller) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}
	transactionID, ok := pathID(w, r, "transactionID")
	if !ok {
		return
	}

	position, err := ctrl.portfolioService.DeleteTransaction(r.Context(), ownerID, transactionID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionResponse(position))
}

// ListPositions handles GET /api/v1/owners/{ownerID}/positions
func (ctrl *Controller) ListPositions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}

	positions, err := ctrl.portfolioService.ListPositions(r.Context(), ownerID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	resp := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		resp = append(resp, toPositionResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (ctrl *Controller) GetPosition(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}
	instrumentID, ok := pathID(w, r, "instrumentID")
	if !ok {
		return
	}

	position, err := ctrl.portfolioService.GetPosition(r.Context(), ownerID, instrumentID)
	if err != nil {
		if errors.Is(err, service.ErrNoPosition) {
			writeError(w, "position not found", http.StatusNotFound)
			return
		}
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionResponse(position))
}

func (ctrl *Controller) DeletePosition(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}
	instrumentID, ok := pathID(w, r, "instrumentID")
	if !ok {
		return
	}

	if err := ctrl.portfolioService.DeletePosition(r.Context(), ownerID, instrumentID); err != nil {
		if errors.Is(err, service.ErrNoPosition) {
			writeError(w, "position not found", http.StatusNotFound)
			return
		}
		ctrl.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReconcilePosition handles POST /api/v1/owners/{ownerID}/positions/{instrumentID}/reconcile
func (ctrl *Controller) ReconcilePosition(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}
	instrumentID, ok := pathID(w, r, "instrumentID")
	if !ok {
		return
	}

	position, err := ctrl.portfolioService.ReconcilePosition(r.Context(), ownerID, instrumentID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionResponse(position))
}

// RefreshPositions handles POST /api/v1/owners/{ownerID}/positions/refresh
func (ctrl *Controller) RefreshPositions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}

	result, err := ctrl.portfolioService.RefreshPositions(r.Context(), ownerID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse(result))
}

// Summary handles GET /api/v1/owners/{ownerID}/summary
func (ctrl *Controller) Summary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}

	summary, err := ctrl.portfolioService.SummarizePortfolio(r.Context(), ownerID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPortfolioSummaryResponse(summary))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidTransaction), errors.Is(err, service.ErrInvalidTicker):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOwnerNotFound),
		errors.Is(err, service.ErrInstrumentNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyExists), errors.Is(err, service.ErrOpenPosition):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoPosition),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrInstrumentInactive):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (ctrl *Controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("rqID", utils.GetRequestIDFromCtx(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
		writeError(w, "internal error", status)
		return
	}
	writeError(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("can't encode response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
