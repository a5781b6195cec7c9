package yahooApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	chartUrl  = "/v8/finance/chart/{symbol}"
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

type YahooApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *YahooApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.Quotes.ApiTimeout).
		SetBaseURL(cfg.API.YahooApi.Url).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	return &YahooApi{client: client}
}

func (a *YahooApi) getChart(ctx context.Context, symbol string, days int) (chartResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.getChart"
	params := map[string]string{
		"interval": "1d",
		"range":    strconv.Itoa(days) + "d",
	}

	slog.Debug("start YahooApi chart request", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Any("params", params))

	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(params).
		Get(chartUrl)
	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return chartResult{}, err
	}

	raw := chartResponse{}
	if err = json.Unmarshal(resp.Body(), &raw); err != nil {
		slog.Error(
			"can't unmarshall response into chartResponse",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.Int("status", resp.StatusCode()),
			slog.String("err", err.Error()),
		)
		return chartResult{}, fmt.Errorf("yahoo api status %d: %w", resp.StatusCode(), err)
	}

	if raw.Chart.Error != nil {
		slog.Warn(
			"YahooApi returned error",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("code", raw.Chart.Error.Code),
			slog.String("description", raw.Chart.Error.Description),
		)
		if resp.StatusCode() == http.StatusNotFound || raw.Chart.Error.Code == "Not Found" {
			return chartResult{}, externalApi.ErrNotFound
		}
		return chartResult{}, fmt.Errorf("yahoo api error %s: %s", raw.Chart.Error.Code, raw.Chart.Error.Description)
	}

	if resp.IsError() {
		return chartResult{}, fmt.Errorf("yahoo api status %d", resp.StatusCode())
	}

	if len(raw.Chart.Result) == 0 {
		return chartResult{}, externalApi.ErrNotFound
	}

	slog.Debug("YahooApi chart request complete", slog.String("rqID", rqID), slog.String("op", op))

	return raw.Chart.Result[0], nil
}

// GetDailyBars returns up to days daily candles, oldest first.
func (a *YahooApi) GetDailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	chart, err := a.getChart(ctx, symbol, days)
	if err != nil {
		return nil, err
	}

	bars := parseBars(chart)
	if len(bars) == 0 {
		slog.Warn("YahooApi returned empty history", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("symbol", symbol))
		return nil, externalApi.ErrEmptyHistory
	}

	return bars, nil
}

// LookupTicker checks that symbol is known to the provider and returns its display name.
func (a *YahooApi) LookupTicker(ctx context.Context, symbol string) (string, error) {
	chart, err := a.getChart(ctx, symbol, 1)
	if err != nil {
		return "", err
	}

	switch {
	case chart.Meta.LongName != "":
		return chart.Meta.LongName, nil
	case chart.Meta.ShortName != "":
		return chart.Meta.ShortName, nil
	default:
		return symbol, nil
	}
}

func parseBars(chart chartResult) []model.Bar {
	if len(chart.Indicators.Quote) == 0 {
		return nil
	}
	quote := chart.Indicators.Quote[0]

	bars := make([]model.Bar, 0, len(chart.Timestamp))
	for i, ts := range chart.Timestamp {
		// yahoo отдает null в незакрытых или пропущенных свечах
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}

		bar := model.Bar{
			Date:  dateOf(ts, chart.Meta.GMTOffset),
			Close: decimal.NewFromFloat(*quote.Close[i]),
		}
		bar.Open = valueOr(quote.Open, i, bar.Close)
		bar.High = valueOr(quote.High, i, bar.Close)
		bar.Low = valueOr(quote.Low, i, bar.Close)
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}

		bars = append(bars, bar)
	}

	return bars
}

func valueOr(values []*float64, i int, fallback decimal.Decimal) decimal.Decimal {
	if i >= len(values) || values[i] == nil {
		return fallback
	}
	return decimal.NewFromFloat(*values[i])
}

// dateOf converts a bar timestamp into the exchange-local calendar day at UTC midnight.
func dateOf(ts, gmtOffset int64) time.Time {
	t := time.Unix(ts+gmtOffset, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
