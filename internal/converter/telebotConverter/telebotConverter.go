package telebotConverter

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/tg/tgCallback"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const degradedMark = "⚠️"

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + money(d)
	}
	return money(d)
}

func sourceNote(source model.QuoteSource) string {
	switch source {
	case model.QuoteSourceCached:
		return fmt.Sprintf(" %s cached price", degradedMark)
	case model.QuoteSourceHistorical:
		return fmt.Sprintf(" %s last stored close", degradedMark)
	case model.QuoteSourceDefault:
		return fmt.Sprintf(" %s no price available, placeholder value", degradedMark)
	default:
		return ""
	}
}

func QuoteResponse(quote model.Quote) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("💹 %s: %s%s\n", quote.Symbol, money(quote.Price), sourceNote(quote.Source)))
	sb.WriteString(fmt.Sprintf("   ▸ Day change: %s (%s%%)\n", signed(quote.DayChange), signed(quote.DayChangePct)))
	sb.WriteString(fmt.Sprintf("   ▸ Open: %s, previous close: %s\n", money(quote.Open), money(quote.PreviousClose)))
	if quote.Volume > 0 {
		sb.WriteString(fmt.Sprintf("   ▸ Volume: %d\n", quote.Volume))
	}
	sb.WriteString(fmt.Sprintf("   ▸ As of %s (%s)", quote.AsOf.Format("2006-01-02"), quote.Source))

	return sb.String()
}

func InstrumentResponse(instrument model.Instrument) string {
	return fmt.Sprintf("✅ %s (%s) added", instrument.Symbol, instrument.Name)
}

func InstrumentsResponse(instruments []model.Instrument) string {
	if len(instruments) == 0 {
		return "No instruments yet, add one with /add TICKER"
	}

	var sb strings.Builder
	sb.WriteString("📋 Instruments:\n\n")
	for _, i := range instruments {
		status := ""
		if !i.Active {
			status = " (inactive)"
		}
		sb.WriteString(fmt.Sprintf("• %s: %s%s\n", i.Symbol, i.Name, status))
	}
	return sb.String()
}

func TransactionResponse(transaction model.Transaction, position model.Position) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📝 %s %d %s @ %s on %s\n\n",
		transaction.Side,
		transaction.Quantity,
		transaction.Symbol,
		money(transaction.Price),
		transaction.TradeDate.Format("2006-01-02"),
	))
	writePosition(&sb, position)

	return sb.String()
}

func TransactionsResponse(transactions []model.Transaction) string {
	if len(transactions) == 0 {
		return "No transactions yet"
	}

	var sb strings.Builder
	sb.WriteString("🧾 Transactions:\n\n")
	for _, t := range transactions {
		sb.WriteString(fmt.Sprintf("#%d %s %s %d @ %s = %s\n",
			t.ID,
			t.TradeDate.Format("2006-01-02"),
			t.Side,
			t.Quantity,
			money(t.Price),
			money(t.Total()),
		))
	}
	return sb.String()
}

func writePosition(sb *strings.Builder, p model.Position) {
	sb.WriteString(fmt.Sprintf("%s%s\n", p.Symbol, sourceNote(p.PriceSource)))
	sb.WriteString(fmt.Sprintf("   ▸ Quantity: %d\n", p.Quantity))
	sb.WriteString(fmt.Sprintf("   ▸ Avg cost: %s\n", money(p.AvgCost)))
	sb.WriteString(fmt.Sprintf("   ▸ Price: %s\n", money(p.CurrentPrice)))
	sb.WriteString(fmt.Sprintf("   ▸ Value: %s\n", money(p.CurrentValue())))
	sb.WriteString(fmt.Sprintf("   ▸ Day P&L: %s\n", signed(p.DayPnL)))
	sb.WriteString(fmt.Sprintf("   ▸ Total P&L: %s\n", signed(p.AccumulatedPnL)))
}

func PositionsResponse(positions []model.Position) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("🔄 Refresh", tgCallback.RefreshPositions),
		markup.Data("📊 Summary", tgCallback.ShowSummary),
	))

	if len(positions) == 0 {
		return "No open positions", markup
	}

	var sb strings.Builder
	sb.WriteString("📋 Positions:\n\n")
	for _, p := range positions {
		writePosition(&sb, p)
		sb.WriteString("\n")
	}

	return sb.String(), markup
}

func SummaryResponse(summary model.PortfolioSummary) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("📋 Positions", tgCallback.ShowPositions)))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 Portfolio: %d positions\n", summary.PositionsCount))
	sb.WriteString(fmt.Sprintf("💰 Invested: %s\n", money(summary.Invested)))
	sb.WriteString(fmt.Sprintf("💼 Value: %s\n", money(summary.CurrentValue)))
	sb.WriteString(fmt.Sprintf(" - Day P&L: %s\n", signed(summary.DayPnL)))
	sb.WriteString(fmt.Sprintf(" - Total P&L: %s (%s%%)\n", signed(summary.AccumulatedPnL), signed(summary.PercentResult)))
	if summary.Degraded {
		sb.WriteString(fmt.Sprintf("\n%s some prices are not live, totals are approximate", degradedMark))
	}

	return sb.String(), markup
}

func RefreshResponse(result model.RefreshResult) string {
	text := fmt.Sprintf("🔄 Refreshed %d of %d positions", result.Updated, result.Total)
	if result.Failed > 0 {
		text += fmt.Sprintf(", %d failed", result.Failed)
	}
	return text
}
