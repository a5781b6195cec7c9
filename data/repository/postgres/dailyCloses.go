package postgres

import (
	"context"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
	"github.com/shopspring/decimal"
)

// UpsertDailyClose stores the close of the owner's instrument with the given symbol.
// Symbols the owner never registered are silently skipped.
func (r *Postgres) UpsertDailyClose(ctx context.Context, ownerID int64, symbol string, date time.Time, price decimal.Decimal) (err error) {
	op := "Postgres.UpsertDailyClose"
	query := `
		INSERT INTO daily_closes(instrument_id, owner_id, close_date, close_price)
		SELECT instrument_id, owner_id, $3, $4
		FROM instruments
		WHERE owner_id = $1 AND symbol = $2
		ON CONFLICT (instrument_id, owner_id, close_date) DO UPDATE SET
			close_price = EXCLUDED.close_price
	`

	done := logQuery(ctx, op, query, map[string]any{
		"ownerID": ownerID,
		"symbol":  symbol,
		"date":    date.Format(time.DateOnly),
		"price":   price.String(),
	})
	defer func() { done(err) }()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, ownerID, symbol, date, price)
	return err
}

func (r *Postgres) getDailyClose(ctx context.Context, op, query string, args ...any) (dailyClose model.DailyClose, err error) {
	done := logQuery(ctx, op, query, map[string]any{"args": args})
	defer func() { done(err) }()

	row := dbModel.DailyClose{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, args...).StructScan(&row)
	if err != nil {
		return model.DailyClose{}, mapErr(err)
	}

	return dbConverter.ConvertDailyClose(row), nil
}

func (r *Postgres) GetLatestDailyClose(ctx context.Context, ownerID int64, symbol string) (model.DailyClose, error) {
	query := `
		SELECT d.instrument_id, d.owner_id, d.close_date, d.close_price
		FROM daily_closes d
		JOIN instruments i USING (instrument_id, owner_id)
		WHERE d.owner_id = $1 AND i.symbol = $2
		ORDER BY d.close_date DESC
		LIMIT 1
	`

	return r.getDailyClose(ctx, "Postgres.GetLatestDailyClose", query, ownerID, symbol)
}

// GetDailyCloseBefore returns the most recent close strictly before date.
func (r *Postgres) GetDailyCloseBefore(ctx context.Context, ownerID int64, symbol string, date time.Time) (model.DailyClose, error) {
	query := `
		SELECT d.instrument_id, d.owner_id, d.close_date, d.close_price
		FROM daily_closes d
		JOIN instruments i USING (instrument_id, owner_id)
		WHERE d.owner_id = $1 AND i.symbol = $2 AND d.close_date < $3
		ORDER BY d.close_date DESC
		LIMIT 1
	`

	return r.getDailyClose(ctx, "Postgres.GetDailyCloseBefore", query, ownerID, symbol, date)
}

func (r *Postgres) GetDailyClose(ctx context.Context, ownerID, instrumentID int64, date time.Time) (model.DailyClose, error) {
	query := `
		SELECT instrument_id, owner_id, close_date, close_price
		FROM daily_closes
		WHERE owner_id = $1 AND instrument_id = $2 AND close_date = $3
	`

	return r.getDailyClose(ctx, "Postgres.GetDailyClose", query, ownerID, instrumentID, date)
}
