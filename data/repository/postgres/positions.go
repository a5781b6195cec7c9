package postgres

import (
	"context"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
)

const positionColumns = `p.instrument_id, p.owner_id, i.symbol, p.quantity, p.avg_cost, p.current_price,
	p.day_pnl, p.accumulated_pnl, p.price_source, p.dt_update`

func (r *Postgres) getPosition(ctx context.Context, op, query string, ownerID, instrumentID int64) (position model.Position, err error) {
	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "instrumentID": instrumentID})
	defer func() { done(err) }()

	row := dbModel.Position{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, ownerID, instrumentID).StructScan(&row)
	if err != nil {
		return model.Position{}, mapErr(err)
	}

	return dbConverter.ConvertPosition(row), nil
}

func (r *Postgres) GetPosition(ctx context.Context, ownerID, instrumentID int64) (model.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions p
		JOIN instruments i USING (instrument_id, owner_id)
		WHERE p.owner_id = $1 AND p.instrument_id = $2
	`

	return r.getPosition(ctx, "Postgres.GetPosition", query, ownerID, instrumentID)
}

// LockInstrument serializes writers of one instrument's ledger, including the very first trade
// when no position row exists yet.
func (r *Postgres) LockInstrument(ctx context.Context, ownerID, instrumentID int64) (err error) {
	op := "Postgres.LockInstrument"
	query := `SELECT instrument_id FROM instruments WHERE owner_id = $1 AND instrument_id = $2 FOR UPDATE`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "instrumentID": instrumentID})
	defer func() { done(err) }()

	var id int64
	err = r.txOrDb(ctx).QueryRowContext(ctx, query, ownerID, instrumentID).Scan(&id)
	return mapErr(err)
}

func (r *Postgres) UpsertPosition(ctx context.Context, position model.Position) (err error) {
	op := "Postgres.UpsertPosition"
	query := `
		INSERT INTO positions(instrument_id, owner_id, quantity, avg_cost, current_price, day_pnl, accumulated_pnl, price_source, dt_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (instrument_id, owner_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_cost = EXCLUDED.avg_cost,
			current_price = EXCLUDED.current_price,
			day_pnl = EXCLUDED.day_pnl,
			accumulated_pnl = EXCLUDED.accumulated_pnl,
			price_source = EXCLUDED.price_source,
			dt_update = EXCLUDED.dt_update
	`

	done := logQuery(ctx, op, query, map[string]any{
		"ownerID":      position.OwnerID,
		"instrumentID": position.InstrumentID,
		"quantity":     position.Quantity,
		"avgCost":      position.AvgCost.String(),
		"priceSource":  position.PriceSource,
	})
	defer func() { done(err) }()

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		position.InstrumentID,
		position.OwnerID,
		position.Quantity,
		position.AvgCost,
		position.CurrentPrice,
		position.DayPnL,
		position.AccumulatedPnL,
		string(position.PriceSource),
	)
	return err
}

func (r *Postgres) selectPositions(ctx context.Context, op, query string, args ...any) (positions []model.Position, err error) {
	done := logQuery(ctx, op, query, map[string]any{"args": args})
	defer func() { done(err) }()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var row dbModel.Position
		err = rows.StructScan(&row)
		if err != nil {
			return nil, err
		}
		positions = append(positions, dbConverter.ConvertPosition(row))
	}

	return positions, rows.Err()
}

// ListPositions returns the owner's positions, only those with quantity > 0 when onlyOpen is set.
func (r *Postgres) ListPositions(ctx context.Context, ownerID int64, onlyOpen bool) ([]model.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions p
		JOIN instruments i USING (instrument_id, owner_id)
		WHERE p.owner_id = $1
		AND (p.quantity > 0 OR NOT $2)
		ORDER BY i.symbol
	`

	return r.selectPositions(ctx, "Postgres.ListPositions", query, ownerID, onlyOpen)
}

// ListAllPositions returns every position row of every owner.
func (r *Postgres) ListAllPositions(ctx context.Context) ([]model.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions p
		JOIN instruments i USING (instrument_id, owner_id)
		ORDER BY p.owner_id, i.symbol
	`

	return r.selectPositions(ctx, "Postgres.ListAllPositions", query)
}

func (r *Postgres) DeletePosition(ctx context.Context, ownerID, instrumentID int64) (err error) {
	op := "Postgres.DeletePosition"
	query := `DELETE FROM positions WHERE owner_id = $1 AND instrument_id = $2`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "instrumentID": instrumentID})
	defer func() { done(err) }()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, ownerID, instrumentID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
