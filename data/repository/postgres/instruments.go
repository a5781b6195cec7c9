package postgres

import (
	"context"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
)

const instrumentColumns = `instrument_id, owner_id, symbol, name, active, dt_create`

func (r *Postgres) InsertInstrument(ctx context.Context, instrument model.Instrument) (instrumentID int64, err error) {
	op := "Postgres.InsertInstrument"
	query := `
		INSERT INTO instruments(owner_id, symbol, name, active)
		VALUES ($1, $2, $3, $4)
		RETURNING instrument_id
	`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": instrument.OwnerID, "symbol": instrument.Symbol})
	defer func() { done(err) }()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, instrument.OwnerID, instrument.Symbol, instrument.Name, instrument.Active).
		Scan(&instrumentID)
	if err != nil {
		return 0, mapErr(err)
	}

	return instrumentID, nil
}

func (r *Postgres) GetInstrument(ctx context.Context, ownerID, instrumentID int64) (instrument model.Instrument, err error) {
	op := "Postgres.GetInstrument"
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE owner_id = $1 AND instrument_id = $2`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "instrumentID": instrumentID})
	defer func() { done(err) }()

	row := dbModel.Instrument{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, ownerID, instrumentID).StructScan(&row)
	if err != nil {
		return model.Instrument{}, mapErr(err)
	}

	return dbConverter.ConvertInstrument(row), nil
}

func (r *Postgres) GetInstrumentBySymbol(ctx context.Context, ownerID int64, symbol string) (instrument model.Instrument, err error) {
	op := "Postgres.GetInstrumentBySymbol"
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE owner_id = $1 AND symbol = $2`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "symbol": symbol})
	defer func() { done(err) }()

	row := dbModel.Instrument{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, ownerID, symbol).StructScan(&row)
	if err != nil {
		return model.Instrument{}, mapErr(err)
	}

	return dbConverter.ConvertInstrument(row), nil
}

func (r *Postgres) selectInstruments(ctx context.Context, op, query string, args ...any) (instruments []model.Instrument, err error) {
	done := logQuery(ctx, op, query, map[string]any{"args": args})
	defer func() { done(err) }()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var row dbModel.Instrument
		err = rows.StructScan(&row)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, dbConverter.ConvertInstrument(row))
	}

	return instruments, rows.Err()
}

func (r *Postgres) ListInstruments(ctx context.Context, ownerID int64, onlyActive bool) ([]model.Instrument, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE owner_id = $1
		AND (active OR NOT $2)
		ORDER BY symbol
	`

	return r.selectInstruments(ctx, "Postgres.ListInstruments", query, ownerID, onlyActive)
}

// ListActiveInstruments returns active instruments of every owner.
func (r *Postgres) ListActiveInstruments(ctx context.Context) ([]model.Instrument, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE active
		ORDER BY owner_id, symbol
	`

	return r.selectInstruments(ctx, "Postgres.ListActiveInstruments", query)
}

func (r *Postgres) SetInstrumentActive(ctx context.Context, ownerID, instrumentID int64, active bool) (err error) {
	op := "Postgres.SetInstrumentActive"
	query := `UPDATE instruments SET active = $1 WHERE owner_id = $2 AND instrument_id = $3`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "instrumentID": instrumentID, "active": active})
	defer func() { done(err) }()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, active, ownerID, instrumentID)
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

// DeleteInstrument removes the instrument, transactions, daily closes and position go with it (cascade).
func (r *Postgres) DeleteInstrument(ctx context.Context, ownerID, instrumentID int64) (err error) {
	op := "Postgres.DeleteInstrument"
	query := `DELETE FROM instruments WHERE owner_id = $1 AND instrument_id = $2`

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
