package postgres

import (
	"context"

	"github.com/KotFed0t/portfolio_tracker/data/repository"
	"github.com/KotFed0t/portfolio_tracker/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/dbModel"
)

const transactionColumns = `t.transaction_id, t.instrument_id, t.owner_id, i.symbol, t.trade_date, t.side, t.quantity, t.price, t.dt_create`

func (r *Postgres) InsertTransaction(ctx context.Context, transaction model.Transaction) (transactionID int64, err error) {
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(instrument_id, owner_id, trade_date, side, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING transaction_id
	`

	done := logQuery(ctx, op, query, map[string]any{
		"instrumentID": transaction.InstrumentID,
		"ownerID":      transaction.OwnerID,
		"side":         transaction.Side,
		"quantity":     transaction.Quantity,
		"price":        transaction.Price.String(),
	})
	defer func() { done(err) }()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		transaction.InstrumentID,
		transaction.OwnerID,
		transaction.TradeDate,
		string(transaction.Side),
		transaction.Quantity,
		transaction.Price,
	).Scan(&transactionID)
	if err != nil {
		return 0, mapErr(err)
	}

	return transactionID, nil
}

func (r *Postgres) GetTransaction(ctx context.Context, ownerID, transactionID int64) (transaction model.Transaction, err error) {
	op := "Postgres.GetTransaction"
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN instruments i USING (instrument_id, owner_id)
		WHERE t.owner_id = $1 AND t.transaction_id = $2
	`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "transactionID": transactionID})
	defer func() { done(err) }()

	row := dbModel.Transaction{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, ownerID, transactionID).StructScan(&row)
	if err != nil {
		return model.Transaction{}, mapErr(err)
	}

	return dbConverter.ConvertTransaction(row), nil
}

func (r *Postgres) DeleteTransaction(ctx context.Context, ownerID, transactionID int64) (err error) {
	op := "Postgres.DeleteTransaction"
	query := `DELETE FROM transactions WHERE owner_id = $1 AND transaction_id = $2`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "transactionID": transactionID})
	defer func() { done(err) }()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, ownerID, transactionID)
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

// ListTransactions returns the owner's ledger newest first, optionally narrowed to one instrument.
func (r *Postgres) ListTransactions(ctx context.Context, ownerID int64, instrumentID *int64) (transactions []model.Transaction, err error) {
	op := "Postgres.ListTransactions"
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN instruments i USING (instrument_id, owner_id)
		WHERE t.owner_id = $1
		AND ($2::BIGINT IS NULL OR t.instrument_id = $2)
		ORDER BY t.trade_date DESC, t.transaction_id DESC
	`

	done := logQuery(ctx, op, query, map[string]any{"ownerID": ownerID, "instrumentID": instrumentID})
	defer func() { done(err) }()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, ownerID, instrumentID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var row dbModel.Transaction
		err = rows.StructScan(&row)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, dbConverter.ConvertTransaction(row))
	}

	return transactions, rows.Err()
}
