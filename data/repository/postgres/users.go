package postgres

import (
	"context"
)

func (r *Postgres) InsertUser(ctx context.Context, chatID int64) (userID int64, err error) {
	op := "Postgres.InsertUser"
	query := `INSERT INTO users(chat_id) VALUES($1) RETURNING user_id`

	done := logQuery(ctx, op, query, map[string]any{"chatID": chatID})
	defer func() { done(err) }()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&userID)
	if err != nil {
		return 0, mapErr(err)
	}

	return userID, nil
}

func (r *Postgres) GetUserID(ctx context.Context, chatID int64) (userID int64, err error) {
	op := "Postgres.GetUserID"
	query := `SELECT user_id FROM users WHERE chat_id = $1`

	done := logQuery(ctx, op, query, map[string]any{"chatID": chatID})
	defer func() { done(err) }()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&userID)
	if err != nil {
		return 0, mapErr(err)
	}

	return userID, nil
}

func (r *Postgres) UserExists(ctx context.Context, userID int64) (exists bool, err error) {
	op := "Postgres.UserExists"
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`

	done := logQuery(ctx, op, query, map[string]any{"userID": userID})
	defer func() { done(err) }()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, userID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}
