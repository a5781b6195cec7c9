package dbModel

import "time"

type Instrument struct {
	ID        int64     `db:"instrument_id"`
	OwnerID   int64     `db:"owner_id"`
	Symbol    string    `db:"symbol"`
	Name      string    `db:"name"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"dt_create"`
}
