package model

import "time"

type Instrument struct {
	ID        int64
	OwnerID   int64
	Symbol    string
	Name      string
	Active    bool
	CreatedAt time.Time
}
