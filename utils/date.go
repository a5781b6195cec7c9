package utils

import "time"

// Day returns the calendar day of t as midnight UTC, the form DATE columns are compared in.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
