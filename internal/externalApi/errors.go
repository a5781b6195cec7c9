package externalApi

import "errors"

var (
	ErrNotFound     = errors.New("error not found")
	ErrEmptyHistory = errors.New("error empty history")
)
