package service

import "errors"

var (
	ErrOwnerNotFound       = errors.New("error owner not found")
	ErrInstrumentNotFound  = errors.New("error instrument not found")
	ErrTransactionNotFound = errors.New("error transaction not found")
	ErrAlreadyExists       = errors.New("error already exists")
	ErrInvalidTicker       = errors.New("error invalid ticker")
	ErrInstrumentInactive  = errors.New("error instrument is not active")
	ErrInvalidTransaction  = errors.New("error invalid transaction")
	ErrNoPosition          = errors.New("error no position to sell from")
	ErrInsufficientBalance = errors.New("error insufficient balance")
	ErrOpenPosition        = errors.New("error instrument has an open position")
)
