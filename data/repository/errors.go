package repository

import "errors"

var (
	ErrAlreadyExists = errors.New("error already exists")
	ErrNotFound      = errors.New("error not found")
)

// PgUniqueViolation is the SQLSTATE of unique_violation.
const PgUniqueViolation = "23505"
