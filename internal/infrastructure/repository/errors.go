package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound marks lookups that matched no row.
var ErrNotFound = errors.New("entity not found")

// IsNotFound checks if the error indicates a record was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
