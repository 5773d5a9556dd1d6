package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for store operations. Check with errors.Is.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a record with the same key already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the matching
// sentinel when it's a known query error. Returns the original error
// otherwise.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		if strings.Contains(queryErr.Message, "already exists") {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, queryErr.Message)
		}
	}

	return err
}
