package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/fare-enricher/internal/store"
)

// SQLSTATE codes the stores react to.
const (
	uniqueViolationCode  = "23505"
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
	numericRangeCode     = "22003" // retail_price exceeds NUMERIC(12,2)
)

var pgKinds = map[string]error{
	uniqueViolationCode:  store.ErrDuplicate,
	checkViolationCode:   store.ErrInvalidEntity,
	notNullViolationCode: store.ErrInvalidEntity,
	numericRangeCode:     store.ErrInvalidEntity,
}

// MapError translates driver errors into store error kinds. Unrecognised
// errors pass through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	pgErr, ok := asPgError(err)
	if !ok {
		return err
	}
	kind, known := pgKinds[pgErr.Code]
	if !known {
		return err
	}

	detail := pgErr.ConstraintName
	if detail == "" {
		detail = pgErr.ColumnName
	}
	if detail == "" {
		return fmt.Errorf("%w: %v", kind, err)
	}
	return fmt.Errorf("%w (%s): %v", kind, detail, err)
}

// IsUniqueViolation reports whether err is a Postgres unique-key conflict.
func IsUniqueViolation(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == uniqueViolationCode
}

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func rowsAffected(res sql.Result) (int64, error) {
	if res == nil {
		return 0, errors.New("no result from statement")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
