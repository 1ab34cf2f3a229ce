package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres unique_violation.
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err came out of a unique index. Pass a
// constraint name to match one index specifically (substring match, since
// Postgres suffixes generated names); an empty name matches any duplicate.
// The payment-code generator leans on this to retry collisions.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || strings.Contains(pgErr.ConstraintName, constraintName)
	}

	// Drivers that do not surface typed errors (the sqlite test driver
	// included) only give us the message text.
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
