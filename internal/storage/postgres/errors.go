package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

// classify переводит ошибки PostgreSQL в доменную таксономию.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	switch sqlState(err) {
	case sqlStateUniqueViolation:
		return domain.Conflict(domain.ErrWriteConflict, "%s: duplicate key", op)
	case sqlStateForeignKeyViolation:
		return domain.Conflict(domain.ErrWriteConflict, "%s: referenced row is missing or still in use", op)
	case sqlStateCheckViolation:
		return domain.Conflict(domain.ErrWriteConflict, "%s: check constraint violated", op)
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return domain.Conflict(domain.ErrWriteConflict, "%s: concurrent transaction conflict, retry the request", op)
	default:
		return domain.Storage(op, err)
	}
}
