package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface shared by pgxpool.Pool, pgx.Tx and Scope.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. Satisfied by pgxpool.Pool and pgxmock pools.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const pgUniqueViolation = "23505"

// translateError maps store errors that callers are expected to handle onto
// domain errors and wraps the rest.
func translateError(op, table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.NewDomainErrorWithCause(domain.ErrCodeAlreadyExists,
			fmt.Sprintf("%s already exists", table), err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, table, err)
}
