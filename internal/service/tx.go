package service

import (
	"context"

	"github.com/google/uuid"
)

// Filter is an equality filter: every key is a column that must equal its value.
type Filter map[string]any

// Fielder flattens an input into column data.
type Fielder interface {
	Fields() map[string]any
}

// Repository is the data access contract for one entity type.
type Repository[T any] interface {
	FindOneOrNone(ctx context.Context, filter Filter) (*T, error)
	FindAll(ctx context.Context, filter Filter) ([]*T, error)
	Insert(ctx context.Context, data map[string]any) (*T, error)
	UpdateByID(ctx context.Context, id any, filter Filter, data map[string]any) (int64, error)
	Delete(ctx context.Context, filter Filter) (int64, error)
}

// OwnedRepository is a Repository whose every call is constrained to the rows
// of one owner.
type OwnedRepository[T any] interface {
	FindOneOrNone(ctx context.Context, owner uuid.UUID, filter Filter) (*T, error)
	FindAll(ctx context.Context, owner uuid.UUID, filter Filter) ([]*T, error)
	Insert(ctx context.Context, owner uuid.UUID, data map[string]any) (*T, error)
	UpdateByID(ctx context.Context, owner uuid.UUID, id any, filter Filter, data map[string]any) (int64, error)
	Delete(ctx context.Context, owner uuid.UUID, filter Filter) (int64, error)
}

// Scope is an open unit of work. All repositories it hands out share one
// transaction.
type Scope interface {
	Repository(entity string) (any, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager opens units of work.
type TxManager interface {
	// WithScope runs fn inside a scope, committing when fn returns nil and
	// rolling back otherwise.
	WithScope(ctx context.Context, fn func(scope Scope) error) error
	// Unbound returns an unbound repository for entity so callers can check
	// registration and type before serving traffic.
	Unbound(entity string) (any, error)
}

// repositoryFor resolves the repository registered for entity in scope as R.
func repositoryFor[R any](scope Scope, entity string) (R, error) {
	var zero R
	raw, err := scope.Repository(entity)
	if err != nil {
		return zero, err
	}
	repo, ok := raw.(R)
	if !ok {
		return zero, misregistered(entity, raw)
	}
	return repo, nil
}

// checkRegistered checks at construction time that entity resolves to R.
func checkRegistered[R any](tx TxManager, entity string) error {
	raw, err := tx.Unbound(entity)
	if err != nil {
		return err
	}
	if _, ok := raw.(R); !ok {
		return misregistered(entity, raw)
	}
	return nil
}
