package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/service"
)

// OwnedTable narrows a Table to the rows of a single owner. The owner is a
// required argument of every method, and the owner column can be neither
// filtered on nor written by callers.
type OwnedTable[T any] struct {
	table       *Table[T]
	ownerColumn string
}

func NewOwnedTable[T any](table *Table[T], ownerColumn string) *OwnedTable[T] {
	return &OwnedTable[T]{table: table, ownerColumn: ownerColumn}
}

func (o *OwnedTable[T]) FindOneOrNone(ctx context.Context, owner uuid.UUID, filter service.Filter) (*T, error) {
	scoped, err := o.scope(owner, filter)
	if err != nil {
		return nil, err
	}
	return o.table.FindOneOrNone(ctx, scoped)
}

func (o *OwnedTable[T]) FindAll(ctx context.Context, owner uuid.UUID, filter service.Filter) ([]*T, error) {
	scoped, err := o.scope(owner, filter)
	if err != nil {
		return nil, err
	}
	return o.table.FindAll(ctx, scoped)
}

func (o *OwnedTable[T]) Insert(ctx context.Context, owner uuid.UUID, data map[string]any) (*T, error) {
	stamped, err := o.scope(owner, data)
	if err != nil {
		return nil, err
	}
	return o.table.Insert(ctx, stamped)
}

func (o *OwnedTable[T]) UpdateByID(ctx context.Context, owner uuid.UUID, id any, filter service.Filter, data map[string]any) (int64, error) {
	if _, ok := data[o.ownerColumn]; ok {
		return 0, domain.ErrOwnerReadOnly
	}
	scoped, err := o.scope(owner, filter)
	if err != nil {
		return 0, err
	}
	return o.table.UpdateByID(ctx, id, scoped, data)
}

func (o *OwnedTable[T]) Delete(ctx context.Context, owner uuid.UUID, filter service.Filter) (int64, error) {
	scoped, err := o.scope(owner, filter)
	if err != nil {
		return 0, err
	}
	return o.table.Delete(ctx, scoped)
}

// scope copies fields and adds the owner constraint.
func (o *OwnedTable[T]) scope(owner uuid.UUID, fields map[string]any) (map[string]any, error) {
	if owner == uuid.Nil {
		return nil, domain.ErrMissingOwner
	}
	if _, ok := fields[o.ownerColumn]; ok {
		return nil, domain.ErrOwnerReadOnly
	}

	scoped := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		scoped[k] = v
	}
	scoped[o.ownerColumn] = owner
	return scoped, nil
}
