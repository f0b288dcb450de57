package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/service"
)

// TableDef describes how an entity is stored.
type TableDef struct {
	Name    string
	Key     string
	Columns []string
}

// Table is a generic repository over one table.
type Table[T any] struct {
	db      DBTX
	def     TableDef
	allowed map[string]struct{}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func NewTable[T any](db DBTX, def TableDef) *Table[T] {
	allowed := make(map[string]struct{}, len(def.Columns))
	for _, c := range def.Columns {
		allowed[c] = struct{}{}
	}
	return &Table[T]{db: db, def: def, allowed: allowed}
}

func (t *Table[T]) FindOneOrNone(ctx context.Context, filter service.Filter) (*T, error) {
	if err := t.checkColumns(filter); err != nil {
		return nil, err
	}

	query, args, err := t.selectBuilder(filter).Limit(2).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var items []*T
	if err := pgxscan.Select(ctx, t.db, &items, query, args...); err != nil {
		return nil, translateError("find", t.def.Name, err)
	}

	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	default:
		return nil, domain.ErrMultipleResults
	}
}

func (t *Table[T]) FindAll(ctx context.Context, filter service.Filter) ([]*T, error) {
	if err := t.checkColumns(filter); err != nil {
		return nil, err
	}

	query, args, err := t.selectBuilder(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	items := make([]*T, 0)
	if err := pgxscan.Select(ctx, t.db, &items, query, args...); err != nil {
		return nil, translateError("list", t.def.Name, err)
	}
	return items, nil
}

func (t *Table[T]) Insert(ctx context.Context, data map[string]any) (*T, error) {
	if len(data) == 0 {
		return nil, domain.ErrMissingRequiredField
	}
	if err := t.checkColumns(data); err != nil {
		return nil, err
	}

	query, args, err := psql.Insert(t.def.Name).
		SetMap(data).
		Suffix("RETURNING " + strings.Join(t.def.Columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}

	var item T
	if err := pgxscan.Get(ctx, t.db, &item, query, args...); err != nil {
		return nil, translateError("insert", t.def.Name, err)
	}
	return &item, nil
}

func (t *Table[T]) UpdateByID(ctx context.Context, id any, filter service.Filter, data map[string]any) (int64, error) {
	if len(data) == 0 {
		return 0, domain.ErrEmptyUpdate
	}
	if err := t.checkColumns(filter); err != nil {
		return 0, err
	}
	if err := t.checkColumns(data); err != nil {
		return 0, err
	}
	if _, ok := data[t.def.Key]; ok {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "primary key cannot be updated")
	}

	builder := psql.Update(t.def.Name).
		SetMap(data).
		Where(squirrel.Eq{t.def.Key: id})
	if len(filter) > 0 {
		builder = builder.Where(squirrel.Eq(filter))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, translateError("update", t.def.Name, err)
	}
	return tag.RowsAffected(), nil
}

func (t *Table[T]) Delete(ctx context.Context, filter service.Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, domain.ErrEmptyFilter
	}
	if err := t.checkColumns(filter); err != nil {
		return 0, err
	}

	query, args, err := psql.Delete(t.def.Name).Where(squirrel.Eq(filter)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}

	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, translateError("delete", t.def.Name, err)
	}
	return tag.RowsAffected(), nil
}

func (t *Table[T]) selectBuilder(filter service.Filter) squirrel.SelectBuilder {
	builder := psql.Select(t.def.Columns...).From(t.def.Name).OrderBy(t.def.Key)
	if len(filter) > 0 {
		builder = builder.Where(squirrel.Eq(filter))
	}
	return builder
}

// checkColumns rejects keys that are not columns of the table. Keys end up
// in SQL text, so nothing outside the whitelist may pass.
func (t *Table[T]) checkColumns(fields map[string]any) error {
	var unknown []string
	for k := range fields {
		if _, ok := t.allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
		fmt.Sprintf("unknown %s field(s): %s", t.def.Name, strings.Join(unknown, ", ")),
		domain.ErrUnknownField)
}
