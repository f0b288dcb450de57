package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/pagination"
)

// UserRepository holds user queries that fall outside the generic contract.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// ListWithCursor pages through users, newest first.
func (r *UserRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.User], error) {
	if limit <= 0 {
		limit = 20
	}

	builder := psql.Select(userTable.Columns...).
		From(userTable.Name).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit + 1))
	if cursor != nil {
		builder = builder.Where(squirrel.Expr("(created_at, id) < (?, ?)", cursor.Timestamp, cursor.LastID))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var users []*domain.User
	if err := pgxscan.Select(ctx, r.db, &users, query, args...); err != nil {
		return nil, translateError("list", userTable.Name, err)
	}

	return pagination.NewPage(users, limit, userCursorKey), nil
}

func userCursorKey(u *domain.User) (string, time.Time) {
	return u.ID.String(), u.CreatedAt
}
