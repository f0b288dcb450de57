package repository

import (
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/service"
)

var (
	todoTable = TableDef{
		Name:    "todos",
		Key:     "id",
		Columns: []string{"id", "title", "description", "user_id"},
	}
	userTable = TableDef{
		Name: "users",
		Key:  "id",
		Columns: []string{
			"id", "email", "username", "hashed_password",
			"is_active", "is_superuser", "is_verified", "created_at",
		},
	}
	oauthAccountTable = TableDef{
		Name: "oauth_accounts",
		Key:  "id",
		Columns: []string{
			"id", "user_id", "oauth_name", "access_token", "expires_at",
			"refresh_token", "account_id", "account_email",
		},
	}
)

// NewDefaultRegistry registers every entity the API serves.
func NewDefaultRegistry() *Registry {
	return NewRegistry().
		Register(domain.EntityTodo, func(db DBTX) any {
			return NewOwnedTable(NewTable[domain.Todo](db, todoTable), "user_id")
		}).
		Register(domain.EntityUser, func(db DBTX) any {
			return NewTable[domain.User](db, userTable)
		}).
		Register(domain.EntityOAuthAccount, func(db DBTX) any {
			return NewTable[domain.OAuthAccount](db, oauthAccountTable)
		})
}

var (
	_ DBTX                                 = (*Scope)(nil)
	_ service.Scope                        = (*Scope)(nil)
	_ service.TxManager                    = (*TxManager)(nil)
	_ service.Repository[domain.User]      = (*Table[domain.User])(nil)
	_ service.OwnedRepository[domain.Todo] = (*OwnedTable[domain.Todo])(nil)
)
