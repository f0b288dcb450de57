package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// EntityTodo is the registry tag of the todo entity.
const EntityTodo = "todo"

const maxTodoTitleLength = 255

// Todo is a task owned by exactly one user.
type Todo struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description *string   `db:"description"`
	UserID      uuid.UUID `db:"user_id"`
}

// TodoCreate carries the fields accepted when creating a todo.
type TodoCreate struct {
	Title       string
	Description *string
}

// Fields flattens the input into column data.
func (c TodoCreate) Fields() map[string]any {
	return map[string]any{
		"title":       c.Title,
		"description": c.Description,
	}
}

// Validate checks the create input.
func (c TodoCreate) Validate() error {
	return validateTodoTitle(c.Title)
}

// TodoUpdate is a partial update; nil or unset fields are left untouched.
// An explicit null description clears it.
type TodoUpdate struct {
	Title       *string
	Description Nullable[string]
}

// Fields returns only the fields that were set.
func (u TodoUpdate) Fields() map[string]any {
	fields := make(map[string]any, 2)
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Description.Set {
		fields["description"] = u.Description.column()
	}
	return fields
}

// Validate checks the update input.
func (u TodoUpdate) Validate() error {
	if u.Title != nil {
		return validateTodoTitle(*u.Title)
	}
	return nil
}

func validateTodoTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return NewDomainError(ErrCodeValidation, "todo title is required")
	}
	if utf8.RuneCountInString(title) > maxTodoTitleLength {
		return NewDomainError(ErrCodeValidation, "todo title is too long")
	}
	return nil
}
