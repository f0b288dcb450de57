package service

import (
	"context"

	"github.com/izpodvypodvert/todoapi/internal/domain"
)

// TodoService manages the todos of the calling user.
type TodoService struct {
	*UserScopedService[domain.Todo, int64]
}

func NewTodoService(tx TxManager) (*TodoService, error) {
	base, err := NewUserScopedService[domain.Todo, int64](domain.EntityTodo, tx)
	if err != nil {
		return nil, err
	}
	return &TodoService{UserScopedService: base}, nil
}

func (s *TodoService) Create(ctx context.Context, owner *domain.User, input domain.TodoCreate) (*domain.Todo, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.UserScopedService.Create(ctx, owner, input)
}

// Update applies input and returns the updated todo.
func (s *TodoService) Update(ctx context.Context, owner *domain.User, id int64, input domain.TodoUpdate) (*domain.Todo, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.UpdateAndGet(ctx, owner, id, input)
}
