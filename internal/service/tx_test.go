package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/stretchr/testify/mock"
)

type testScope struct {
	repos map[string]any
}

func (s *testScope) Repository(entity string) (any, error) {
	repo, ok := s.repos[entity]
	if !ok {
		return nil, domain.MissingRepository(entity)
	}
	return repo, nil
}

func (s *testScope) Commit(context.Context) error   { return nil }
func (s *testScope) Rollback(context.Context) error { return nil }

// testTxManager runs scopes over fixed repositories and records how they
// ended.
type testTxManager struct {
	repos     map[string]any
	scopes    int
	commits   int
	rollbacks int
}

func newTestTxManager(repos map[string]any) *testTxManager {
	return &testTxManager{repos: repos}
}

func (t *testTxManager) WithScope(ctx context.Context, fn func(scope Scope) error) error {
	t.scopes++
	if err := fn(&testScope{repos: t.repos}); err != nil {
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

func (t *testTxManager) Unbound(entity string) (any, error) {
	repo, ok := t.repos[entity]
	if !ok {
		return nil, domain.MissingRepository(entity)
	}
	return repo, nil
}

type MockRepository[T any] struct {
	mock.Mock
}

func (m *MockRepository[T]) FindOneOrNone(ctx context.Context, filter Filter) (*T, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockRepository[T]) FindAll(ctx context.Context, filter Filter) ([]*T, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*T), args.Error(1)
}

func (m *MockRepository[T]) Insert(ctx context.Context, data map[string]any) (*T, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockRepository[T]) UpdateByID(ctx context.Context, id any, filter Filter, data map[string]any) (int64, error) {
	args := m.Called(ctx, id, filter, data)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository[T]) Delete(ctx context.Context, filter Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockOwnedRepository[T any] struct {
	mock.Mock
}

func (m *MockOwnedRepository[T]) FindOneOrNone(ctx context.Context, owner uuid.UUID, filter Filter) (*T, error) {
	args := m.Called(ctx, owner, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockOwnedRepository[T]) FindAll(ctx context.Context, owner uuid.UUID, filter Filter) ([]*T, error) {
	args := m.Called(ctx, owner, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*T), args.Error(1)
}

func (m *MockOwnedRepository[T]) Insert(ctx context.Context, owner uuid.UUID, data map[string]any) (*T, error) {
	args := m.Called(ctx, owner, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockOwnedRepository[T]) UpdateByID(ctx context.Context, owner uuid.UUID, id any, filter Filter, data map[string]any) (int64, error) {
	args := m.Called(ctx, owner, id, filter, data)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOwnedRepository[T]) Delete(ctx context.Context, owner uuid.UUID, filter Filter) (int64, error) {
	args := m.Called(ctx, owner, filter)
	return args.Get(0).(int64), args.Error(1)
}
