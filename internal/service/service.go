package service

import (
	"context"

	"github.com/izpodvypodvert/todoapi/internal/domain"
)

const keyColumn = "id"

// Service is CRUD over one entity that is not owned by a user.
type Service[T any, K comparable] struct {
	entity string
	tx     TxManager
}

// NewService binds entity to tx. It fails when entity is not registered or is
// registered with a user-scoped repository.
func NewService[T any, K comparable](entity string, tx TxManager) (*Service[T, K], error) {
	if err := checkRegistered[Repository[T]](tx, entity); err != nil {
		return nil, err
	}
	return &Service[T, K]{entity: entity, tx: tx}, nil
}

func (s *Service[T, K]) Entity() string {
	return s.entity
}

func (s *Service[T, K]) GetAll(ctx context.Context) ([]*T, error) {
	var items []*T
	err := s.run(ctx, func(repo Repository[T]) error {
		var err error
		items, err = repo.FindAll(ctx, nil)
		return err
	})
	return items, err
}

func (s *Service[T, K]) GetByID(ctx context.Context, id K) (*T, error) {
	var item *T
	err := s.run(ctx, func(repo Repository[T]) error {
		found, err := repo.FindOneOrNone(ctx, Filter{keyColumn: id})
		if err != nil {
			return err
		}
		if found == nil {
			return domain.NotFound(s.entity, id)
		}
		item = found
		return nil
	})
	return item, err
}

func (s *Service[T, K]) Create(ctx context.Context, input Fielder) (*T, error) {
	var item *T
	err := s.run(ctx, func(repo Repository[T]) error {
		var err error
		item, err = repo.Insert(ctx, input.Fields())
		return err
	})
	return item, err
}

// Delete returns the number of records removed; 0 means nothing matched.
func (s *Service[T, K]) Delete(ctx context.Context, id K) (int64, error) {
	var n int64
	err := s.run(ctx, func(repo Repository[T]) error {
		var err error
		n, err = repo.Delete(ctx, Filter{keyColumn: id})
		return err
	})
	return n, err
}

// Update applies the set fields of input and returns the number of records
// changed.
func (s *Service[T, K]) Update(ctx context.Context, id K, input Fielder) (int64, error) {
	var n int64
	err := s.run(ctx, func(repo Repository[T]) error {
		var err error
		n, err = repo.UpdateByID(ctx, id, nil, input.Fields())
		return err
	})
	return n, err
}

func (s *Service[T, K]) run(ctx context.Context, fn func(repo Repository[T]) error) error {
	return s.tx.WithScope(ctx, func(scope Scope) error {
		repo, err := repositoryFor[Repository[T]](scope, s.entity)
		if err != nil {
			return err
		}
		return fn(repo)
	})
}

// UserScopedService is CRUD over an entity owned by a user. Every operation
// requires the acting user and only ever sees that user's records.
type UserScopedService[T any, K comparable] struct {
	entity string
	tx     TxManager
}

// NewUserScopedService binds entity to tx. It fails unless entity is
// registered with a user-scoped repository.
func NewUserScopedService[T any, K comparable](entity string, tx TxManager) (*UserScopedService[T, K], error) {
	if err := checkRegistered[OwnedRepository[T]](tx, entity); err != nil {
		return nil, err
	}
	return &UserScopedService[T, K]{entity: entity, tx: tx}, nil
}

func (s *UserScopedService[T, K]) Entity() string {
	return s.entity
}

func (s *UserScopedService[T, K]) GetAll(ctx context.Context, owner *domain.User) ([]*T, error) {
	var items []*T
	err := s.run(ctx, owner, func(repo OwnedRepository[T]) error {
		var err error
		items, err = repo.FindAll(ctx, owner.ID, nil)
		return err
	})
	return items, err
}

// GetByID returns the owner's record. A record that exists but belongs to
// someone else is reported as not found.
func (s *UserScopedService[T, K]) GetByID(ctx context.Context, owner *domain.User, id K) (*T, error) {
	var item *T
	err := s.run(ctx, owner, func(repo OwnedRepository[T]) error {
		found, err := repo.FindOneOrNone(ctx, owner.ID, Filter{keyColumn: id})
		if err != nil {
			return err
		}
		if found == nil {
			return domain.NotFound(s.entity, id)
		}
		item = found
		return nil
	})
	return item, err
}

func (s *UserScopedService[T, K]) Create(ctx context.Context, owner *domain.User, input Fielder) (*T, error) {
	var item *T
	err := s.run(ctx, owner, func(repo OwnedRepository[T]) error {
		var err error
		item, err = repo.Insert(ctx, owner.ID, input.Fields())
		return err
	})
	return item, err
}

func (s *UserScopedService[T, K]) Delete(ctx context.Context, owner *domain.User, id K) (int64, error) {
	var n int64
	err := s.run(ctx, owner, func(repo OwnedRepository[T]) error {
		var err error
		n, err = repo.Delete(ctx, owner.ID, Filter{keyColumn: id})
		return err
	})
	return n, err
}

func (s *UserScopedService[T, K]) Update(ctx context.Context, owner *domain.User, id K, input Fielder) (int64, error) {
	var n int64
	err := s.run(ctx, owner, func(repo OwnedRepository[T]) error {
		var err error
		n, err = repo.UpdateByID(ctx, owner.ID, id, nil, input.Fields())
		return err
	})
	return n, err
}

// UpdateAndGet applies input and returns the record as stored, within one
// scope. Zero matched records is a not-found error.
func (s *UserScopedService[T, K]) UpdateAndGet(ctx context.Context, owner *domain.User, id K, input Fielder) (*T, error) {
	var item *T
	err := s.run(ctx, owner, func(repo OwnedRepository[T]) error {
		n, err := repo.UpdateByID(ctx, owner.ID, id, nil, input.Fields())
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NotFound(s.entity, id)
		}
		item, err = repo.FindOneOrNone(ctx, owner.ID, Filter{keyColumn: id})
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NotFound(s.entity, id)
		}
		return nil
	})
	return item, err
}

func (s *UserScopedService[T, K]) run(ctx context.Context, owner *domain.User, fn func(repo OwnedRepository[T]) error) error {
	if owner == nil {
		return domain.ErrMissingOwner
	}
	return s.tx.WithScope(ctx, func(scope Scope) error {
		repo, err := repositoryFor[OwnedRepository[T]](scope, s.entity)
		if err != nil {
			return err
		}
		return fn(repo)
	})
}
