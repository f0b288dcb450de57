package repository

import (
	"fmt"

	"github.com/izpodvypodvert/todoapi/internal/domain"
)

// Factory builds a repository bound to db.
type Factory func(db DBTX) any

// Registry maps entity tags to repository factories. Every scope builds one
// repository per registered entity.
type Registry struct {
	factories map[string]Factory
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for entity. Registering the same entity twice is a
// wiring bug and panics.
func (r *Registry) Register(entity string, factory Factory) *Registry {
	if _, exists := r.factories[entity]; exists {
		panic(fmt.Sprintf("repository: entity %q registered twice", entity))
	}
	r.factories[entity] = factory
	r.order = append(r.order, entity)
	return r
}

// Require fails with a misconfiguration error naming the first entity that
// has no factory.
func (r *Registry) Require(entities ...string) error {
	for _, entity := range entities {
		if _, ok := r.factories[entity]; !ok {
			return domain.MissingRepository(entity)
		}
	}
	return nil
}

// Unbound builds a repository with no connection for entity. The result must not be used
// for queries.
func (r *Registry) Unbound(entity string) (any, error) {
	factory, ok := r.factories[entity]
	if !ok {
		return nil, domain.MissingRepository(entity)
	}
	return factory(nil), nil
}

// Entities returns the registered tags in registration order.
func (r *Registry) Entities() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) build(db DBTX) map[string]any {
	repos := make(map[string]any, len(r.factories))
	for _, entity := range r.order {
		repos[entity] = r.factories[entity](db)
	}
	return repos
}
