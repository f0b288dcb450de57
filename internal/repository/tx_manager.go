package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/logger"
	"github.com/izpodvypodvert/todoapi/internal/service"
	"github.com/izpodvypodvert/todoapi/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxObserver is told how each transaction ended.
type TxObserver interface {
	TxCommitted()
	TxRolledBack()
}

type noopObserver struct{}

func (noopObserver) TxCommitted()  {}
func (noopObserver) TxRolledBack() {}

const defaultReleaseTimeout = 5 * time.Second

// TxManager opens transaction scopes over a pool.
type TxManager struct {
	db             Beginner
	registry       *Registry
	observer       TxObserver
	releaseTimeout time.Duration
}

type TxManagerOption func(*TxManager)

func WithObserver(o TxObserver) TxManagerOption {
	return func(m *TxManager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithReleaseTimeout bounds how long a rollback may take once the caller's
// context is gone.
func WithReleaseTimeout(d time.Duration) TxManagerOption {
	return func(m *TxManager) {
		if d > 0 {
			m.releaseTimeout = d
		}
	}
}

func NewTxManager(db Beginner, registry *Registry, opts ...TxManagerOption) *TxManager {
	m := &TxManager{
		db:             db,
		registry:       registry,
		observer:       noopObserver{},
		releaseTimeout: defaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *TxManager) Unbound(entity string) (any, error) {
	return m.registry.Unbound(entity)
}

// Begin opens a scope. The caller owns it and must Close it.
func (m *TxManager) Begin(ctx context.Context) (*Scope, error) {
	s := &Scope{manager: m, state: StateIdle}
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	s.repos = m.registry.build(s)
	return s, nil
}

// WithScope runs fn inside a new scope. The scope commits when fn returns nil
// while ctx is still live and rolls back otherwise, including on panic. It is
// closed on every path.
func (m *TxManager) WithScope(ctx context.Context, fn func(scope service.Scope) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "db.transaction", telemetry.SpanAttributes{Operation: "transaction"})
	defer func() { span.End(err) }()

	scope, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			m.release(ctx, scope)
			panic(p)
		}
	}()

	if err := fn(scope); err != nil {
		m.release(ctx, scope)
		return err
	}

	if err := ctx.Err(); err != nil {
		m.release(ctx, scope)
		return err
	}

	if err := scope.Commit(ctx); err != nil {
		m.release(ctx, scope)
		return err
	}

	return scope.Close(ctx)
}

func (m *TxManager) release(ctx context.Context, scope *Scope) {
	telemetry.AddBreadcrumb(ctx, "db.transaction", "transaction rolled back")
	if err := scope.Close(ctx); err != nil {
		logger.FromContext(ctx).Warn("transaction release failed", "error", err)
	}
}

// ScopeState tracks the lifecycle of a Scope.
type ScopeState int

const (
	StateIdle ScopeState = iota
	StateOpen
	StateCommitted
	StateRolledBack
	StateClosed
)

func (s ScopeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ScopeState(%d)", int(s))
	}
}

// Scope is one unit of work. Repositories obtained from it run on the scope's
// current transaction; after Commit or Rollback the next statement starts a
// fresh one. A Scope must not be shared between goroutines that run
// statements concurrently.
type Scope struct {
	manager *TxManager
	repos   map[string]any

	mu    sync.Mutex
	tx    pgx.Tx
	state ScopeState
}

func (s *Scope) open(ctx context.Context) error {
	tx, err := s.manager.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	s.state = StateOpen
	return nil
}

// State reports where the scope is in its lifecycle.
func (s *Scope) State() ScopeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Repository returns the repository registered for entity.
func (s *Scope) Repository(entity string) (any, error) {
	if s.State() == StateClosed {
		return nil, domain.ErrScopeClosed
	}
	repo, ok := s.repos[entity]
	if !ok {
		return nil, domain.MissingRepository(entity)
	}
	return repo, nil
}

// Commit commits the work done so far.
func (s *Scope) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return domain.ErrScopeClosed
	}
	if s.tx == nil {
		s.state = StateCommitted
		return nil
	}

	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		s.state = StateRolledBack
		s.manager.observer.TxRolledBack()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.state = StateCommitted
	s.manager.observer.TxCommitted()
	return nil
}

// Rollback discards the work done since the last commit.
func (s *Scope) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return domain.ErrScopeClosed
	}
	return s.rollbackLocked(ctx)
}

// Close releases the scope. Uncommitted work is rolled back. Close is
// idempotent.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	err := s.rollbackLocked(ctx)
	s.state = StateClosed
	return err
}

func (s *Scope) rollbackLocked(ctx context.Context) error {
	if s.tx == nil {
		if s.state == StateOpen {
			s.state = StateRolledBack
		}
		return nil
	}

	// The caller's context may already be cancelled; the connection still has
	// to go back to the pool.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.manager.releaseTimeout)
	defer cancel()

	tx := s.tx
	s.tx = nil
	s.state = StateRolledBack
	s.manager.observer.TxRolledBack()
	if err := tx.Rollback(releaseCtx); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// current returns the live transaction, starting a new one after a commit or
// rollback.
func (s *Scope) current(ctx context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateClosed:
		return nil, domain.ErrScopeClosed
	case s.state == StateIdle:
		return nil, fmt.Errorf("transaction scope was never opened")
	case s.tx != nil:
		return s.tx, nil
	}

	tx, err := s.manager.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	s.state = StateOpen
	return tx, nil
}

func (s *Scope) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx, err := s.current(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return tx.Exec(ctx, sql, args...)
}

func (s *Scope) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	tx, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return tx.Query(ctx, sql, args...)
}

func (s *Scope) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	tx, err := s.current(ctx)
	if err != nil {
		return errRow{err: err}
	}
	return tx.QueryRow(ctx, sql, args...)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}
