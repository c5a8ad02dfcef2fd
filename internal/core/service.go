package core

import (
	"context"
	"log"
	"time"

	"movercore/pkg/domain"
)

// Clock supplies the current time to the service.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the function's time.
func (f ClockFunc) Now() time.Time { return f() }

// Logger receives operational log lines from the service. Internal errors are
// logged here in full while callers only ever see a generic message.
type Logger interface {
	Printf(format string, args ...any)
}

// Service exposes the five engine operations plus the read facade, wrapping
// each call with metrics, tracing, and logging. It holds no cross-request
// state; all exclusion lives in the store primitives.
type Service struct {
	store      domain.PersistentStore
	allocation *AllocationEngine
	lifecycle  *LifecycleEngine
	queries    *QueryFacade
	metrics    MetricsRecorder
	tracer     Tracer
	logger     Logger
	clock      Clock
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithLogger overrides the default stdlib logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the service clock. Intended for deterministic tests.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService constructs a service backed by the supplied store. Engines are
// built here by explicit injection; there is no ambient registry.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		allocation: NewAllocationEngine(store, store, store),
		lifecycle:  NewLifecycleEngine(store, store, store),
		queries:    NewQueryFacade(store, store, store),
		logger:     log.Default(),
		clock:      ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Queries returns the read-only facade.
func (s *Service) Queries() *QueryFacade { return s.queries }

// CreateMover persists a new mover at rest with the given capacity.
func (s *Service) CreateMover(ctx context.Context, name string, capacity float64) (domain.Mover, error) {
	var created domain.Mover
	err := s.observe(ctx, "create_mover", func(ctx context.Context) error {
		var err error
		created, err = s.store.CreateMover(ctx, domain.Mover{Name: name, Capacity: capacity})
		return err
	})
	return created, err
}

// CreateItem persists a new unheld item.
func (s *Service) CreateItem(ctx context.Context, name string, weight float64) (domain.Item, error) {
	var created domain.Item
	err := s.observe(ctx, "create_item", func(ctx context.Context) error {
		var err error
		created, err = s.store.CreateItem(ctx, domain.Item{Name: name, Weight: weight})
		return err
	})
	return created, err
}

// Load claims the items for the mover and commits the loading transition.
func (s *Service) Load(ctx context.Context, moverID string, itemIDs []string) (domain.Mover, error) {
	var updated domain.Mover
	err := s.observe(ctx, "load", func(ctx context.Context) error {
		var err error
		updated, err = s.allocation.Load(ctx, moverID, itemIDs)
		return err
	})
	return updated, err
}

// StartMission moves a loaded mover onto a mission.
func (s *Service) StartMission(ctx context.Context, moverID string) (domain.Mover, error) {
	var updated domain.Mover
	err := s.observe(ctx, "start_mission", func(ctx context.Context) error {
		var err error
		updated, err = s.lifecycle.StartMission(ctx, moverID)
		return err
	})
	return updated, err
}

// EndMission completes a mission, releasing the held items.
func (s *Service) EndMission(ctx context.Context, moverID string) (domain.Mover, error) {
	var updated domain.Mover
	err := s.observe(ctx, "end_mission", func(ctx context.Context) error {
		var err error
		updated, err = s.lifecycle.EndMission(ctx, moverID)
		return err
	})
	return updated, err
}

// observe wraps an operation with tracing, metrics, and internal-error
// logging.
func (s *Service) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	start := s.clock.Now()
	err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, duration)
	}
	if err != nil && domain.KindOf(err) == domain.KindInternal && s.logger != nil {
		s.logger.Printf("movercore: %s failed: %v", operation, err)
	}
	return err
}
