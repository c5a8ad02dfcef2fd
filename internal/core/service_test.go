package core

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"movercore/internal/infra/persistence/memory"
	"movercore/pkg/domain"
)

type recordedObservation struct {
	operation string
	success   bool
	duration  time.Duration
}

type captureRecorder struct {
	mu           sync.Mutex
	observations []recordedObservation
}

func (c *captureRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observations = append(c.observations, recordedObservation{operation, success, duration})
}

func (c *captureRecorder) all() []recordedObservation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedObservation(nil), c.observations...)
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestServiceFullMissionCycle(t *testing.T) {
	service := NewService(memory.NewStore())
	ctx := context.Background()

	mover, err := service.CreateMover(ctx, "atlas", 10)
	if err != nil {
		t.Fatalf("create mover: %v", err)
	}
	item, err := service.CreateItem(ctx, "crate", 4)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := service.Load(ctx, mover.ID, []string{item.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := service.StartMission(ctx, mover.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := service.EndMission(ctx, mover.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if done.MissionsCompleted != 1 {
		t.Fatalf("mission counter = %d, want 1", done.MissionsCompleted)
	}

	detail, ok := service.Queries().GetMover(mover.ID)
	if !ok || len(detail.Items) != 0 {
		t.Fatalf("queries facade out of sync: %+v", detail)
	}
}

func TestServiceObservesEveryOperation(t *testing.T) {
	recorder := &captureRecorder{}
	tracer := NewJSONTracer(&bytes.Buffer{})
	service := NewService(memory.NewStore(),
		WithMetricsRecorder(recorder),
		WithTracer(tracer),
	)
	ctx := context.Background()

	mover, err := service.CreateMover(ctx, "atlas", 10)
	if err != nil {
		t.Fatalf("create mover: %v", err)
	}
	if _, err := service.Load(ctx, mover.ID, nil); err == nil {
		t.Fatalf("expected load failure")
	}

	obs := recorder.all()
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].operation != "create_mover" || !obs[0].success {
		t.Fatalf("unexpected first observation: %+v", obs[0])
	}
	if obs[1].operation != "load" || obs[1].success {
		t.Fatalf("unexpected second observation: %+v", obs[1])
	}

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("failed span not recorded: %+v", entries[1])
	}
}

func TestServiceLogsOnlyInternalFailures(t *testing.T) {
	logger := &captureLogger{}
	service := NewService(memory.NewStore(), WithLogger(logger))
	ctx := context.Background()

	// Operational failure: unknown mover. No log line expected.
	if _, err := service.Load(ctx, "ghost", []string{"i1"}); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	logger.mu.Lock()
	lines := len(logger.lines)
	logger.mu.Unlock()
	if lines != 0 {
		t.Fatalf("operational failure was logged: %d lines", lines)
	}
}

func TestServiceClockDrivesDurations(t *testing.T) {
	recorder := &captureRecorder{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	service := NewService(memory.NewStore(),
		WithMetricsRecorder(recorder),
		WithClock(ClockFunc(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		})),
	)
	if _, err := service.CreateItem(context.Background(), "crate", 1); err != nil {
		t.Fatalf("create item: %v", err)
	}
	obs := recorder.all()
	if len(obs) != 1 || obs[0].duration != time.Second {
		t.Fatalf("clock not used for duration: %+v", obs)
	}
}
