// Package postgres provides a Postgres-backed persistent store that mirrors
// the in-memory semantics while snapshotting committed state to a JSONB
// bucket table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"movercore/internal/infra/persistence/memory"
	"movercore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/movercore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation
// for the atomic primitives.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory store from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

var postgresBuckets = []string{"items", "movers", "transitions"}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var target any
		switch bucket {
		case "items":
			target = &snapshot.Items
		case "movers":
			target = &snapshot.Movers
		case "transitions":
			target = &snapshot.Transitions
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range postgresBuckets {
		var data []byte
		switch bucket {
		case "items":
			data, err = json.Marshal(snapshot.Items)
		case "movers":
			data, err = json.Marshal(snapshot.Movers)
		case "transitions":
			data, err = json.Marshal(snapshot.Transitions)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// CreateItem stores a new item and snapshots state.
func (s *Store) CreateItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	created, err := s.Store.CreateItem(ctx, item)
	if err != nil {
		return created, err
	}
	return created, s.persist(ctx)
}

// ClaimIfUnheld claims the unheld listed items and snapshots state.
func (s *Store) ClaimIfUnheld(ctx context.Context, ids []string, moverID string) ([]string, error) {
	claimed, err := s.Store.ClaimIfUnheld(ctx, ids, moverID)
	if err != nil {
		return claimed, err
	}
	if len(claimed) == 0 {
		return claimed, nil
	}
	return claimed, s.persist(ctx)
}

// ReleaseByIDs releases the listed items and snapshots state.
func (s *Store) ReleaseByIDs(ctx context.Context, ids []string) error {
	if err := s.Store.ReleaseByIDs(ctx, ids); err != nil {
		return err
	}
	return s.persist(ctx)
}

// ReleaseAllHeldBy releases everything the mover holds and snapshots state.
func (s *Store) ReleaseAllHeldBy(ctx context.Context, moverID string) ([]string, error) {
	released, err := s.Store.ReleaseAllHeldBy(ctx, moverID)
	if err != nil {
		return released, err
	}
	return released, s.persist(ctx)
}

// CreateMover stores a new mover and snapshots state.
func (s *Store) CreateMover(ctx context.Context, mover domain.Mover) (domain.Mover, error) {
	created, err := s.Store.CreateMover(ctx, mover)
	if err != nil {
		return created, err
	}
	return created, s.persist(ctx)
}

// CommitLoad applies the capacity-guarded commit and snapshots state when the
// guard holds.
func (s *Store) CommitLoad(ctx context.Context, id string, newItemIDs []string, addedWeight float64) (*domain.Mover, error) {
	updated, err := s.Store.CommitLoad(ctx, id, newItemIDs, addedWeight)
	if err != nil || updated == nil {
		return updated, err
	}
	return updated, s.persist(ctx)
}

// SetState moves the mover to the given state and snapshots.
func (s *Store) SetState(ctx context.Context, id string, state domain.MoverState) (domain.Mover, error) {
	updated, err := s.Store.SetState(ctx, id, state)
	if err != nil {
		return updated, err
	}
	return updated, s.persist(ctx)
}

// CommitEndMission completes the mission commit and snapshots state.
func (s *Store) CommitEndMission(ctx context.Context, id string) (domain.Mover, error) {
	updated, err := s.Store.CommitEndMission(ctx, id)
	if err != nil {
		return updated, err
	}
	return updated, s.persist(ctx)
}

// Append records a transition and snapshots state.
func (s *Store) Append(ctx context.Context, moverID string, action domain.Action, itemIDs []string) (domain.TransitionRecord, error) {
	record, err := s.Store.Append(ctx, moverID, action, itemIDs)
	if err != nil {
		return record, err
	}
	return record, s.persist(ctx)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
