// Package sqlite provides a SQLite-backed persistent store that mirrors the
// in-memory semantics and snapshots committed state after every successful
// mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"movercore/internal/infra/persistence/memory"
	"movercore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "movercore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{"items", "movers", "transitions"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{}
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		switch bucket {
		case "items":
			if err := json.Unmarshal(payload, &snapshot.Items); err != nil {
				return fmt.Errorf("decode items: %w", err)
			}
		case "movers":
			if err := json.Unmarshal(payload, &snapshot.Movers); err != nil {
				return fmt.Errorf("decode movers: %w", err)
			}
		case "transitions":
			if err := json.Unmarshal(payload, &snapshot.Transitions); err != nil {
				return fmt.Errorf("decode transitions: %w", err)
			}
		}
		loaded = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if loaded {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
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
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// CreateItem stores a new item and snapshots state.
func (s *Store) CreateItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	created, err := s.Store.CreateItem(ctx, item)
	if err != nil {
		return created, err
	}
	return created, s.persist()
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
	return claimed, s.persist()
}

// ReleaseByIDs releases the listed items and snapshots state.
func (s *Store) ReleaseByIDs(ctx context.Context, ids []string) error {
	if err := s.Store.ReleaseByIDs(ctx, ids); err != nil {
		return err
	}
	return s.persist()
}

// ReleaseAllHeldBy releases everything the mover holds and snapshots state.
func (s *Store) ReleaseAllHeldBy(ctx context.Context, moverID string) ([]string, error) {
	released, err := s.Store.ReleaseAllHeldBy(ctx, moverID)
	if err != nil {
		return released, err
	}
	return released, s.persist()
}

// CreateMover stores a new mover and snapshots state.
func (s *Store) CreateMover(ctx context.Context, mover domain.Mover) (domain.Mover, error) {
	created, err := s.Store.CreateMover(ctx, mover)
	if err != nil {
		return created, err
	}
	return created, s.persist()
}

// CommitLoad applies the capacity-guarded commit and snapshots state when the
// guard holds.
func (s *Store) CommitLoad(ctx context.Context, id string, newItemIDs []string, addedWeight float64) (*domain.Mover, error) {
	updated, err := s.Store.CommitLoad(ctx, id, newItemIDs, addedWeight)
	if err != nil || updated == nil {
		return updated, err
	}
	return updated, s.persist()
}

// SetState moves the mover to the given state and snapshots.
func (s *Store) SetState(ctx context.Context, id string, state domain.MoverState) (domain.Mover, error) {
	updated, err := s.Store.SetState(ctx, id, state)
	if err != nil {
		return updated, err
	}
	return updated, s.persist()
}

// CommitEndMission completes the mission commit and snapshots state.
func (s *Store) CommitEndMission(ctx context.Context, id string) (domain.Mover, error) {
	updated, err := s.Store.CommitEndMission(ctx, id)
	if err != nil {
		return updated, err
	}
	return updated, s.persist()
}

// Append records a transition and snapshots state.
func (s *Store) Append(ctx context.Context, moverID string, action domain.Action, itemIDs []string) (domain.TransitionRecord, error) {
	record, err := s.Store.Append(ctx, moverID, action, itemIDs)
	if err != nil {
		return record, err
	}
	return record, s.persist()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
