package domain

import (
	"context"
	"time"
)

// TransitionFilter narrows transition-log queries. Zero values mean
// unfiltered. Default ordering is timestamp descending unless Ascending is
// set. Limit <= 0 means no limit.
type TransitionFilter struct {
	Action    *Action
	From      *time.Time
	To        *time.Time
	Ascending bool
	Limit     int
	Offset    int
}

// ItemStore persists items and provides the atomic claim/release primitives.
// ClaimIfUnheld is atomic per id: each listed item is claimed only if its
// holder is currently nil, and the claimed subset is reported so callers can
// detect partial success and compensate.
type ItemStore interface {
	CreateItem(ctx context.Context, item Item) (Item, error)
	GetItem(id string) (Item, bool)
	GetItems(ids []string) []Item
	ListItems() []Item
	ClaimIfUnheld(ctx context.Context, ids []string, moverID string) ([]string, error)
	ReleaseByIDs(ctx context.Context, ids []string) error
	ReleaseAllHeldBy(ctx context.Context, moverID string) ([]string, error)
}

// MoverStore persists movers and provides the guarded commit primitives.
// CommitLoad atomically appends newItemIDs to the held set, adds addedWeight
// to the current load, and moves the mover into the loading state, but only
// if the resulting load stays within capacity and the mover is not on a
// mission; a nil mover with nil error signals a guard refused the commit.
// CommitEndMission atomically clears the held set,
// zeroes the load, returns the mover to resting, and increments the mission
// counter.
type MoverStore interface {
	CreateMover(ctx context.Context, mover Mover) (Mover, error)
	GetMover(id string) (Mover, bool)
	ListMovers() []Mover
	CommitLoad(ctx context.Context, id string, newItemIDs []string, addedWeight float64) (*Mover, error)
	SetState(ctx context.Context, id string, state MoverState) (Mover, error)
	CommitEndMission(ctx context.Context, id string) (Mover, error)
}

// TransitionLog is the append-only audit store. Records are immutable once
// appended; the itemIDs slice is copied at append time.
type TransitionLog interface {
	Append(ctx context.Context, moverID string, action Action, itemIDs []string) (TransitionRecord, error)
	QueryByMover(moverID string, filter TransitionFilter) []TransitionRecord
	QueryAll(filter TransitionFilter) []TransitionRecord
}

// PersistentStore is the full storage surface a durable backend provides.
type PersistentStore interface {
	ItemStore
	MoverStore
	TransitionLog
}
