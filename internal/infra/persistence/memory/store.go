// Package memory implements the canonical in-memory store. All other
// persistence backends embed it and layer durable snapshots on top.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"movercore/pkg/domain"
)

type memoryState struct {
	items       map[string]domain.Item
	movers      map[string]domain.Mover
	transitions []domain.TransitionRecord
}

func newMemoryState() memoryState {
	return memoryState{
		items:  make(map[string]domain.Item),
		movers: make(map[string]domain.Mover),
	}
}

func cloneItem(i domain.Item) domain.Item {
	cp := i
	if i.HolderID != nil {
		holder := *i.HolderID
		cp.HolderID = &holder
	}
	return cp
}

func cloneMover(m domain.Mover) domain.Mover {
	cp := m
	cp.ItemIDs = append([]string(nil), m.ItemIDs...)
	return cp
}

func cloneTransition(t domain.TransitionRecord) domain.TransitionRecord {
	cp := t
	cp.ItemIDs = append([]string(nil), t.ItemIDs...)
	return cp
}

// Store provides the in-memory implementation of the store contracts.
// All exclusion the engines rely on lives here: every primitive takes the
// store lock, checks its guard against current fields, and mutates only if
// the guard holds. Concurrent claims on one item and concurrent guarded
// commits on one mover are therefore totally ordered.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the store clock. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// CreateItem stores a new unheld item.
func (s *Store) CreateItem(_ context.Context, item domain.Item) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Name == "" {
		return domain.Item{}, domain.BadRequest("item name must not be empty")
	}
	if item.Weight <= 0 {
		return domain.Item{}, domain.BadRequest("item weight must be positive")
	}
	if item.ID == "" {
		item.ID = s.newID()
	}
	if _, exists := s.state.items[item.ID]; exists {
		return domain.Item{}, domain.Conflict("item %q already exists", item.ID)
	}
	now := s.nowFn()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.HolderID = nil
	s.state.items[item.ID] = cloneItem(item)
	return cloneItem(item), nil
}

// GetItem retrieves an item by id from committed state.
func (s *Store) GetItem(id string) (domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.state.items[id]
	if !ok {
		return domain.Item{}, false
	}
	return cloneItem(item), true
}

// GetItems returns the items that exist among ids, in request order.
func (s *Store) GetItems(ids []string) []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.state.items[id]; ok {
			out = append(out, cloneItem(item))
		}
	}
	return out
}

// ListItems returns all items sorted by id.
func (s *Store) ListItems() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, 0, len(s.state.items))
	for _, item := range s.state.items {
		out = append(out, cloneItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClaimIfUnheld marks each listed item as held by moverID if, and only if,
// its holder is currently nil. It returns the ids actually claimed; a short
// result means some items were missing or already held, and the caller is
// responsible for compensating.
func (s *Store) ClaimIfUnheld(_ context.Context, ids []string, moverID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	claimed := make([]string, 0, len(ids))
	for _, id := range ids {
		item, ok := s.state.items[id]
		if !ok || item.HolderID != nil {
			continue
		}
		holder := moverID
		item.HolderID = &holder
		item.UpdatedAt = now
		s.state.items[id] = item
		claimed = append(claimed, id)
	}
	return claimed, nil
}

// ReleaseByIDs clears the holder of each listed item. Missing or already
// unheld ids are ignored so compensation paths stay idempotent.
func (s *Store) ReleaseByIDs(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	for _, id := range ids {
		item, ok := s.state.items[id]
		if !ok || item.HolderID == nil {
			continue
		}
		item.HolderID = nil
		item.UpdatedAt = now
		s.state.items[id] = item
	}
	return nil
}

// ReleaseAllHeldBy clears every item held by moverID and returns the released
// ids sorted for determinism.
func (s *Store) ReleaseAllHeldBy(_ context.Context, moverID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	var released []string
	for id, item := range s.state.items {
		if item.HolderID == nil || *item.HolderID != moverID {
			continue
		}
		item.HolderID = nil
		item.UpdatedAt = now
		s.state.items[id] = item
		released = append(released, id)
	}
	sort.Strings(released)
	return released, nil
}

// CreateMover stores a new mover at rest.
func (s *Store) CreateMover(_ context.Context, mover domain.Mover) (domain.Mover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mover.Capacity <= 0 {
		return domain.Mover{}, domain.BadRequest("mover capacity must be positive")
	}
	if mover.ID == "" {
		mover.ID = s.newID()
	}
	if _, exists := s.state.movers[mover.ID]; exists {
		return domain.Mover{}, domain.Conflict("mover %q already exists", mover.ID)
	}
	now := s.nowFn()
	mover.CreatedAt = now
	mover.UpdatedAt = now
	mover.State = domain.StateResting
	mover.CurrentLoad = 0
	mover.ItemIDs = nil
	mover.MissionsCompleted = 0
	s.state.movers[mover.ID] = cloneMover(mover)
	return cloneMover(mover), nil
}

// GetMover retrieves a mover by id from committed state.
func (s *Store) GetMover(id string) (domain.Mover, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mover, ok := s.state.movers[id]
	if !ok {
		return domain.Mover{}, false
	}
	return cloneMover(mover), true
}

// ListMovers returns all movers sorted by id.
func (s *Store) ListMovers() []domain.Mover {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Mover, 0, len(s.state.movers))
	for _, mover := range s.state.movers {
		out = append(out, cloneMover(mover))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CommitLoad applies the guarded load commit. The guards are evaluated
// against the mover's current fields under the store lock: when the new load
// would exceed capacity, or the mover departed on a mission since the
// caller's read, the commit is refused atomically and (nil, nil) is
// returned. On success the held set gains newItemIDs (set union), the load
// grows by addedWeight, and the mover enters the loading state.
func (s *Store) CommitLoad(_ context.Context, id string, newItemIDs []string, addedWeight float64) (*domain.Mover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mover, ok := s.state.movers[id]
	if !ok {
		return nil, domain.NotFound("mover %q not found", id)
	}
	if mover.State == domain.StateOnMission {
		return nil, nil
	}
	if mover.CurrentLoad+addedWeight > mover.Capacity {
		return nil, nil
	}
	held := make(map[string]struct{}, len(mover.ItemIDs))
	for _, itemID := range mover.ItemIDs {
		held[itemID] = struct{}{}
	}
	for _, itemID := range newItemIDs {
		if _, dup := held[itemID]; dup {
			continue
		}
		mover.ItemIDs = append(mover.ItemIDs, itemID)
		held[itemID] = struct{}{}
	}
	mover.CurrentLoad += addedWeight
	mover.State = domain.StateLoading
	mover.UpdatedAt = s.nowFn()
	s.state.movers[id] = cloneMover(mover)
	updated := cloneMover(mover)
	return &updated, nil
}

// SetState moves a mover to the given lifecycle state without touching its
// held set or load.
func (s *Store) SetState(_ context.Context, id string, state domain.MoverState) (domain.Mover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !state.Valid() {
		return domain.Mover{}, domain.BadRequest("invalid mover state %q", state)
	}
	mover, ok := s.state.movers[id]
	if !ok {
		return domain.Mover{}, domain.NotFound("mover %q not found", id)
	}
	mover.State = state
	mover.UpdatedAt = s.nowFn()
	s.state.movers[id] = cloneMover(mover)
	return cloneMover(mover), nil
}

// CommitEndMission atomically clears the held set, zeroes the load, returns
// the mover to resting, and increments the mission counter.
func (s *Store) CommitEndMission(_ context.Context, id string) (domain.Mover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mover, ok := s.state.movers[id]
	if !ok {
		return domain.Mover{}, domain.NotFound("mover %q not found", id)
	}
	mover.ItemIDs = nil
	mover.CurrentLoad = 0
	mover.State = domain.StateResting
	mover.MissionsCompleted++
	mover.UpdatedAt = s.nowFn()
	s.state.movers[id] = cloneMover(mover)
	return cloneMover(mover), nil
}

// Append adds an immutable transition record. The item ids are copied at
// append time so later mutation of the mover or items cannot alter the
// snapshot.
func (s *Store) Append(_ context.Context, moverID string, action domain.Action, itemIDs []string) (domain.TransitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !action.Valid() {
		return domain.TransitionRecord{}, domain.BadRequest("invalid transition action %q", action)
	}
	record := domain.TransitionRecord{
		ID:        s.newID(),
		MoverID:   moverID,
		Action:    action,
		ItemIDs:   append([]string(nil), itemIDs...),
		Timestamp: s.nowFn(),
	}
	s.state.transitions = append(s.state.transitions, record)
	return cloneTransition(record), nil
}

// QueryByMover returns the mover's transition records matching filter.
func (s *Store) QueryByMover(moverID string, filter domain.TransitionFilter) []domain.TransitionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterTransitions(s.state.transitions, &moverID, filter)
}

// QueryAll returns all transition records matching filter.
func (s *Store) QueryAll(filter domain.TransitionFilter) []domain.TransitionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterTransitions(s.state.transitions, nil, filter)
}

// filterTransitions applies filtering, ordering, and pagination over the
// insertion-ordered log. Records carry nondecreasing timestamps, so reversing
// insertion order yields most-recent-first with stable ties.
func filterTransitions(all []domain.TransitionRecord, moverID *string, filter domain.TransitionFilter) []domain.TransitionRecord {
	matched := make([]domain.TransitionRecord, 0, len(all))
	for _, record := range all {
		if moverID != nil && record.MoverID != *moverID {
			continue
		}
		if filter.Action != nil && record.Action != *filter.Action {
			continue
		}
		if filter.From != nil && record.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && record.Timestamp.After(*filter.To) {
			continue
		}
		matched = append(matched, cloneTransition(record))
	}
	if !filter.Ascending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []domain.TransitionRecord{}
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched
}
