package memory

import (
	"sort"

	"movercore/pkg/domain"
)

// Snapshot is the serializable form of the full store state used by the
// durable backends to persist and rehydrate committed state.
type Snapshot struct {
	Items       []domain.Item             `json:"items"`
	Movers      []domain.Mover            `json:"movers"`
	Transitions []domain.TransitionRecord `json:"transitions"`
}

// ExportState returns a deep copy of committed state. Items and movers are
// sorted by id; transitions keep insertion order.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := Snapshot{
		Items:       make([]domain.Item, 0, len(s.state.items)),
		Movers:      make([]domain.Mover, 0, len(s.state.movers)),
		Transitions: make([]domain.TransitionRecord, 0, len(s.state.transitions)),
	}
	for _, item := range s.state.items {
		snapshot.Items = append(snapshot.Items, cloneItem(item))
	}
	for _, mover := range s.state.movers {
		snapshot.Movers = append(snapshot.Movers, cloneMover(mover))
	}
	for _, record := range s.state.transitions {
		snapshot.Transitions = append(snapshot.Transitions, cloneTransition(record))
	}
	sort.Slice(snapshot.Items, func(i, j int) bool { return snapshot.Items[i].ID < snapshot.Items[j].ID })
	sort.Slice(snapshot.Movers, func(i, j int) bool { return snapshot.Movers[i].ID < snapshot.Movers[j].ID })
	return snapshot
}

// ImportState replaces committed state with the snapshot contents.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for _, item := range snapshot.Items {
		state.items[item.ID] = cloneItem(item)
	}
	for _, mover := range snapshot.Movers {
		state.movers[mover.ID] = cloneMover(mover)
	}
	for _, record := range snapshot.Transitions {
		state.transitions = append(state.transitions, cloneTransition(record))
	}
	s.state = state
}
