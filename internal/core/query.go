package core

import (
	"sort"

	"movercore/pkg/domain"
)

// QueryFacade aggregates read-only views over the stores. It carries no
// invariant risk: all mutation goes through the engines, and item references
// are resolved to full records only here, at the read boundary.
type QueryFacade struct {
	items  domain.ItemStore
	movers domain.MoverStore
	log    domain.TransitionLog
}

// NewQueryFacade constructs a read facade over the given stores.
func NewQueryFacade(items domain.ItemStore, movers domain.MoverStore, log domain.TransitionLog) *QueryFacade {
	return &QueryFacade{items: items, movers: movers, log: log}
}

// ListItems returns all items.
func (q *QueryFacade) ListItems() []domain.Item {
	return q.items.ListItems()
}

// GetMover returns the mover with its held item references resolved,
// preserving the held-set order.
func (q *QueryFacade) GetMover(id string) (domain.MoverDetail, bool) {
	mover, ok := q.movers.GetMover(id)
	if !ok {
		return domain.MoverDetail{}, false
	}
	return q.resolve(mover), true
}

// ListMovers returns all movers with resolved items.
func (q *QueryFacade) ListMovers() []domain.MoverDetail {
	movers := q.movers.ListMovers()
	out := make([]domain.MoverDetail, 0, len(movers))
	for _, mover := range movers {
		out = append(out, q.resolve(mover))
	}
	return out
}

// Leaderboard returns movers ordered by missions completed descending, ties
// broken by id for a stable order. Limit <= 0 returns all.
func (q *QueryFacade) Leaderboard(limit int) []domain.Mover {
	movers := q.movers.ListMovers()
	sort.Slice(movers, func(i, j int) bool {
		if movers[i].MissionsCompleted != movers[j].MissionsCompleted {
			return movers[i].MissionsCompleted > movers[j].MissionsCompleted
		}
		return movers[i].ID < movers[j].ID
	})
	if limit > 0 && limit < len(movers) {
		movers = movers[:limit]
	}
	return movers
}

// MoverTransitions returns the mover's transition records matching filter.
func (q *QueryFacade) MoverTransitions(moverID string, filter domain.TransitionFilter) []domain.TransitionRecord {
	return q.log.QueryByMover(moverID, filter)
}

// Transitions returns all transition records matching filter.
func (q *QueryFacade) Transitions(filter domain.TransitionFilter) []domain.TransitionRecord {
	return q.log.QueryAll(filter)
}

func (q *QueryFacade) resolve(mover domain.Mover) domain.MoverDetail {
	return domain.MoverDetail{
		Mover: mover,
		Items: q.items.GetItems(mover.ItemIDs),
	}
}
