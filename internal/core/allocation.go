// Package core implements the allocation and lifecycle engines, the query
// facade, and the service wiring them together over the store contracts.
package core

import (
	"context"
	"strings"

	"movercore/pkg/domain"
)

// AllocationEngine implements the load operation: validate legality, claim
// items atomically, commit the capacity-checked state change, and compensate
// on any failure so no item is ever left claimed-but-uncommitted.
type AllocationEngine struct {
	items  domain.ItemStore
	movers domain.MoverStore
	log    domain.TransitionLog
}

// NewAllocationEngine constructs an allocation engine over the given stores.
func NewAllocationEngine(items domain.ItemStore, movers domain.MoverStore, log domain.TransitionLog) *AllocationEngine {
	return &AllocationEngine{items: items, movers: movers, log: log}
}

// Load claims itemIDs for the mover and commits the loading transition.
//
// The pre-checks against a read produce precise errors (missing item vs
// already-held item), but the safety guarantee comes from the atomic claim:
// when two callers race past the pre-check on the same item, exactly one
// claim succeeds and the loser is compensated and reported as a conflict.
// Two documents must both succeed (N items plus one mover), so the engine
// compensates explicitly instead of relying on a multi-document transaction.
func (e *AllocationEngine) Load(ctx context.Context, moverID string, itemIDs []string) (domain.Mover, error) {
	if len(itemIDs) == 0 {
		return domain.Mover{}, domain.Unprocessable("no items in request")
	}
	if dup := firstDuplicate(itemIDs); dup != "" {
		return domain.Mover{}, domain.Unprocessable("duplicate items in request")
	}

	mover, ok := e.movers.GetMover(moverID)
	if !ok {
		return domain.Mover{}, domain.NotFound("mover %q not found", moverID)
	}
	if mover.State == domain.StateOnMission {
		return domain.Mover{}, domain.BadRequest("cannot load while on mission")
	}

	found := e.items.GetItems(itemIDs)
	if len(found) != len(itemIDs) {
		return domain.Mover{}, domain.NotFound("items not found: %s", strings.Join(missingIDs(itemIDs, found), ", "))
	}
	var addedWeight float64
	for _, item := range found {
		if item.Held() {
			return domain.Mover{}, domain.Conflict("items already assigned")
		}
		addedWeight += item.Weight
	}

	claimed, err := e.items.ClaimIfUnheld(ctx, itemIDs, moverID)
	if err != nil {
		return domain.Mover{}, domain.Internal(err, "claim items for mover %q", moverID)
	}
	if len(claimed) != len(itemIDs) {
		// Lost a race after the pre-check: release exactly what we claimed.
		if relErr := e.items.ReleaseByIDs(ctx, claimed); relErr != nil {
			return domain.Mover{}, domain.Internal(relErr, "release partially claimed items for mover %q", moverID)
		}
		return domain.Mover{}, domain.Conflict("items already assigned")
	}

	updated, err := e.movers.CommitLoad(ctx, moverID, itemIDs, addedWeight)
	if err != nil {
		if relErr := e.items.ReleaseByIDs(ctx, claimed); relErr != nil {
			return domain.Mover{}, domain.Internal(relErr, "release claimed items for mover %q", moverID)
		}
		return domain.Mover{}, err
	}
	if updated == nil {
		// A commit guard refused; roll the claim back in full. The mover
		// either can no longer fit the weight or departed on a mission
		// between the pre-check and the commit.
		if relErr := e.items.ReleaseByIDs(ctx, claimed); relErr != nil {
			return domain.Mover{}, domain.Internal(relErr, "release claimed items for mover %q", moverID)
		}
		if current, ok := e.movers.GetMover(moverID); ok && current.State == domain.StateOnMission {
			return domain.Mover{}, domain.BadRequest("cannot load while on mission")
		}
		return domain.Mover{}, domain.BadRequest("exceeds weight limit")
	}

	// Snapshot only the newly loaded ids, not the accumulated held set.
	if _, err := e.log.Append(ctx, moverID, domain.ActionLoading, itemIDs); err != nil {
		return domain.Mover{}, domain.Internal(err, "append loading transition for mover %q", moverID)
	}
	return *updated, nil
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return id
		}
		seen[id] = struct{}{}
	}
	return ""
}

func missingIDs(requested []string, found []domain.Item) []string {
	present := make(map[string]struct{}, len(found))
	for _, item := range found {
		present[item.ID] = struct{}{}
	}
	var missing []string
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
