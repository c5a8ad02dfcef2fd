package core

import (
	"context"
	"strings"

	"movercore/pkg/domain"
)

// LifecycleEngine drives the start/end-mission transitions and their side
// effects: releasing items, incrementing the mission counter, and appending
// audit records with snapshots captured at the correct moment.
type LifecycleEngine struct {
	items  domain.ItemStore
	movers domain.MoverStore
	log    domain.TransitionLog
}

// NewLifecycleEngine constructs a lifecycle engine over the given stores.
func NewLifecycleEngine(items domain.ItemStore, movers domain.MoverStore, log domain.TransitionLog) *LifecycleEngine {
	return &LifecycleEngine{items: items, movers: movers, log: log}
}

// StartMission moves a loading mover with a non-empty held set onto a
// mission. The audit snapshot is the full currently-held set, captured before
// the state change.
func (e *LifecycleEngine) StartMission(ctx context.Context, moverID string) (domain.Mover, error) {
	mover, ok := e.movers.GetMover(moverID)
	if !ok {
		return domain.Mover{}, domain.NotFound("mover %q not found", moverID)
	}
	switch mover.State {
	case domain.StateOnMission:
		return domain.Mover{}, domain.BadRequest("already on a mission")
	case domain.StateResting:
		return domain.Mover{}, domain.BadRequest("must load items first")
	}
	if len(mover.ItemIDs) == 0 {
		return domain.Mover{}, domain.BadRequest("must load items first")
	}

	snapshot := append([]string(nil), mover.ItemIDs...)
	updated, err := e.movers.SetState(ctx, moverID, domain.StateOnMission)
	if err != nil {
		return domain.Mover{}, err
	}
	if _, err := e.log.Append(ctx, moverID, domain.ActionOnMission, snapshot); err != nil {
		return domain.Mover{}, domain.Internal(err, "append mission transition for mover %q", moverID)
	}
	return updated, nil
}

// EndMission completes a mission: every held item is released for reuse, the
// mover returns to resting with its counter incremented, and the audit record
// carries the held-items snapshot captured before anything was mutated. That
// ordering is what makes the mission-end record reflect the delivered items
// rather than the post-clear empty set.
func (e *LifecycleEngine) EndMission(ctx context.Context, moverID string) (domain.Mover, error) {
	mover, ok := e.movers.GetMover(moverID)
	if !ok {
		return domain.Mover{}, domain.NotFound("mover %q not found", moverID)
	}
	if mover.State != domain.StateOnMission {
		return domain.Mover{}, domain.BadRequest("not currently on a mission")
	}

	// Preflight: every held reference must still resolve. A miss here is a
	// data-integrity violation, not a caller mistake.
	resolved := e.items.GetItems(mover.ItemIDs)
	if len(resolved) != len(mover.ItemIDs) {
		missing := missingIDs(mover.ItemIDs, resolved)
		return domain.Mover{}, domain.Internal(nil, "mover %q holds missing items: %s", moverID, strings.Join(missing, ", "))
	}

	snapshot := append([]string(nil), mover.ItemIDs...)
	if err := e.items.ReleaseByIDs(ctx, snapshot); err != nil {
		return domain.Mover{}, domain.Internal(err, "release items for mover %q", moverID)
	}
	updated, err := e.movers.CommitEndMission(ctx, moverID)
	if err != nil {
		return domain.Mover{}, err
	}
	if _, err := e.log.Append(ctx, moverID, domain.ActionResting, snapshot); err != nil {
		return domain.Mover{}, domain.Internal(err, "append mission-end transition for mover %q", moverID)
	}
	return updated, nil
}
