package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"movercore/internal/infra/persistence/memory"
	"movercore/pkg/domain"
)

func TestStartMissionRequiresLoadedMover(t *testing.T) {
	store, alloc, lifecycle := newEngines(t)
	mover := seedMover(t, store, 10)
	item := seedItem(t, store, "a", 1)

	if _, err := lifecycle.StartMission(context.Background(), "ghost"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := lifecycle.StartMission(context.Background(), mover.ID); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected BAD_REQUEST for resting mover, got %v", err)
	}

	if _, err := alloc.Load(context.Background(), mover.ID, []string{item.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	started, err := lifecycle.StartMission(context.Background(), mover.ID)
	if err != nil {
		t.Fatalf("start mission: %v", err)
	}
	if started.State != domain.StateOnMission {
		t.Fatalf("expected on_mission, got %s", started.State)
	}

	if _, err := lifecycle.StartMission(context.Background(), mover.ID); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected BAD_REQUEST for double start, got %v", err)
	}
}

func TestStartMissionRecordsHeldSnapshot(t *testing.T) {
	store, alloc, lifecycle := newEngines(t)
	mover := seedMover(t, store, 10)
	a := seedItem(t, store, "a", 1)
	b := seedItem(t, store, "b", 1)

	if _, err := alloc.Load(context.Background(), mover.ID, []string{a.ID}); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if _, err := alloc.Load(context.Background(), mover.ID, []string{b.ID}); err != nil {
		t.Fatalf("load b: %v", err)
	}
	if _, err := lifecycle.StartMission(context.Background(), mover.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	action := domain.ActionOnMission
	records := store.QueryByMover(mover.ID, domain.TransitionFilter{Action: &action})
	if len(records) != 1 {
		t.Fatalf("expected one mission record, got %d", len(records))
	}
	if len(records[0].ItemIDs) != 2 {
		t.Fatalf("mission record must snapshot the full held set: %+v", records[0].ItemIDs)
	}
}

func TestEndMissionReleasesAndRecordsDeliveredItems(t *testing.T) {
	store, alloc, lifecycle := newEngines(t)
	mover := seedMover(t, store, 10)
	a := seedItem(t, store, "a", 2)
	b := seedItem(t, store, "b", 3)

	if _, err := alloc.Load(context.Background(), mover.ID, []string{a.ID, b.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := lifecycle.StartMission(context.Background(), mover.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := lifecycle.EndMission(context.Background(), mover.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if done.State != domain.StateResting || done.CurrentLoad != 0 || len(done.ItemIDs) != 0 {
		t.Fatalf("mover not reset after mission: %+v", done)
	}
	if done.MissionsCompleted != 1 {
		t.Fatalf("mission counter = %d, want 1", done.MissionsCompleted)
	}

	for _, id := range []string{a.ID, b.ID} {
		item, _ := store.GetItem(id)
		if item.Held() {
			t.Fatalf("item %s still held after mission end", id)
		}
	}

	// The mission-end record lists the delivered items even though the held
	// set is cleared by the commit.
	action := domain.ActionResting
	records := store.QueryByMover(mover.ID, domain.TransitionFilter{Action: &action})
	if len(records) != 1 {
		t.Fatalf("expected one mission-end record, got %d", len(records))
	}
	if len(records[0].ItemIDs) != 2 {
		t.Fatalf("mission-end record lost the delivered items: %+v", records[0].ItemIDs)
	}
}

func TestEndMissionStateErrors(t *testing.T) {
	store, alloc, lifecycle := newEngines(t)
	mover := seedMover(t, store, 10)
	item := seedItem(t, store, "a", 1)

	if _, err := lifecycle.EndMission(context.Background(), "ghost"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := lifecycle.EndMission(context.Background(), mover.ID); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected BAD_REQUEST for resting mover, got %v", err)
	}
	if _, err := alloc.Load(context.Background(), mover.ID, []string{item.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := lifecycle.EndMission(context.Background(), mover.ID); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected BAD_REQUEST for loading mover, got %v", err)
	}
}

func TestItemsReusableAfterMission(t *testing.T) {
	store, alloc, lifecycle := newEngines(t)
	first := seedMover(t, store, 10)
	second := seedMover(t, store, 10)
	item := seedItem(t, store, "a", 1)

	if _, err := alloc.Load(context.Background(), first.ID, []string{item.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := lifecycle.StartMission(context.Background(), first.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := lifecycle.EndMission(context.Background(), first.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	updated, err := alloc.Load(context.Background(), second.ID, []string{item.ID})
	if err != nil {
		t.Fatalf("reload released item: %v", err)
	}
	if len(updated.ItemIDs) != 1 || updated.ItemIDs[0] != item.ID {
		t.Fatalf("second mover did not receive the item: %+v", updated)
	}
}

func TestRepeatedMissionsIncrementCounter(t *testing.T) {
	store, alloc, lifecycle := newEngines(t)
	mover := seedMover(t, store, 10)
	item := seedItem(t, store, "a", 1)

	for i := 0; i < 3; i++ {
		if _, err := alloc.Load(context.Background(), mover.ID, []string{item.ID}); err != nil {
			t.Fatalf("cycle %d load: %v", i, err)
		}
		if _, err := lifecycle.StartMission(context.Background(), mover.ID); err != nil {
			t.Fatalf("cycle %d start: %v", i, err)
		}
		if _, err := lifecycle.EndMission(context.Background(), mover.ID); err != nil {
			t.Fatalf("cycle %d end: %v", i, err)
		}
	}
	got, _ := store.GetMover(mover.ID)
	if got.MissionsCompleted != 3 {
		t.Fatalf("mission counter = %d, want 3", got.MissionsCompleted)
	}
	if got := len(store.QueryByMover(mover.ID, domain.TransitionFilter{})); got != 9 {
		t.Fatalf("expected 9 transition records, got %d", got)
	}
}

func TestEndMissionUnresolvableHeldItemIsInternal(t *testing.T) {
	store, _, lifecycle := newEngines(t)

	// Normal operation never leaves a dangling reference; a rehydrated
	// snapshot can. The mover is mid-mission holding an id no item carries.
	store.ImportState(memory.Snapshot{
		Movers: []domain.Mover{{
			Base:        domain.Base{ID: "m1"},
			Name:        "atlas",
			Capacity:    10,
			CurrentLoad: 4,
			State:       domain.StateOnMission,
			ItemIDs:     []string{"ghost"},
		}},
	})

	_, err := lifecycle.EndMission(context.Background(), "m1")
	if !domain.IsKind(err, domain.KindInternal) {
		t.Fatalf("expected INTERNAL, got %v", err)
	}
	var derr *domain.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *domain.Error, got %T", err)
	}
	if derr.PublicMessage() != "internal server error" {
		t.Fatalf("public message must stay generic, got %q", derr.PublicMessage())
	}
	if !strings.Contains(derr.Reason, "ghost") {
		t.Fatalf("server-side reason should name the dangling id, got %q", derr.Reason)
	}

	got, ok := store.GetMover("m1")
	if !ok {
		t.Fatalf("mover disappeared")
	}
	if got.State != domain.StateOnMission || got.CurrentLoad != 4 || len(got.ItemIDs) != 1 {
		t.Fatalf("failed preflight must leave the mover untouched: %+v", got)
	}
	if records := store.QueryByMover("m1", domain.TransitionFilter{}); len(records) != 0 {
		t.Fatalf("failed preflight must not append transitions: %d", len(records))
	}
}
