package domain

import "testing"

func TestMoverStateValid(t *testing.T) {
	for _, state := range []MoverState{StateResting, StateLoading, StateOnMission} {
		if !state.Valid() {
			t.Fatalf("state %s should be valid", state)
		}
	}
	if MoverState("flying").Valid() {
		t.Fatalf("unknown state must be invalid")
	}
	if MoverState("").Valid() {
		t.Fatalf("empty state must be invalid")
	}
}

func TestActionMirrorsState(t *testing.T) {
	if ActionLoading != Action(StateLoading) || ActionOnMission != Action(StateOnMission) || ActionResting != Action(StateResting) {
		t.Fatalf("actions must mirror lifecycle state values")
	}
	if Action("teleported").Valid() {
		t.Fatalf("unknown action must be invalid")
	}
}

func TestItemHeld(t *testing.T) {
	item := Item{Base: Base{ID: "i1"}, Name: "crate", Weight: 2}
	if item.Held() {
		t.Fatalf("item with nil holder reported held")
	}
	holder := "m1"
	item.HolderID = &holder
	if !item.Held() {
		t.Fatalf("item with holder reported unheld")
	}
}
