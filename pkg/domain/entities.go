// Package domain defines the core persistent entities, the mover lifecycle
// state machine, the error taxonomy, and the store contracts used by
// movercore.
package domain

import "time"

// MoverState represents the canonical mover lifecycle states.
type MoverState string

// Lifecycle states. A mover cycles resting -> loading -> on_mission -> resting;
// no other edges are permitted.
const (
	// StateResting indicates the mover holds nothing and is available to load.
	StateResting MoverState = "resting"
	// StateLoading indicates the mover is accumulating items.
	StateLoading MoverState = "loading"
	// StateOnMission indicates the mover is delivering its held items.
	StateOnMission MoverState = "on_mission"
)

// Valid reports whether s is a recognised lifecycle state.
func (s MoverState) Valid() bool {
	switch s {
	case StateResting, StateLoading, StateOnMission:
		return true
	}
	return false
}

// Action labels a committed transition in the audit trail. The values mirror
// the state entered by the transition; resting doubles as the "mission ended"
// label.
type Action string

// Transition actions recorded by the transition log.
const (
	ActionLoading   Action = Action(StateLoading)
	ActionOnMission Action = Action(StateOnMission)
	ActionResting   Action = Action(StateResting)
)

// Valid reports whether a is a recognised transition action.
func (a Action) Valid() bool {
	switch a {
	case ActionLoading, ActionOnMission, ActionResting:
		return true
	}
	return false
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a discrete weighted resource held by at most one mover at a time.
// A nil HolderID means the item is available for claiming.
type Item struct {
	Base
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	HolderID *string `json:"holder_id"`
}

// Held reports whether the item is currently claimed by a mover.
func (i Item) Held() bool { return i.HolderID != nil }

// Mover carries items subject to a weight capacity and executes missions.
// ItemIDs stores references only; resolution to full items happens at the
// read boundary so the mutation path never works on stale copies.
type Mover struct {
	Base
	Name              string     `json:"name"`
	Capacity          float64    `json:"capacity"`
	CurrentLoad       float64    `json:"current_load"`
	State             MoverState `json:"state"`
	ItemIDs           []string   `json:"item_ids"`
	MissionsCompleted int        `json:"missions_completed"`
}

// MoverDetail is a mover with its held item references resolved.
type MoverDetail struct {
	Mover
	Items []Item `json:"items"`
}

// TransitionRecord is an immutable audit entry capturing one committed
// lifecycle change and the items involved at that moment. For a mission-end
// record ItemIDs holds the delivered items, captured before the mover's held
// set was cleared.
type TransitionRecord struct {
	ID        string    `json:"id"`
	MoverID   string    `json:"mover_id"`
	Action    Action    `json:"action"`
	ItemIDs   []string  `json:"item_ids"`
	Timestamp time.Time `json:"timestamp"`
}
