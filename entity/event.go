package entity

import "time"

// EventKind classifies entity lifecycle events.
type EventKind string

const (
	EventCreated      EventKind = "created"
	EventUpdated      EventKind = "updated"
	EventExtended     EventKind = "extended"
	EventDeleted      EventKind = "deleted"
	EventOwnerChanged EventKind = "owner_changed"
	// EventExpired is emitted by the background sweep when it reclaims an
	// entity past its TTL. Read paths already treat such entities as absent;
	// the event only marks the storage reclamation.
	EventExpired EventKind = "expired"
)

// AllEventKinds lists every lifecycle event kind, in no particular order.
var AllEventKinds = []EventKind{
	EventCreated, EventUpdated, EventExtended,
	EventDeleted, EventOwnerChanged, EventExpired,
}

// ParseEventKind validates an event kind name from a wire request.
func ParseEventKind(s string) (EventKind, bool) {
	k := EventKind(s)
	for _, known := range AllEventKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Event records one committed lifecycle change. Seq is assigned in commit
// order and is strictly increasing across all entities; subscribers observe
// events for a single filter in Seq order.
type Event struct {
	Seq      int64     `json:"seq"`
	Kind     EventKind `json:"kind"`
	Key      Key       `json:"entity_key"`
	Owner    Owner     `json:"owner"`
	OldOwner Owner     `json:"old_owner,omitempty"` // set for owner_changed
	At       time.Time `json:"at"`
}
