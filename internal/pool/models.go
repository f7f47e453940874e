// Package pool tracks the shared firefighter credentials: which exist,
// who holds them, and their lease windows. The pool is the only resource
// contended across requests; every mutation of an entry is atomic with
// respect to that entry.
package pool

import (
	"time"

	"firegate/internal/domain"
	dErrors "firegate/pkg/domain-errors"
)

// EntryState is the lease state of one credential pool entry.
type EntryState string

const (
	StateFree        EntryState = "free"
	StateReserved    EntryState = "reserved"
	StateActive      EntryState = "active"
	StateCoolingDown EntryState = "cooling_down"
)

// ParseEntryState constructs an EntryState from external input.
func ParseEntryState(s string) (EntryState, error) {
	es := EntryState(s)
	switch es {
	case StateFree, StateReserved, StateActive, StateCoolingDown:
		return es, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown pool state %q", s)
}

// Entry is one shared privileged account on a managed system.
type Entry struct {
	FirefighterID string      `json:"firefighter_id"`
	TargetSystem  string      `json:"target_system"`
	Tier          domain.Tier `json:"tier"`
	State         EntryState  `json:"state"`

	// HeldBy references the access request holding the entry; empty when
	// Free or CoolingDown.
	HeldBy         string        `json:"held_by,omitempty"`
	ReservedWindow domain.Window `json:"reserved_window"`

	// CooldownUntil is set on deactivation; the entry returns to Free
	// once it passes.
	CooldownUntil time.Time `json:"cooldown_until"`
}

// Clone returns a copy so store reads never alias stored state.
func (e *Entry) Clone() *Entry {
	cp := *e
	return &cp
}
