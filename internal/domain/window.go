package domain

import (
	"time"

	dErrors "firegate/pkg/domain-errors"
)

// Window is the time span a credential is committed to a request.
// Invariant: End is strictly after Start.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate enforces the submission-time invariants: ordering and both
// endpoints in the future relative to now.
func (w Window) Validate(now time.Time) error {
	if w.Start.IsZero() || w.End.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "window start and end are required")
	}
	if !w.End.After(w.Start) {
		return dErrors.New(dErrors.CodeValidation, "window end must be after start")
	}
	if w.Start.Before(now) {
		return dErrors.New(dErrors.CodeValidation, "window start must be in the future")
	}
	return nil
}

// Overlaps reports whether two windows share any instant. Touching
// endpoints do not overlap, which lets back-to-back reservations on the
// same entry succeed.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Contains reports whether t falls inside the window, half-open on the
// end so a timestamp exactly at End counts as outside.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the committed span.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
