package domain

import dErrors "firegate/pkg/domain-errors"

// Status is the lifecycle state of an access request. It is a closed
// enumeration; transitions are only legal along the edges in
// allowedTransitions, enforced by the lifecycle service under the
// per-request lock.
type Status string

const (
	StatusRequested       Status = "requested"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusActive          Status = "active"
	StatusPendingReview   Status = "pending_review"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

// allowedTransitions is the single source of truth for legal lifecycle
// edges. Rejected is reachable from approval and review; Cancelled only
// before activation.
var allowedTransitions = map[Status][]Status{
	StatusRequested:       {StatusPendingApproval, StatusApproved, StatusCancelled},
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:        {StatusActive},
	StatusActive:          {StatusPendingReview},
	StatusPendingReview:   {StatusCompleted, StatusRejected},
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown status %q", s)
	}
	return st, nil
}

// IsValid checks membership in the closed enumeration.
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusPendingApproval, StatusApproved, StatusActive,
		StatusPendingReview, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo reports whether the edge s -> next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether a requester withdrawal is still honored.
// Once provisioning can be in flight (Approved and later) a cancel
// attempt must fail rather than silently no-op.
func (s Status) Cancellable() bool {
	return s == StatusRequested || s == StatusPendingApproval
}

func (s Status) String() string { return string(s) }
