package models

import (
	"strings"
	"time"

	"firegate/internal/domain"
	dErrors "firegate/pkg/domain-errors"
)

const (
	maxTransactionsLen = 256
	maxActivityLen     = 1024
)

// Justification is the requester's stated reason for elevated access.
// All fields are mandatory; the review gate compares actual session
// activity against it.
type Justification struct {
	TicketRef             string `json:"ticket_ref"`
	TransactionsRequested string `json:"transactions_requested"`
	ActivityDescription   string `json:"activity_description"`
}

// Validate enforces presence and the bounded-text limits.
func (j Justification) Validate() error {
	if strings.TrimSpace(j.TicketRef) == "" {
		return dErrors.New(dErrors.CodeValidation, "justification ticket reference is required")
	}
	if strings.TrimSpace(j.TransactionsRequested) == "" {
		return dErrors.New(dErrors.CodeValidation, "justification transactions are required")
	}
	if len(j.TransactionsRequested) > maxTransactionsLen {
		return dErrors.Newf(dErrors.CodeValidation, "transactions exceed %d characters", maxTransactionsLen)
	}
	if strings.TrimSpace(j.ActivityDescription) == "" {
		return dErrors.New(dErrors.CodeValidation, "justification activity description is required")
	}
	if len(j.ActivityDescription) > maxActivityLen {
		return dErrors.Newf(dErrors.CodeValidation, "activity description exceeds %d characters", maxActivityLen)
	}
	return nil
}

// Decision is one recorded approve/reject verdict. The decision log on a
// request is append-only.
type Decision struct {
	Actor     string          `json:"actor"`
	StepKind  domain.StepKind `json:"step_kind"`
	Outcome   domain.Outcome  `json:"outcome"`
	Comment   string          `json:"comment"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate enforces the non-empty comment rule; every verdict, approving
// or rejecting, must be accounted for.
func (d Decision) Validate() error {
	if d.Actor == "" {
		return dErrors.New(dErrors.CodeValidation, "decision actor is required")
	}
	if strings.TrimSpace(d.Comment) == "" {
		return dErrors.New(dErrors.CodeValidation, "decision comment is required")
	}
	if d.Outcome != domain.OutcomeApprove && d.Outcome != domain.OutcomeReject {
		return dErrors.New(dErrors.CodeValidation, "decision outcome must be approve or reject")
	}
	return nil
}

// AccessRequest is the durable record of one firefighter access request.
// It is created on submission and mutated only by the lifecycle service;
// terminal records are retained for audit.
type AccessRequest struct {
	ID             string      `json:"id"`
	Requester      string      `json:"requester"`
	Subject        string      `json:"subject"`
	SubjectManager string      `json:"subject_manager"`
	TargetSystem   string      `json:"target_system"`
	Tier           domain.Tier `json:"tier"`

	// FirefighterID references the credential pool entry; empty until the
	// pool reservation succeeds at approval time.
	FirefighterID string `json:"firefighter_id,omitempty"`

	Window        domain.Window `json:"window"`
	Justification Justification `json:"justification"`

	Status    domain.Status `json:"status"`
	Decisions []Decision    `json:"decisions"`

	// AwaitingCapacity marks a fully approved request whose reservation
	// failed on pool exhaustion; it is retried on the next capacity
	// release.
	AwaitingCapacity bool `json:"awaiting_capacity,omitempty"`

	// ProvisioningFailed / DeactivationFailed flag exhausted connector
	// retries; the request keeps its last-good status and an operator
	// alert is raised.
	ProvisioningFailed bool `json:"provisioning_failed,omitempty"`
	DeactivationFailed bool `json:"deactivation_failed,omitempty"`

	CreatedAt        time.Time `json:"created_at"`
	LastTransitionAt time.Time `json:"last_transition_at"`
}

// Clone returns a deep copy so in-memory store reads never alias the
// stored record.
func (r *AccessRequest) Clone() *AccessRequest {
	cp := *r
	cp.Decisions = make([]Decision, len(r.Decisions))
	copy(cp.Decisions, r.Decisions)
	return &cp
}

// DecisionFor returns the recorded decision for a step kind, if any.
func (r *AccessRequest) DecisionFor(kind domain.StepKind) (Decision, bool) {
	for _, d := range r.Decisions {
		if d.StepKind == kind {
			return d, true
		}
	}
	return Decision{}, false
}

// Draft is the submission payload before an ID and status exist.
type Draft struct {
	Requester     string
	Subject       string
	TargetSystem  string
	Window        domain.Window
	Justification Justification
}

// Validate enforces the submission invariants that do not need external
// lookups. Identity and target references are verified by the lifecycle
// service against the directory and target registry.
func (d Draft) Validate(now time.Time) error {
	if d.Requester == "" {
		return dErrors.New(dErrors.CodeValidation, "requester is required")
	}
	if d.Subject == "" {
		return dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if d.TargetSystem == "" {
		return dErrors.New(dErrors.CodeValidation, "target system is required")
	}
	if err := d.Window.Validate(now); err != nil {
		return err
	}
	return d.Justification.Validate()
}
