package domain

import dErrors "firegate/pkg/domain-errors"

// StepKind identifies one required approval or review step. Steps are
// derived from request attributes by the approval router, never stored
// independently.
type StepKind string

const (
	// StepManagerApproval is required whenever the credential holder is
	// not the requester; decided by the subject's manager.
	StepManagerApproval StepKind = "manager_approval"

	// StepControllerApproval is required for High/Critical tier targets
	// or firefighter IDs; decided by the firefighter controller.
	StepControllerApproval StepKind = "controller_approval"

	// StepSecurityReview is the post-session sign-off gating Completed.
	// It is never evaluated before the window has ended.
	StepSecurityReview StepKind = "security_review"
)

// IsPreActivation reports whether the step blocks the Approved
// transition (as opposed to the post-session review gate).
func (k StepKind) IsPreActivation() bool {
	return k == StepManagerApproval || k == StepControllerApproval
}

// ParseStepKind constructs a StepKind from external input.
func ParseStepKind(s string) (StepKind, error) {
	k := StepKind(s)
	switch k {
	case StepManagerApproval, StepControllerApproval, StepSecurityReview:
		return k, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown step kind %q", s)
}

func (k StepKind) String() string { return string(k) }

// Outcome is an approver's verdict on a step.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
)

// ParseOutcome constructs an Outcome from external input.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if o != OutcomeApprove && o != OutcomeReject {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown outcome %q", s)
	}
	return o, nil
}

func (o Outcome) String() string { return string(o) }
