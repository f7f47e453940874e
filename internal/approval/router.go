// Package approval derives the approval route for an access request and
// evaluates incoming decisions against it. The package is pure: routing
// depends only on request attributes, so a request's route can always be
// recomputed from its record.
package approval

import (
	"firegate/internal/domain"
	"firegate/internal/request/models"
	dErrors "firegate/pkg/domain-errors"
)

// RequiredSteps returns every step the request must clear, in evaluation
// order. Pre-activation steps come first; the security review is always
// last and only ever evaluated after the session window ends.
func RequiredSteps(req *models.AccessRequest) []domain.StepKind {
	steps := RequiredPreActivation(req)
	return append(steps, domain.StepSecurityReview)
}

// RequiredPreActivation returns the steps gating the Approved transition.
//
// Self-service requests (subject == requester) skip manager approval.
// High and Critical tier targets always add controller approval.
func RequiredPreActivation(req *models.AccessRequest) []domain.StepKind {
	var steps []domain.StepKind
	if req.Subject != req.Requester {
		steps = append(steps, domain.StepManagerApproval)
	}
	if req.Tier.AtLeast(domain.TierHigh) {
		steps = append(steps, domain.StepControllerApproval)
	}
	return steps
}

// PendingPreActivation returns the pre-activation steps without a
// recorded decision yet.
func PendingPreActivation(req *models.AccessRequest) []domain.StepKind {
	var pending []domain.StepKind
	for _, step := range RequiredPreActivation(req) {
		if _, done := req.DecisionFor(step); !done {
			pending = append(pending, step)
		}
	}
	return pending
}

// Verdict summarizes what a just-recorded decision means for the request.
type Verdict struct {
	// Rejected is set when the decision outcome was reject. A single
	// rejection short-circuits the whole route.
	Rejected bool

	// PreActivationComplete is set when every pre-activation step now has
	// an approving decision.
	PreActivationComplete bool

	// ReviewComplete is set when the decision was an approving security
	// review.
	ReviewComplete bool
}

// Evaluate checks a candidate decision against the request's route and
// current decision log. It does not mutate the request; the caller
// appends the decision and applies the verdict under its own locking.
func Evaluate(req *models.AccessRequest, d models.Decision) (Verdict, error) {
	if err := d.Validate(); err != nil {
		return Verdict{}, err
	}
	if !stepRequired(req, d.StepKind) {
		return Verdict{}, dErrors.Newf(dErrors.CodeValidation, "step %s is not on the route for %s", d.StepKind, req.ID)
	}
	if prior, done := req.DecisionFor(d.StepKind); done {
		return Verdict{}, dErrors.Newf(dErrors.CodeInvalidState, "step %s already decided by %s", d.StepKind, prior.Actor)
	}
	if err := authorize(req, d); err != nil {
		return Verdict{}, err
	}
	if d.StepKind.IsPreActivation() {
		if earlier, ok := undecidedPredecessor(req, d.StepKind); ok {
			return Verdict{}, dErrors.Newf(dErrors.CodeInvalidState, "step %s is next on the route for %s; %s comes after it", earlier, req.ID, d.StepKind)
		}
	}

	if d.StepKind == domain.StepSecurityReview {
		if req.Status != domain.StatusPendingReview {
			return Verdict{}, dErrors.Newf(dErrors.CodeInvalidState, "security review opens after the session ends; %s is %s", req.ID, req.Status)
		}
	} else if req.Status != domain.StatusPendingApproval {
		return Verdict{}, dErrors.Newf(dErrors.CodeInvalidState, "%s is %s, not awaiting approval", req.ID, req.Status)
	}

	if d.Outcome == domain.OutcomeReject {
		return Verdict{Rejected: true}, nil
	}

	v := Verdict{ReviewComplete: d.StepKind == domain.StepSecurityReview}
	if d.StepKind.IsPreActivation() {
		v.PreActivationComplete = preActivationCompleteWith(req, d.StepKind)
	}
	return v, nil
}

// undecidedPredecessor returns the first pre-activation step before kind
// that has no recorded decision yet. Decisions land in route order, so a
// controller cannot pre-empt a pending manager approval.
func undecidedPredecessor(req *models.AccessRequest, kind domain.StepKind) (domain.StepKind, bool) {
	for _, step := range RequiredPreActivation(req) {
		if step == kind {
			return "", false
		}
		if _, done := req.DecisionFor(step); !done {
			return step, true
		}
	}
	return "", false
}

func stepRequired(req *models.AccessRequest, kind domain.StepKind) bool {
	for _, step := range RequiredSteps(req) {
		if step == kind {
			return true
		}
	}
	return false
}

// authorize enforces separation of duties: nobody decides on access they
// requested or will hold, and manager approval belongs to the subject's
// manager alone.
func authorize(req *models.AccessRequest, d models.Decision) error {
	if d.Actor == req.Requester || d.Actor == req.Subject {
		return dErrors.Newf(dErrors.CodeUnauthorized, "%s cannot decide on their own request", d.Actor)
	}
	if d.StepKind == domain.StepManagerApproval && d.Actor != req.SubjectManager {
		return dErrors.Newf(dErrors.CodeUnauthorized, "manager approval for %s belongs to %s", req.ID, req.SubjectManager)
	}
	return nil
}

// preActivationCompleteWith reports whether, once kind is approved, all
// pre-activation steps have approving decisions.
func preActivationCompleteWith(req *models.AccessRequest, kind domain.StepKind) bool {
	for _, step := range RequiredPreActivation(req) {
		if step == kind {
			continue
		}
		d, done := req.DecisionFor(step)
		if !done || d.Outcome != domain.OutcomeApprove {
			return false
		}
	}
	return true
}
