// Package lifecycle owns the access request state machine. Every status
// change in the system funnels through this service: submission routing,
// approval decisions, credential reservation, scheduled activation and
// expiry, and the post-session review gate. Transitions run under a
// per-request lock and a status CAS in the store, so duplicate triggers
// from retries or concurrent approvers settle deterministically.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"firegate/internal/approval"
	"firegate/internal/connector"
	"firegate/internal/domain"
	"firegate/internal/events"
	"firegate/internal/platform/config"
	"firegate/internal/pool"
	"firegate/internal/request/models"
	"firegate/internal/request/store"
	"firegate/internal/sessionlog"
	"firegate/internal/targets"
	dErrors "firegate/pkg/domain-errors"
	"firegate/pkg/platform/sentinel"
	"firegate/pkg/requestcontext"
)

// Service orchestrates the request lifecycle.
type Service struct {
	requests  store.Store
	pool      *pool.Service
	sessions  *sessionlog.Service
	recorder  events.Recorder
	directory connector.Directory
	target    connector.TargetSystem
	notifier  connector.Notifier
	registry  *targets.Registry

	cfg     config.ConnectorConfig
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	locks   shardedLocks
}

// Deps bundles the collaborators the service needs.
type Deps struct {
	Requests  store.Store
	Pool      *pool.Service
	Sessions  *sessionlog.Service
	Recorder  events.Recorder
	Directory connector.Directory
	Target    connector.TargetSystem
	Notifier  connector.Notifier
	Registry  *targets.Registry
	Connector config.ConnectorConfig
	Logger    *slog.Logger
	Metrics   *Metrics
}

// NewService constructs the lifecycle service and registers it as the
// pool's capacity listener.
func NewService(d Deps) *Service {
	s := &Service{
		requests:  d.Requests,
		pool:      d.Pool,
		sessions:  d.Sessions,
		recorder:  d.Recorder,
		directory: d.Directory,
		target:    d.Target,
		notifier:  d.Notifier,
		registry:  d.Registry,
		cfg:       d.Connector,
		logger:    d.Logger,
		metrics:   d.Metrics,
		tracer:    otel.Tracer("firegate/lifecycle"),
	}
	d.Pool.SetCapacityListener(s)
	return s
}

// Submit validates a draft, derives its approval route, and either parks
// it for approval or approves it immediately when no pre-activation step
// applies.
func (s *Service) Submit(ctx context.Context, draft models.Draft) (*models.AccessRequest, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Submit")
	defer span.End()

	now := requestcontext.Now(ctx)
	if err := draft.Validate(now); err != nil {
		return nil, err
	}

	subject, err := s.directory.ResolveUser(ctx, draft.Subject)
	if err != nil {
		return nil, err
	}
	if _, err := s.directory.ResolveUser(ctx, draft.Requester); err != nil {
		return nil, err
	}
	if draft.Subject != draft.Requester && subject.ManagerID == "" {
		return nil, dErrors.Newf(dErrors.CodeValidation, "subject %s has no manager on record for approval", draft.Subject)
	}

	system, err := s.registry.Resolve(draft.TargetSystem)
	if err != nil {
		return nil, err
	}

	id, err := s.requests.NextID(ctx)
	if err != nil {
		return nil, err
	}

	req := &models.AccessRequest{
		ID:               id,
		Requester:        draft.Requester,
		Subject:          draft.Subject,
		SubjectManager:   subject.ManagerID,
		TargetSystem:     system.ID,
		Tier:             system.Tier,
		Window:           draft.Window,
		Justification:    draft.Justification,
		Status:           domain.StatusRequested,
		Decisions:        []models.Decision{},
		CreatedAt:        now,
		LastTransitionAt: now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	s.record(ctx, req, "", domain.StatusRequested, draft.Requester, "submitted")

	unlock := s.locks.lock(req.ID)
	defer unlock()

	if len(approval.RequiredPreActivation(req)) == 0 {
		if err := s.approve(ctx, req, draft.Requester); err != nil {
			// The submission itself succeeded; exhaustion leaves the
			// request queued and is visible on the returned record.
			if dErrors.HasCode(err, dErrors.CodeNoCapacity) {
				return req, nil
			}
			return nil, err
		}
	} else {
		if err := s.transition(ctx, req, domain.StatusPendingApproval, draft.Requester, "awaiting approval"); err != nil {
			return nil, err
		}
		s.notifyApprovers(ctx, req)
	}
	return req, nil
}

// Decide records one approval or review verdict and advances the request
// accordingly. A rejection at any step is final.
func (s *Service) Decide(ctx context.Context, requestID string, d models.Decision) (*models.AccessRequest, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Decide")
	defer span.End()

	unlock := s.locks.lock(requestID)
	defer unlock()

	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = requestcontext.Now(ctx)
	}

	verdict, err := approval.Evaluate(req, d)
	if err != nil {
		return nil, err
	}

	// The review gate needs the full session log bundle before sign-off
	// in either direction.
	if d.StepKind == domain.StepSecurityReview {
		done, err := s.sessions.Complete(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if !done {
			return nil, dErrors.Newf(dErrors.CodeInvalidState, "session logs for %s are not fully pulled yet", req.ID)
		}
	}

	req, err = s.requests.AppendDecision(ctx, requestID, d)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.Newf(dErrors.CodeInvalidState, "%s is closed", requestID)
		}
		return nil, err
	}

	switch {
	case verdict.Rejected:
		if err := s.transition(ctx, req, domain.StatusRejected, d.Actor, d.Comment); err != nil {
			return nil, err
		}
		s.notify(ctx, req.Requester, "request_rejected", req.ID,
			fmt.Sprintf("%s rejected at %s: %s", req.ID, d.StepKind, d.Comment))
	case verdict.PreActivationComplete:
		if err := s.approve(ctx, req, d.Actor); err != nil {
			return nil, err
		}
	case verdict.ReviewComplete:
		if err := s.transition(ctx, req, domain.StatusCompleted, d.Actor, "review signed off"); err != nil {
			return nil, err
		}
		s.notify(ctx, req.Requester, "request_completed", req.ID,
			fmt.Sprintf("%s closed after security review", req.ID))
	}
	return req, nil
}

// Cancel withdraws a request that has not been approved yet. Later
// stages must fail loudly instead of silently unwinding provisioning.
func (s *Service) Cancel(ctx context.Context, requestID, actor string) (*models.AccessRequest, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Cancel")
	defer span.End()

	unlock := s.locks.lock(requestID)
	defer unlock()

	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor != req.Requester {
		return nil, dErrors.Newf(dErrors.CodeUnauthorized, "only the requester may cancel %s", requestID)
	}
	if !req.Status.Cancellable() {
		if req.Status == domain.StatusActive {
			return nil, dErrors.Newf(dErrors.CodeInvalidState, "%s is already active; terminate the session instead", requestID)
		}
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "%s is %s and can no longer be cancelled", requestID, req.Status)
	}
	wasParked := req.AwaitingCapacity
	req.AwaitingCapacity = false
	if err := s.transition(ctx, req, domain.StatusCancelled, actor, "withdrawn by requester"); err != nil {
		req.AwaitingCapacity = wasParked
		return nil, err
	}
	if wasParked {
		s.metrics.observeParked(-1)
	}
	return req, nil
}

// Terminate ends an active session before its window elapses. The
// requester or the credential subject may pull the plug early.
func (s *Service) Terminate(ctx context.Context, requestID, actor string) (*models.AccessRequest, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Terminate")
	defer span.End()

	unlock := s.locks.lock(requestID)
	defer unlock()

	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor != req.Requester && actor != req.Subject {
		return nil, dErrors.Newf(dErrors.CodeUnauthorized, "only the requester or subject may terminate %s", requestID)
	}
	if req.Status != domain.StatusActive {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "%s is %s, not active", requestID, req.Status)
	}
	if err := s.endSession(ctx, req, actor, "terminated early"); err != nil {
		return nil, err
	}
	return req, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	return s.get(ctx, requestID)
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, f store.Filter) ([]*models.AccessRequest, error) {
	return s.requests.List(ctx, f)
}

// Logs assembles the review bundle for a request.
func (s *Service) Logs(ctx context.Context, requestID string) (*sessionlog.Bundle, error) {
	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Bundle(ctx, req)
}

func (s *Service) get(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "request %s not found", requestID)
	}
	return req, err
}

// approve moves a request to Approved, reserving a credential if one is
// free. On exhaustion the request stays in PendingApproval with
// AwaitingCapacity set, keeping it cancellable, and the capacity error
// is surfaced; the pool's release signal retries it later.
func (s *Service) approve(ctx context.Context, req *models.AccessRequest, actor string) error {
	entry, err := s.pool.Reserve(ctx, req.TargetSystem, req.Tier, req.Window, req.ID)
	switch {
	case err == nil:
		req.FirefighterID = entry.FirefighterID
		req.AwaitingCapacity = false
	case dErrors.HasCode(err, dErrors.CodeNoCapacity):
		return s.park(ctx, req, actor)
	default:
		return err
	}

	if err := s.transition(ctx, req, domain.StatusApproved, actor, "approved"); err != nil {
		if relErr := s.pool.Release(ctx, req.FirefighterID, req.ID); relErr != nil {
			s.logger.ErrorContext(ctx, "orphaned reservation release failed",
				"request_id", req.ID,
				"firefighter_id", req.FirefighterID,
				"error", relErr,
			)
		}
		return err
	}
	s.notify(ctx, req.Requester, "request_approved", req.ID,
		fmt.Sprintf("%s approved for %s", req.ID, req.TargetSystem))
	return nil
}

// park records pool exhaustion on a fully approved request. The status
// rests at PendingApproval so the requester can still cancel while
// waiting for a credential to free up.
func (s *Service) park(ctx context.Context, req *models.AccessRequest, actor string) error {
	req.AwaitingCapacity = true
	if req.Status == domain.StatusRequested {
		if err := s.transition(ctx, req, domain.StatusPendingApproval, actor, "waiting for pool capacity"); err != nil {
			req.AwaitingCapacity = false
			return err
		}
	} else {
		if err := s.requests.Update(ctx, req, req.Status); err != nil {
			req.AwaitingCapacity = false
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeInvalidState, "%s changed concurrently", req.ID)
			}
			return err
		}
	}
	s.metrics.observeParked(1)
	s.logger.WarnContext(ctx, "pool exhausted, request parked",
		"request_id", req.ID,
		"target_system", req.TargetSystem,
	)
	s.notify(ctx, req.Requester, "capacity_wait", req.ID,
		fmt.Sprintf("%s is approved but %s has no free firefighter credential; it is queued for the next release", req.ID, req.TargetSystem))
	return dErrors.Newf(dErrors.CodeNoCapacity, "no free credential on %s; %s is queued for the next release", req.TargetSystem, req.ID)
}

// transition applies one legal status edge via the store CAS and records
// the event. The caller holds the request lock.
func (s *Service) transition(ctx context.Context, req *models.AccessRequest, to domain.Status, actor, detail string) error {
	from := req.Status
	if !from.CanTransitionTo(to) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot move %s from %s to %s", req.ID, from, to)
	}
	req.Status = to
	req.LastTransitionAt = requestcontext.Now(ctx)
	if err := s.requests.Update(ctx, req, from); err != nil {
		req.Status = from
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Newf(dErrors.CodeInvalidState, "%s changed concurrently", req.ID)
		}
		return err
	}
	s.record(ctx, req, from, to, actor, detail)
	return nil
}

func (s *Service) record(ctx context.Context, req *models.AccessRequest, from, to domain.Status, actor, detail string) {
	s.metrics.observeTransition(string(to))
	s.logger.InfoContext(ctx, "request transition",
		"request_id", req.ID,
		"from", from,
		"to", to,
		"actor", actor,
	)
	ev := events.TransitionEvent{
		RequestID: req.ID,
		From:      from,
		To:        to,
		Actor:     actor,
		Detail:    detail,
		Timestamp: requestcontext.Now(ctx),
	}
	if err := s.recorder.Record(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "transition event not recorded",
			"request_id", req.ID,
			"error", err,
		)
	}
}

func (s *Service) notify(ctx context.Context, recipient, event, requestID, message string) {
	s.notifier.Notify(ctx, connector.Notification{
		Recipient: recipient,
		Event:     event,
		RequestID: requestID,
		Message:   message,
	})
}

func (s *Service) notifyApprovers(ctx context.Context, req *models.AccessRequest) {
	for _, step := range approval.PendingPreActivation(req) {
		if step == domain.StepManagerApproval {
			s.notify(ctx, req.SubjectManager, "approval_requested", req.ID,
				fmt.Sprintf("%s needs your approval for %s on %s", req.Subject, req.ID, req.TargetSystem))
		}
	}
}
