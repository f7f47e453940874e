package lifecycle

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"firegate/internal/domain"
	"firegate/internal/request/models"
	"firegate/internal/request/store"
	dErrors "firegate/pkg/domain-errors"
	"firegate/pkg/requestcontext"
)

// ActivateDue provisions every approved request whose window has opened.
// Called by the scheduler; each request is handled under its own lock so
// a tick overlapping a manual trigger cannot double-provision.
func (s *Service) ActivateDue(ctx context.Context) {
	due, err := s.requests.ListActivationDue(ctx, requestcontext.Now(ctx))
	if err != nil {
		s.logger.ErrorContext(ctx, "activation scan failed", "error", err)
		return
	}
	for _, req := range due {
		s.activateOne(ctx, req.ID)
	}
}

func (s *Service) activateOne(ctx context.Context, requestID string) {
	unlock := s.locks.lock(requestID)
	defer unlock()

	req, err := s.get(ctx, requestID)
	if err != nil {
		s.logger.ErrorContext(ctx, "activation reload failed", "request_id", requestID, "error", err)
		return
	}
	// Re-check under the lock; a cancel or a previous tick may have won.
	if req.Status != domain.StatusApproved || req.FirefighterID == "" || req.ProvisioningFailed {
		return
	}
	if requestcontext.Now(ctx).Before(req.Window.Start) {
		return
	}

	err = s.callConnector(ctx, func(cctx context.Context) error {
		return s.target.Activate(cctx, req.FirefighterID, req.TargetSystem)
	})
	if err != nil {
		s.metrics.observeConnectorFailure("activate")
		req.ProvisioningFailed = true
		if uerr := s.requests.Update(ctx, req, domain.StatusApproved); uerr != nil {
			s.logger.ErrorContext(ctx, "provisioning failure not persisted", "request_id", req.ID, "error", uerr)
		}
		s.logger.ErrorContext(ctx, "provisioning failed, operator attention required",
			"request_id", req.ID,
			"firefighter_id", req.FirefighterID,
			"error", err,
		)
		s.notify(ctx, req.Requester, "provisioning_failed", req.ID,
			fmt.Sprintf("activation of %s on %s failed; operations has been alerted", req.FirefighterID, req.TargetSystem))
		return
	}

	if err := s.pool.Activate(ctx, req.FirefighterID, req.ID); err != nil {
		s.logger.ErrorContext(ctx, "pool activation failed", "request_id", req.ID, "error", err)
		return
	}
	if err := s.transition(ctx, req, domain.StatusActive, "", "window opened"); err != nil {
		s.logger.ErrorContext(ctx, "activation transition failed", "request_id", req.ID, "error", err)
		return
	}
	s.notify(ctx, req.Subject, "session_active", req.ID,
		fmt.Sprintf("%s is live on %s until %s", req.FirefighterID, req.TargetSystem, req.Window.End.Format("2006-01-02 15:04 MST")))
}

// ExpireDue ends every active session whose window has elapsed.
func (s *Service) ExpireDue(ctx context.Context) {
	due, err := s.requests.ListExpiryDue(ctx, requestcontext.Now(ctx))
	if err != nil {
		s.logger.ErrorContext(ctx, "expiry scan failed", "error", err)
		return
	}
	for _, req := range due {
		s.expireOne(ctx, req.ID)
	}
}

func (s *Service) expireOne(ctx context.Context, requestID string) {
	unlock := s.locks.lock(requestID)
	defer unlock()

	req, err := s.get(ctx, requestID)
	if err != nil {
		s.logger.ErrorContext(ctx, "expiry reload failed", "request_id", requestID, "error", err)
		return
	}
	if req.Status != domain.StatusActive {
		return
	}
	if requestcontext.Now(ctx).Before(req.Window.End) {
		return
	}
	if err := s.endSession(ctx, req, "", "window elapsed"); err != nil {
		s.logger.ErrorContext(ctx, "expiry failed", "request_id", req.ID, "error", err)
	}
}

// endSession deactivates the credential, starts its cool-down, moves the
// request to PendingReview, and kicks off the log pull. The caller holds
// the request lock and has verified Active status.
func (s *Service) endSession(ctx context.Context, req *models.AccessRequest, actor, detail string) error {
	err := s.callConnector(ctx, func(cctx context.Context) error {
		return s.target.Deactivate(cctx, req.FirefighterID, req.TargetSystem)
	})
	if err != nil {
		s.metrics.observeConnectorFailure("deactivate")
		if !req.DeactivationFailed {
			req.DeactivationFailed = true
			if uerr := s.requests.Update(ctx, req, domain.StatusActive); uerr != nil {
				s.logger.ErrorContext(ctx, "deactivation failure not persisted", "request_id", req.ID, "error", uerr)
			}
		}
		s.logger.ErrorContext(ctx, "deactivation failed, credential may still be live",
			"request_id", req.ID,
			"firefighter_id", req.FirefighterID,
			"error", err,
		)
		s.notify(ctx, req.Requester, "deactivation_failed", req.ID,
			fmt.Sprintf("deactivation of %s on %s failed; operations has been alerted", req.FirefighterID, req.TargetSystem))
		return dErrors.Wrap(err, dErrors.CodeDeactivationFailure, "deactivate credential")
	}

	if req.DeactivationFailed {
		req.DeactivationFailed = false
	}
	if err := s.pool.Deactivate(ctx, req.FirefighterID, req.ID); err != nil {
		return err
	}
	if err := s.transition(ctx, req, domain.StatusPendingReview, actor, detail); err != nil {
		return err
	}

	if err := s.sessions.Pull(ctx, req); err != nil {
		// Partial pulls are retried by PullPendingLogs on later ticks.
		s.logger.WarnContext(ctx, "initial log pull incomplete", "request_id", req.ID, "error", err)
	}
	s.notify(ctx, req.SubjectManager, "review_due", req.ID,
		fmt.Sprintf("session %s ended; security review is due", req.ID))
	return nil
}

// PullPendingLogs retries log extraction for reviews still missing
// categories.
func (s *Service) PullPendingLogs(ctx context.Context) {
	pending, err := s.requests.List(ctx, store.Filter{Status: domain.StatusPendingReview})
	if err != nil {
		s.logger.ErrorContext(ctx, "pending review scan failed", "error", err)
		return
	}
	for _, req := range pending {
		done, err := s.sessions.Complete(ctx, req.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "log completeness check failed", "request_id", req.ID, "error", err)
			continue
		}
		if done {
			continue
		}
		if err := s.sessions.Pull(ctx, req); err != nil {
			s.logger.WarnContext(ctx, "log pull retry incomplete", "request_id", req.ID, "error", err)
		}
	}
}

// OnCapacityReleased retries parked approvals for a target system in
// submission order, stopping at the first exhaustion.
func (s *Service) OnCapacityReleased(ctx context.Context, targetSystem string) {
	parked, err := s.requests.ListAwaitingCapacity(ctx, targetSystem)
	if err != nil {
		s.logger.ErrorContext(ctx, "capacity retry scan failed", "target_system", targetSystem, "error", err)
		return
	}
	for _, req := range parked {
		if !s.retryReservation(ctx, req.ID) {
			return
		}
	}
}

// retryReservation reports false when the pool is exhausted again.
func (s *Service) retryReservation(ctx context.Context, requestID string) bool {
	unlock := s.locks.lock(requestID)
	defer unlock()

	req, err := s.get(ctx, requestID)
	if err != nil {
		s.logger.ErrorContext(ctx, "capacity retry reload failed", "request_id", requestID, "error", err)
		return true
	}
	if req.Status != domain.StatusPendingApproval || !req.AwaitingCapacity {
		return true
	}

	entry, err := s.pool.Reserve(ctx, req.TargetSystem, req.Tier, req.Window, req.ID)
	if dErrors.HasCode(err, dErrors.CodeNoCapacity) {
		return false
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "capacity retry failed", "request_id", req.ID, "error", err)
		return true
	}

	req.FirefighterID = entry.FirefighterID
	req.AwaitingCapacity = false
	if err := s.transition(ctx, req, domain.StatusApproved, "", "capacity released"); err != nil {
		req.FirefighterID = ""
		req.AwaitingCapacity = true
		if relErr := s.pool.Release(ctx, entry.FirefighterID, req.ID); relErr != nil {
			s.logger.ErrorContext(ctx, "retry reservation rollback failed", "request_id", req.ID, "error", relErr)
		}
		return true
	}
	s.metrics.observeParked(-1)
	s.logger.InfoContext(ctx, "parked request got capacity",
		"request_id", req.ID,
		"firefighter_id", entry.FirefighterID,
	)
	s.notify(ctx, req.Requester, "request_approved", req.ID,
		fmt.Sprintf("%s now holds %s on %s", req.ID, entry.FirefighterID, req.TargetSystem))
	return true
}

// callConnector runs one target-system call with a per-attempt timeout
// and exponential backoff up to the configured attempt budget.
func (s *Service) callConnector(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := s.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(s.cfg.BackoffBase)),
		uint64(attempts-1),
	)
	op := func() error {
		cctx := ctx
		if s.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
			defer cancel()
		}
		return fn(cctx)
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
