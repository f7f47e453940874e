package sessionlog

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"firegate/internal/connector"
	"firegate/internal/domain"
	"firegate/internal/request/models"
	dErrors "firegate/pkg/domain-errors"
	"firegate/pkg/requestcontext"
)

// Service pulls session logs from target systems and assembles review
// bundles.
type Service struct {
	store  Store
	target connector.TargetSystem
	scorer Scorer
	logger *slog.Logger
}

// NewService constructs the session log service.
func NewService(store Store, target connector.TargetSystem, scorer Scorer, logger *slog.Logger) *Service {
	return &Service{store: store, target: target, scorer: scorer, logger: logger}
}

// Pull fetches all log categories for a finished session, in parallel,
// and stores each result. Per-category failures are stored with their
// error and reported as a partial failure so the scheduler retries them
// next tick; categories already pulled cleanly are not fetched again.
func (s *Service) Pull(ctx context.Context, req *models.AccessRequest) error {
	existing, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)

	var (
		mu     sync.Mutex
		failed []domain.LogCategory
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, category := range domain.AllLogCategories() {
		if prior, ok := existing[category]; ok && prior.FetchError == "" {
			continue
		}
		g.Go(func() error {
			log := &CategoryLog{RequestID: req.ID, Category: category, PulledAt: now}
			records, err := s.target.FetchLogs(gctx, req.FirefighterID, req.TargetSystem, req.Window, category)
			if err != nil {
				log.FetchError = err.Error()
				mu.Lock()
				failed = append(failed, category)
				mu.Unlock()
				s.logger.WarnContext(gctx, "session log pull failed",
					"request_id", req.ID,
					"category", category,
					"error", err,
				)
			} else {
				log.Records = records
			}
			return s.store.Save(gctx, log)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(failed) > 0 {
		return dErrors.Newf(dErrors.CodePartialFailure, "%d of %d log categories failed for %s",
			len(failed), len(domain.AllLogCategories()), req.ID)
	}
	return nil
}

// Bundle assembles the review view for a request: all stored categories,
// the completeness verdict, and the heuristic assessment.
func (s *Service) Bundle(ctx context.Context, req *models.AccessRequest) (*Bundle, error) {
	logs, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		RequestID:  req.ID,
		Categories: logs,
		Complete:   complete(logs),
	}
	if b.Complete {
		b.Assessment = s.scorer.Score(req, logs)
	}
	return b, nil
}

// Complete reports whether every category has a clean pull; the review
// gate refuses sign-off until this holds.
func (s *Service) Complete(ctx context.Context, requestID string) (bool, error) {
	logs, err := s.store.Get(ctx, requestID)
	if err != nil {
		return false, err
	}
	return complete(logs), nil
}

func complete(logs map[domain.LogCategory]*CategoryLog) bool {
	for _, category := range domain.AllLogCategories() {
		log, ok := logs[category]
		if !ok || log.FetchError != "" {
			return false
		}
	}
	return true
}
