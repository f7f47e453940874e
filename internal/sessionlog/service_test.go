package sessionlog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firegate/internal/connector"
	"firegate/internal/domain"
	"firegate/internal/request/models"
	dErrors "firegate/pkg/domain-errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sessionRequest() *models.AccessRequest {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &models.AccessRequest{
		ID:            "REQFF000007",
		Requester:     "jdoe",
		Subject:       "jdoe",
		TargetSystem:  "PRD",
		FirefighterID: "FF_PRD_01",
		Window:        domain.Window{Start: start, End: start.Add(4 * time.Hour)},
		Justification: models.Justification{
			TicketRef:             "CHG-4821",
			TransactionsRequested: "SU01, PFCG",
			ActivityDescription:   "restore locked finance batch user",
		},
		Status: domain.StatusPendingReview,
	}
}

func TestServicePull(t *testing.T) {
	ctx := context.Background()

	t.Run("pulls all categories and completes", func(t *testing.T) {
		target := connector.NewFakeTargetSystem()
		target.SeedSessionLogs("FF_PRD_01", time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC))
		svc := NewService(NewMemory(), target, HeuristicScorer{}, discardLogger())
		req := sessionRequest()

		require.NoError(t, svc.Pull(ctx, req))

		done, err := svc.Complete(ctx, req.ID)
		require.NoError(t, err)
		require.True(t, done)
	})

	t.Run("empty extracts still count as complete", func(t *testing.T) {
		svc := NewService(NewMemory(), connector.NewFakeTargetSystem(), HeuristicScorer{}, discardLogger())
		req := sessionRequest()

		require.NoError(t, svc.Pull(ctx, req))

		done, err := svc.Complete(ctx, req.ID)
		require.NoError(t, err)
		require.True(t, done)
	})

	t.Run("failed category yields partial failure and retries", func(t *testing.T) {
		target := connector.NewFakeTargetSystem()
		target.SeedSessionLogs("FF_PRD_01", time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC))
		target.FetchFailures[domain.LogAudit] = 1
		svc := NewService(NewMemory(), target, HeuristicScorer{}, discardLogger())
		req := sessionRequest()

		err := svc.Pull(ctx, req)
		require.True(t, dErrors.HasCode(err, dErrors.CodePartialFailure))

		done, err := svc.Complete(ctx, req.ID)
		require.NoError(t, err)
		require.False(t, done)

		// Second pull only refetches the failed category.
		fetchesBefore := len(target.FetchCalls)
		require.NoError(t, svc.Pull(ctx, req))
		require.Equal(t, fetchesBefore+1, len(target.FetchCalls))

		done, err = svc.Complete(ctx, req.ID)
		require.NoError(t, err)
		require.True(t, done)
	})
}

func TestServiceBundle(t *testing.T) {
	ctx := context.Background()

	t.Run("clean session scores zero", func(t *testing.T) {
		target := connector.NewFakeTargetSystem()
		target.SeedSessionLogs("FF_PRD_01", time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC))
		svc := NewService(NewMemory(), target, HeuristicScorer{}, discardLogger())
		req := sessionRequest()

		require.NoError(t, svc.Pull(ctx, req))

		b, err := svc.Bundle(ctx, req)
		require.NoError(t, err)
		require.True(t, b.Complete)
		require.Zero(t, b.Assessment.RiskScore)
		require.Equal(t, 100, b.Assessment.AlignmentScore)
		require.Empty(t, b.Assessment.Flags)
	})

	t.Run("incomplete bundle carries no assessment", func(t *testing.T) {
		svc := NewService(NewMemory(), connector.NewFakeTargetSystem(), HeuristicScorer{}, discardLogger())
		req := sessionRequest()

		b, err := svc.Bundle(ctx, req)
		require.NoError(t, err)
		require.False(t, b.Complete)
		require.Empty(t, b.Categories)
	})
}

func TestHeuristicScorer(t *testing.T) {
	req := sessionRequest()
	inWindow := req.Window.Start.Add(time.Hour)

	t.Run("flags undeclared transactions once each", func(t *testing.T) {
		logs := map[domain.LogCategory]*CategoryLog{
			domain.LogTransactions: {Records: []connector.LogRecord{
				{Timestamp: inWindow, Actor: "FF_PRD_01", Fields: map[string]string{"transaction": "SE38"}},
				{Timestamp: inWindow, Actor: "FF_PRD_01", Fields: map[string]string{"transaction": "SE38"}},
				{Timestamp: inWindow, Actor: "FF_PRD_01", Fields: map[string]string{"transaction": "SU01"}},
			}},
		}
		a := HeuristicScorer{}.Score(req, logs)
		require.Equal(t, []string{"undeclared_transaction:SE38"}, a.Flags)
		require.Equal(t, 10, a.RiskScore)
		require.Equal(t, 33, a.AlignmentScore)
	})

	t.Run("flags activity outside the window", func(t *testing.T) {
		logs := map[domain.LogCategory]*CategoryLog{
			domain.LogAudit: {Records: []connector.LogRecord{
				{Timestamp: req.Window.End.Add(time.Minute), Actor: "FF_PRD_01"},
			}},
		}
		a := HeuristicScorer{}.Score(req, logs)
		require.Contains(t, a.Flags, "activity_outside_window")
		require.Equal(t, 40, a.RiskScore)
	})

	t.Run("flags a foreign actor", func(t *testing.T) {
		logs := map[domain.LogCategory]*CategoryLog{
			domain.LogChanges: {Records: []connector.LogRecord{
				{Timestamp: inWindow, Actor: "SOMEONE"},
			}},
		}
		a := HeuristicScorer{}.Score(req, logs)
		require.Contains(t, a.Flags, "unexpected_actor")
	})

	t.Run("score is capped", func(t *testing.T) {
		var recs []connector.LogRecord
		for _, code := range []string{"SE38", "SM30", "SM59", "STMS", "SCC4", "SE16", "SA38", "SM21"} {
			recs = append(recs, connector.LogRecord{
				Timestamp: req.Window.End.Add(time.Hour),
				Actor:     "SOMEONE",
				Fields:    map[string]string{"transaction": code},
			})
		}
		a := HeuristicScorer{}.Score(req, map[domain.LogCategory]*CategoryLog{
			domain.LogTransactions: {Records: recs},
		})
		require.Equal(t, 100, a.RiskScore)
		require.Zero(t, a.AlignmentScore)
	})
}
