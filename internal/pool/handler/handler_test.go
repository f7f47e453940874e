package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"firegate/internal/domain"
	"firegate/internal/pool"
	"firegate/pkg/testutil"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := pool.NewService(pool.NewMemory(), 15*time.Minute, logger, nil)
	require.NoError(t, svc.Seed(context.Background(), []*pool.Entry{
		{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh},
		{FirefighterID: "FF_DEV_01", TargetSystem: "DEV", Tier: domain.TierLow},
	}))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func TestListPool(t *testing.T) {
	r := newRouter(t)

	req := testutil.WithActor(testutil.NewRequest(t, http.MethodGet, "/pool"), "mgarcia")
	w := testutil.DoRequest(r, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []*pool.Entry `json:"entries"`
	}
	testutil.DecodeJSON(t, w, &resp)
	require.Len(t, resp.Entries, 2)
	require.Equal(t, "FF_DEV_01", resp.Entries[0].FirefighterID)
	require.Equal(t, pool.StateFree, resp.Entries[0].State)
}

func TestGetPoolEntry(t *testing.T) {
	r := newRouter(t)

	w := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/pool/FF_PRD_01"))
	require.Equal(t, http.StatusOK, w.Code)

	var entry pool.Entry
	testutil.DecodeJSON(t, w, &entry)
	require.Equal(t, domain.TierHigh, entry.Tier)

	w = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/pool/FF_MISSING"))
	require.Equal(t, http.StatusNotFound, w.Code)
}
