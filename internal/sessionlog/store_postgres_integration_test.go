//go:build integration

package sessionlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firegate/internal/connector"
	"firegate/internal/domain"
	"firegate/pkg/testutil/containers"
)

func TestPostgresSessionLogStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	st := NewPostgres(pg.DB)
	require.NoError(t, st.EnsureSchema(ctx))

	pulled := time.Now().UTC().Truncate(time.Microsecond)
	log := &CategoryLog{
		RequestID: "REQFF000001",
		Category:  domain.LogTransactions,
		Records: []connector.LogRecord{
			{Timestamp: pulled, Actor: "FF_PRD_01", Fields: map[string]string{"transaction": "SU01"}},
		},
		PulledAt: pulled,
	}
	require.NoError(t, st.Save(ctx, log))

	got, err := st.Get(ctx, "REQFF000001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "SU01", got[domain.LogTransactions].Records[0].Fields["transaction"])

	// A refetch overwrites the prior pull for the same category.
	log.FetchError = ""
	log.Records = append(log.Records, connector.LogRecord{Timestamp: pulled.Add(time.Minute), Actor: "FF_PRD_01"})
	require.NoError(t, st.Save(ctx, log))

	failed := &CategoryLog{
		RequestID:  "REQFF000001",
		Category:   domain.LogAudit,
		PulledAt:   pulled,
		FetchError: "connector timeout",
	}
	require.NoError(t, st.Save(ctx, failed))

	got, err = st.Get(ctx, "REQFF000001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, got[domain.LogTransactions].Records, 2)
	require.Equal(t, "connector timeout", got[domain.LogAudit].FetchError)
	require.Empty(t, got[domain.LogAudit].Records)

	got, err = st.Get(ctx, "REQFF000099")
	require.NoError(t, err)
	require.Empty(t, got)
}
