package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
)

type failingAuditStore struct{}

func (failingAuditStore) SaveQueryLog(context.Context, *store.QueryLogRow) error {
	return errors.New("storage unavailable")
}

func TestLogQuery_Persists(t *testing.T) {
	st := store.NewMemoryStore()
	logger := NewLogger(st, zap.NewNop())
	ctx := tenant.NewContext(context.Background(), &tenant.Info{TenantID: "tenant-1"})

	logger.LogQuery(ctx, Entry{
		Query:        "faturas de consultoria",
		ResultIDs:    []string{"doc-1", "doc-2"},
		Similarities: []float64{0.91, 0.84},
		Duration:     120 * time.Millisecond,
		Success:      true,
	})

	logs := st.QueryLogs()
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
	assert.Equal(t, "tenant-1", logs[0].TenantID)
	assert.Equal(t, []string{"doc-1", "doc-2"}, logs[0].ResultIDs)
	assert.True(t, logs[0].Success)
}

func TestLogQuery_SwallowsFailures(t *testing.T) {
	logger := NewLogger(failingAuditStore{}, zap.NewNop())
	ctx := tenant.NewContext(context.Background(), &tenant.Info{TenantID: "tenant-1"})

	// Must not panic or propagate anything.
	logger.LogQuery(ctx, Entry{Query: "q", Success: false, Error: "boom"})
}

func TestLogQuery_MissingTenantSwallowed(t *testing.T) {
	st := store.NewMemoryStore()
	logger := NewLogger(st, zap.NewNop())

	logger.LogQuery(context.Background(), Entry{Query: "q"})
	assert.Empty(t, st.QueryLogs())
}
