// Package audit records retrieval queries for compliance review.
// Recording is best effort and never fails the operation being audited.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
)

// Entry is one auditable retrieval query.
type Entry struct {
	Query        string
	ResultIDs    []string
	Similarities []float64
	Duration     time.Duration
	CacheHit     bool
	Success      bool
	Error        string
}

// Logger writes audit entries to the query log.
type Logger struct {
	store  store.AuditStore
	logger *zap.Logger
}

func NewLogger(st store.AuditStore, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{store: st, logger: logger}
}

// LogQuery persists one entry. Storage failures and missing tenant
// context are logged as warnings and swallowed.
func (l *Logger) LogQuery(ctx context.Context, entry Entry) {
	if l.store == nil {
		return
	}
	info, err := tenant.FromContext(ctx)
	if err != nil {
		l.logger.Warn("query not audited", zap.Error(err))
		return
	}

	row := &store.QueryLogRow{
		ID:           uuid.NewString(),
		TenantID:     info.TenantID,
		Query:        entry.Query,
		ResultIDs:    entry.ResultIDs,
		Similarities: entry.Similarities,
		Duration:     entry.Duration,
		CacheHit:     entry.CacheHit,
		Success:      entry.Success,
		Error:        entry.Error,
		CreatedAt:    time.Now().UTC(),
	}
	if err := l.store.SaveQueryLog(ctx, row); err != nil {
		l.logger.Warn("query not audited",
			zap.String("tenant_id", info.TenantID),
			zap.Error(err))
	}
}
