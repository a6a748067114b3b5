package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/pkg/metrics"
)

//go:generate mockgen -source=audit_service.go -destination=mock_audit_store_test.go -package=service

// AuditStore persists and queries audit entries. It offers no way to
// change or remove an entry once written.
type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, f repository.AuditFilter) ([]models.AuditLog, int64, error)
	Export(ctx context.Context, f repository.AuditFilter, limit int) ([]models.AuditLog, error)
}

// AuditEntry describes one auditable action.
type AuditEntry struct {
	Actor     Actor
	Action    models.AuditAction
	ModelName string
	ObjectID  *uint
	Details   string
}

const (
	auditPageSize    = 50
	auditExportLimit = 10_000
)

type AuditService struct {
	store   AuditStore
	log     *zap.Logger
	metrics *metrics.Collector
}

func NewAuditService(store AuditStore, log *zap.Logger, m *metrics.Collector) *AuditService {
	return &AuditService{store: store, log: log, metrics: m}
}

// Record writes an audit entry synchronously. Failures are logged and
// counted but never returned: an audit outage must not fail the clinical
// action that triggered it.
func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	entry := &models.AuditLog{
		Action:    e.Action,
		ModelName: e.ModelName,
		ObjectID:  e.ObjectID,
		Details:   e.Details,
		IPAddress: e.Actor.IPAddress,
		UserAgent: e.Actor.UserAgent,
		Timestamp: time.Now().UTC(),
	}
	if e.Actor.UserID != 0 {
		uid := e.Actor.UserID
		entry.UserID = &uid
	}

	if err := s.store.Create(ctx, entry); err != nil {
		s.metrics.AuditWriteFailures.Inc()
		s.log.Error("failed to persist audit log",
			zap.Error(err),
			zap.String("action", string(e.Action)),
			zap.String("model", e.ModelName),
			zap.Uint("user_id", e.Actor.UserID),
		)
		return
	}
	s.metrics.AuditEntriesTotal.Inc()
}

// List returns one page of audit entries, 50 per page
func (s *AuditService) List(ctx context.Context, f repository.AuditFilter) ([]models.AuditLog, int64, error) {
	f.Pagination = f.Pagination.Normalize(auditPageSize)
	f.PageSize = auditPageSize
	logs, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit logs: %w", err)
	}
	return logs, total, nil
}

// Export returns the entries matching f for CSV download and records the export itself.
func (s *AuditService) Export(ctx context.Context, actor Actor, f repository.AuditFilter) ([]models.AuditLog, error) {
	logs, err := s.store.Export(ctx, f, auditExportLimit)
	if err != nil {
		return nil, fmt.Errorf("exporting audit logs: %w", err)
	}

	s.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditExport,
		ModelName: "AuditLog",
		Details:   fmt.Sprintf("Exported %d audit log entries", len(logs)),
	})
	return logs, nil
}

func uintPtr(v uint) *uint { return &v }
