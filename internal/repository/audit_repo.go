package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"hms-backend/internal/models"
)

// AuditFilter narrows the audit listing. Zero values match everything.
type AuditFilter struct {
	UserID *uint
	Action models.AuditAction
	From   time.Time
	To     time.Time
	Pagination
}

// AuditRepository is append-only: it exposes no update or delete.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit log entry
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) filtered(ctx context.Context, f AuditFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if !f.From.IsZero() {
		q = q.Where("timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("timestamp < ?", f.To)
	}
	return q
}

// List returns one page of entries, newest first
func (r *AuditRepository) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	err := r.filtered(ctx, f).
		Preload("User").
		Order("timestamp DESC").Order("id DESC").
		Offset(f.Offset()).Limit(f.PageSize).
		Find(&logs).Error
	return logs, total, err
}

// Export returns up to limit matching entries for CSV download
func (r *AuditRepository) Export(ctx context.Context, f AuditFilter, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.filtered(ctx, f).
		Preload("User").
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
