package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"hms-backend/internal/models"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new login session
func (r *SessionRepository) Create(ctx context.Context, s *models.UserSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// FindActiveByHash finds an open, unexpired session by refresh token hash
func (r *SessionRepository) FindActiveByHash(ctx context.Context, hash string, now time.Time) (*models.UserSession, error) {
	var s models.UserSession
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND is_active = ? AND expires_at > ?", hash, true, now).
		Preload("User").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Close ends a session. Closing an already closed session is a no-op.
func (r *SessionRepository) Close(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "logout_time": at}).Error
}

// CloseExpired ends every open session whose refresh token has expired
func (r *SessionRepository) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Updates(map[string]interface{}{"is_active": false, "logout_time": now})
	return res.RowsAffected, res.Error
}

// ListForUser returns a user's most recent sessions
func (r *SessionRepository) ListForUser(ctx context.Context, userID uint, limit int) ([]models.UserSession, error) {
	var sessions []models.UserSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("login_time DESC").Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// CountActive returns all open sessions, used for the dashboard
func (r *SessionRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserSession{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}
