package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"hms-backend/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindUserByUsername finds a user by username
func (r *UserRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID finds a user by primary key
func (r *UserRepository) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// ListUsers returns staff ordered by username, optionally filtered by role
func (r *UserRepository) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	q := r.db.WithContext(ctx).Order("username ASC")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []models.User
	err := q.Find(&users).Error
	return users, err
}

// RecordFailedLogin bumps the failure counter and locks the account once it
// reaches threshold. The increment is a single UPDATE, which takes the row
// lock, so concurrent failures are never lost.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, userID uint, threshold int) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("login_attempts", gorm.Expr("login_attempts + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		if user.LoginAttempts >= threshold && !user.AccountLocked {
			user.AccountLocked = true
			return tx.Model(&user).Update("account_locked", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RecordSuccessfulLogin resets the failure counter and marks the user online
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, userID uint, ip string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"login_attempts": 0,
			"is_online":      true,
			"last_login_ip":  ip,
		}).Error
}

// SetOffline clears the online flag
func (r *UserRepository) SetOffline(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("is_online", false).Error
}

// Unlock clears the lock flag and the failure counter
func (r *UserRepository) Unlock(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"login_attempts": 0,
			"account_locked": false,
		}).Error
}

// CreateLoginAttempt records one login attempt, successful or not
func (r *UserRepository) CreateLoginAttempt(ctx context.Context, username, ip string, ok bool) error {
	return r.db.WithContext(ctx).Create(&models.LoginAttempt{
		Username:      username,
		IPAddress:     ip,
		WasSuccessful: ok,
		Timestamp:     time.Now().UTC(),
	}).Error
}
