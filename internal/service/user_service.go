package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/pkg/utils"
)

const minPasswordLength = 8

// NewUser is the input for creating a staff account.
type NewUser struct {
	Username    string
	Password    string
	FirstName   string
	LastName    string
	Email       string
	Role        models.Role
	EmployeeID  string
	Department  string
	PhoneNumber string
}

type UserService struct {
	users *repository.UserRepository
	audit *AuditService
	log   *zap.Logger
}

func NewUserService(users *repository.UserRepository, audit *AuditService, log *zap.Logger) *UserService {
	return &UserService{users: users, audit: audit, log: log}
}

// List returns staff accounts, optionally only those with role
func (s *UserService) List(ctx context.Context, role models.Role) ([]models.User, error) {
	if role != "" && !role.IsValid() {
		return nil, &ValidationError{Fields: []string{fmt.Sprintf("unknown role %q", role)}}
	}
	return s.users.ListUsers(ctx, role)
}

// Create adds a staff account with a bcrypt hashed password
func (s *UserService) Create(ctx context.Context, actor Actor, in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.EmployeeID = strings.TrimSpace(in.EmployeeID)

	var errs []string
	if in.Username == "" {
		errs = append(errs, "username is required")
	}
	if len(in.Password) < minPasswordLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if !in.Role.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown role %q", in.Role))
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if _, err := s.users.FindUserByUsername(ctx, in.Username); err == nil {
		return nil, ErrDuplicateUser
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("checking username: %w", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Role:         in.Role,
		Department:   strings.TrimSpace(in.Department),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		IsActive:     true,
	}
	if in.EmployeeID != "" {
		user.EmployeeID = &in.EmployeeID
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.log.Info("user created", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "User",
		ObjectID:  uintPtr(user.ID),
		Details:   fmt.Sprintf("Created %s account %s", user.Role, user.Username),
	})
	return user, nil
}

// Unlock clears the lockout flag and failure counter of an account
func (s *UserService) Unlock(ctx context.Context, actor Actor, id uint) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return s.unlock(ctx, actor, user)
}

// UnlockByUsername is Unlock for callers that only know the username
func (s *UserService) UnlockByUsername(ctx context.Context, actor Actor, username string) (*models.User, error) {
	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return s.unlock(ctx, actor, user)
}

func (s *UserService) unlock(ctx context.Context, actor Actor, user *models.User) (*models.User, error) {
	if err := s.users.Unlock(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("unlocking user: %w", err)
	}
	user.AccountLocked = false
	user.LoginAttempts = 0

	s.log.Info("user unlocked", zap.String("username", user.Username), zap.Uint("by", actor.UserID))
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditUpdate,
		ModelName: "User",
		ObjectID:  uintPtr(user.ID),
		Details:   fmt.Sprintf("Unlocked account %s", user.Username),
	})
	return user, nil
}
