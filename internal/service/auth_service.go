package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"hms-backend/internal/access"
	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/pkg/metrics"
	"hms-backend/pkg/utils"
)

var tracer = otel.Tracer("hms-backend/service")

type AuthService struct {
	userRepo         *repository.UserRepository
	sessionRepo      *repository.SessionRepository
	audit            *AuditService
	log              *zap.Logger
	metrics          *metrics.Collector
	lockoutThreshold int
	now              func() time.Time
}

func NewAuthService(
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
	audit *AuditService,
	log *zap.Logger,
	m *metrics.Collector,
	lockoutThreshold int,
) *AuthService {
	return &AuthService{
		userRepo:         userRepo,
		sessionRepo:      sessionRepo,
		audit:            audit,
		log:              log,
		metrics:          m,
		lockoutThreshold: lockoutThreshold,
		now:              time.Now,
	}
}

// LoginResponse represents the response structure for login
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"-"`
	ExpiresAt    time.Time    `json:"-"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID           uint                `json:"id"`
	Username     string              `json:"username"`
	FullName     string              `json:"full_name"`
	Role         models.Role         `json:"role"`
	Department   string              `json:"department,omitempty"`
	Capabilities []access.Capability `json:"capabilities"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		FullName:     u.FullName(),
		Role:         u.Role,
		Department:   u.Department,
		Capabilities: access.Capabilities(u.Role),
	}
}

// Login authenticates a user and opens a session.
//
// A locked account is refused before the password is checked. Each wrong
// password increments the failure counter and the account locks when the
// counter reaches the threshold. A successful login resets the counter.
func (s *AuthService) Login(ctx context.Context, username, password, ip, userAgent string) (*LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.userRepo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordAttempt(ctx, username, ip, false, "unknown_user")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	span.SetAttributes(attribute.Int("user.id", int(user.ID)))

	if user.AccountLocked {
		s.recordAttempt(ctx, username, ip, false, "locked")
		return nil, ErrAccountLocked
	}

	if !user.IsActive {
		s.recordAttempt(ctx, username, ip, false, "inactive")
		return nil, ErrInvalidCredentials
	}

	if !utils.ComparePassword(user.PasswordHash, password) {
		updated, err := s.userRepo.RecordFailedLogin(ctx, user.ID, s.lockoutThreshold)
		if err != nil {
			return nil, fmt.Errorf("recording failed login: %w", err)
		}
		s.recordAttempt(ctx, username, ip, false, "bad_password")

		if updated.AccountLocked {
			s.log.Warn("account locked after repeated failed logins",
				zap.String("username", username),
				zap.Int("attempts", updated.LoginAttempts),
				zap.String("ip", ip),
			)
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	accessToken, err := utils.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now().UTC()
	session := &models.UserSession{
		UserID:    user.ID,
		TokenHash: utils.HashRefreshToken(refreshToken),
		IPAddress: ip,
		UserAgent: userAgent,
		LoginTime: now,
		ExpiresAt: now.Add(utils.GetRefreshTokenExpiry()),
		IsActive:  true,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	if err := s.userRepo.RecordSuccessfulLogin(ctx, user.ID, ip); err != nil {
		return nil, fmt.Errorf("updating login state: %w", err)
	}
	s.recordAttempt(ctx, username, ip, true, "success")

	s.audit.Record(ctx, AuditEntry{
		Actor:     Actor{UserID: user.ID, Role: user.Role, IPAddress: ip, UserAgent: userAgent},
		Action:    models.AuditLogin,
		ModelName: "User",
		ObjectID:  uintPtr(user.ID),
		Details:   fmt.Sprintf("User %s logged in", username),
	})

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    session.ExpiresAt,
		User:         toUserResponse(user),
	}, nil
}

func (s *AuthService) recordAttempt(ctx context.Context, username, ip string, ok bool, outcome string) {
	s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	if err := s.userRepo.CreateLoginAttempt(ctx, username, ip, ok); err != nil {
		s.log.Error("failed to record login attempt", zap.Error(err), zap.String("username", username))
	}
}

// RefreshAccessToken issues a new access token for an open session
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	session, err := s.sessionRepo.FindActiveByHash(ctx, utils.HashRefreshToken(refreshToken), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("finding session: %w", err)
	}

	if session.User == nil || !session.User.IsActive || session.User.AccountLocked {
		return "", ErrInvalidToken
	}

	accessToken, err := utils.GenerateAccessToken(session.User)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, nil
}

// Logout closes the session bound to the refresh token and marks the user offline
func (s *AuthService) Logout(ctx context.Context, actor Actor, refreshToken string) error {
	if refreshToken != "" {
		session, err := s.sessionRepo.FindActiveByHash(ctx, utils.HashRefreshToken(refreshToken), s.now().UTC())
		switch {
		case err == nil:
			if err := s.sessionRepo.Close(ctx, session.ID, s.now().UTC()); err != nil {
				return fmt.Errorf("closing session: %w", err)
			}
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("finding session: %w", err)
		}
	}

	if err := s.userRepo.SetOffline(ctx, actor.UserID); err != nil {
		return fmt.Errorf("updating online status: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditLogout,
		ModelName: "User",
		ObjectID:  uintPtr(actor.UserID),
		Details:   "User logged out",
	})
	return nil
}

// Me returns the profile of the authenticated user
func (s *AuthService) Me(ctx context.Context, userID uint) (*UserResponse, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// Sessions lists the user's recent login sessions
func (s *AuthService) Sessions(ctx context.Context, userID uint) ([]models.UserSession, error) {
	return s.sessionRepo.ListForUser(ctx, userID, 20)
}
