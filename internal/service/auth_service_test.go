package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/pkg/utils"
)

func newAuthService(env *testEnv) *AuthService {
	svc := NewAuthService(
		repository.NewUserRepo(env.db),
		repository.NewSessionRepo(env.db),
		env.audit,
		zap.NewNop(),
		env.metrics,
		5,
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func loadUser(t *testing.T, env *testEnv, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, env.db.First(&u, id).Error)
	return u
}

func TestAuthService_LoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "doctor1", models.RoleDoctor)
	svc := newAuthService(env)
	ctx := context.Background()

	resp, err := svc.Login(ctx, "doctor1", "Passw0rd!", "10.0.0.9", "firefox")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.True(t, fixedNow.Add(12*time.Hour).Equal(resp.ExpiresAt))
	assert.Equal(t, models.RoleDoctor, resp.User.Role)
	assert.NotEmpty(t, resp.User.Capabilities)

	claims, err := utils.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	stored := loadUser(t, env, user.ID)
	assert.True(t, stored.IsOnline)
	assert.Equal(t, "10.0.0.9", stored.LastLoginIP)
	assert.Equal(t, int64(1), env.auditCount(t, models.AuditLogin, "User"))

	sessions, err := svc.Sessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsActive)
	assert.Equal(t, utils.HashRefreshToken(resp.RefreshToken), sessions[0].TokenHash)
}

func TestAuthService_LockoutAfterFiveFailures(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "nurse1", models.RoleNurse)
	svc := newAuthService(env)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := svc.Login(ctx, "nurse1", "wrong", "10.0.0.9", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
	}
	assert.Equal(t, 4, loadUser(t, env, user.ID).LoginAttempts)

	_, err := svc.Login(ctx, "nurse1", "wrong", "10.0.0.9", "")
	assert.ErrorIs(t, err, ErrAccountLocked)

	stored := loadUser(t, env, user.ID)
	assert.True(t, stored.AccountLocked)
	assert.Equal(t, 5, stored.LoginAttempts)

	// the right password no longer helps, and the counter stays put
	_, err = svc.Login(ctx, "nurse1", "Passw0rd!", "10.0.0.9", "")
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, 5, loadUser(t, env, user.ID).LoginAttempts)

	var attempts int64
	require.NoError(t, env.db.Model(&models.LoginAttempt{}).Where("username = ?", "nurse1").Count(&attempts).Error)
	assert.Equal(t, int64(6), attempts)
}

func TestAuthService_SuccessResetsCounter(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "nurse1", models.RoleNurse)
	svc := newAuthService(env)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "nurse1", "wrong", "", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := svc.Login(ctx, "nurse1", "Passw0rd!", "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, loadUser(t, env, user.ID).LoginAttempts)
}

func TestAuthService_UnknownAndInactiveUsers(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "retired", models.RoleNurse)
	require.NoError(t, env.db.Model(user).Update("is_active", false).Error)
	svc := newAuthService(env)
	ctx := context.Background()

	_, err := svc.Login(ctx, "ghost", "whatever", "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "retired", "Passw0rd!", "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	env := newTestEnv(t)
	user, actor := env.createUser(t, "admin1", models.RoleAdmin)
	svc := newAuthService(env)
	ctx := context.Background()

	resp, err := svc.Login(ctx, "admin1", "Passw0rd!", "", "")
	require.NoError(t, err)

	token, err := svc.RefreshAccessToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.RefreshAccessToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Logout(ctx, actor, resp.RefreshToken))
	assert.False(t, loadUser(t, env, user.ID).IsOnline)

	_, err = svc.RefreshAccessToken(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, int64(1), env.auditCount(t, models.AuditLogout, "User"))
}

func TestAuthService_RefreshRejectsLockedUser(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "nurse1", models.RoleNurse)
	svc := newAuthService(env)
	ctx := context.Background()

	resp, err := svc.Login(ctx, "nurse1", "Passw0rd!", "", "")
	require.NoError(t, err)

	require.NoError(t, env.db.Model(user).Update("account_locked", true).Error)
	_, err = svc.RefreshAccessToken(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Me(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "pharm1", models.RolePharmacist)
	svc := newAuthService(env)

	me, err := svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "pharm1", me.Username)
	assert.Equal(t, "Test pharmacist", me.FullName)

	_, err = svc.Me(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
