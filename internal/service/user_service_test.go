package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/pkg/utils"
)

func newUserService(env *testEnv) *UserService {
	return NewUserService(repository.NewUserRepo(env.db), env.audit, zap.NewNop())
}

func TestUserService_Create(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createUser(t, "admin1", models.RoleAdmin)
	svc := newUserService(env)
	ctx := context.Background()

	u, err := svc.Create(ctx, admin, NewUser{
		Username:   " pharm2 ",
		Password:   "s3cretPass",
		FirstName:  "Faith",
		Email:      "Faith@Hospital.ke",
		Role:       models.RolePharmacist,
		EmployeeID: "EMP-0042",
	})
	require.NoError(t, err)
	assert.Equal(t, "pharm2", u.Username)
	assert.Equal(t, "faith@hospital.ke", u.Email)
	assert.True(t, u.IsActive)
	require.NotNil(t, u.EmployeeID)
	assert.True(t, utils.ComparePassword(u.PasswordHash, "s3cretPass"))
	assert.Equal(t, int64(1), env.auditCount(t, models.AuditCreate, "User"))

	_, err = svc.Create(ctx, admin, NewUser{Username: "pharm2", Password: "another-pass", Role: models.RoleNurse})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	_, err = svc.Create(ctx, admin, NewUser{Username: "pharm3", Password: "another-pass", Role: models.RoleNurse, EmployeeID: "EMP-0042"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestUserService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(env)

	_, err := svc.Create(context.Background(), Actor{}, NewUser{Username: "", Password: "short", Role: "janitor"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
}

func TestUserService_List(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "doctor1", models.RoleDoctor)
	env.createUser(t, "doctor2", models.RoleDoctor)
	env.createUser(t, "nurse1", models.RoleNurse)
	svc := newUserService(env)
	ctx := context.Background()

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	doctors, err := svc.List(ctx, models.RoleDoctor)
	require.NoError(t, err)
	assert.Len(t, doctors, 2)

	_, err = svc.List(ctx, "surgeon")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestUserService_Unlock(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createUser(t, "admin1", models.RoleAdmin)
	locked, _ := env.createUser(t, "nurse1", models.RoleNurse)
	require.NoError(t, env.db.Model(locked).Updates(map[string]interface{}{
		"account_locked": true,
		"login_attempts": 5,
	}).Error)
	svc := newUserService(env)
	ctx := context.Background()

	u, err := svc.Unlock(ctx, admin, locked.ID)
	require.NoError(t, err)
	assert.False(t, u.AccountLocked)

	var stored models.User
	require.NoError(t, env.db.First(&stored, locked.ID).Error)
	assert.False(t, stored.AccountLocked)
	assert.Zero(t, stored.LoginAttempts)

	// the account can log in again
	auth := newAuthService(env)
	_, err = auth.Login(ctx, "nurse1", "Passw0rd!", "", "")
	assert.NoError(t, err)

	_, err = svc.Unlock(ctx, admin, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.UnlockByUsername(ctx, admin, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.UnlockByUsername(ctx, admin, " nurse1 ")
	assert.NoError(t, err)
}
