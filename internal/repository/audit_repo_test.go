package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hms-backend/internal/models"
	"hms-backend/internal/testutil"
)

func TestAuditRepository_AppendOnly(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAuditRepo(db)
	ctx := context.Background()

	entry := &models.AuditLog{Action: models.AuditView, ModelName: "Patient", Details: "Viewed patient"}
	require.NoError(t, repo.Create(ctx, entry))
	require.NotZero(t, entry.ID)

	entry.Details = "tampered"
	assert.ErrorIs(t, db.Save(entry).Error, models.ErrAuditImmutable)
	assert.ErrorIs(t, db.Delete(entry).Error, models.ErrAuditImmutable)

	var stored models.AuditLog
	require.NoError(t, db.First(&stored, entry.ID).Error)
	assert.Equal(t, "Viewed patient", stored.Details)
}

func TestAuditRepository_ListFilters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAuditRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []models.AuditAction{models.AuditLogin, models.AuditView, models.AuditView, models.AuditCreate} {
		require.NoError(t, repo.Create(ctx, &models.AuditLog{
			Action:    action,
			ModelName: "Patient",
			Timestamp: base.AddDate(0, 0, i),
		}))
	}

	logs, total, err := repo.List(ctx, AuditFilter{Action: models.AuditView, Pagination: Pagination{Page: 1, PageSize: 50}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)
	assert.True(t, logs[0].Timestamp.After(logs[1].Timestamp))

	logs, total, err = repo.List(ctx, AuditFilter{
		From:       base.AddDate(0, 0, 2),
		Pagination: Pagination{Page: 1, PageSize: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)

	exported, err := repo.Export(ctx, AuditFilter{}, 3)
	require.NoError(t, err)
	assert.Len(t, exported, 3)
}

func TestSessionRepository_CloseExpired(t *testing.T) {
	db := testutil.NewDB(t)
	users := NewUserRepo(db)
	sessions := NewSessionRepo(db)
	ctx := context.Background()

	u := &models.User{Username: "nurse1", PasswordHash: "x", Role: models.RoleNurse, IsActive: true}
	require.NoError(t, users.CreateUser(ctx, u))

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, sessions.Create(ctx, &models.UserSession{
		UserID: u.ID, TokenHash: "expired", LoginTime: now.Add(-13 * time.Hour), ExpiresAt: now.Add(-time.Hour), IsActive: true,
	}))
	require.NoError(t, sessions.Create(ctx, &models.UserSession{
		UserID: u.ID, TokenHash: "live", LoginTime: now, ExpiresAt: now.Add(12 * time.Hour), IsActive: true,
	}))

	closed, err := sessions.CloseExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	active, err := sessions.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	_, err = sessions.FindActiveByHash(ctx, "expired", now)
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := sessions.FindActiveByHash(ctx, "live", now)
	require.NoError(t, err)
	require.NotNil(t, s.User)
	assert.Equal(t, "nurse1", s.User.Username)
}
