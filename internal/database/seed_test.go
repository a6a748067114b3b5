package database_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hms-backend/internal/database"
	"hms-backend/internal/models"
	"hms-backend/internal/testutil"
	"hms-backend/pkg/utils"
)

func TestMain(m *testing.M) {
	utils.BcryptCost = 4
	os.Exit(m.Run())
}

func TestSeed(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, database.Seed(db, zap.NewNop()))
	// second run leaves existing rows alone
	require.NoError(t, database.Seed(db, zap.NewNop()))

	var users, meds int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Medication{}).Where("is_active = ?", true).Count(&meds).Error)
	assert.Equal(t, int64(6), users)
	assert.Equal(t, int64(10), meds)

	var admin models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.IsActive)
	assert.True(t, utils.ComparePassword(admin.PasswordHash, "Admin@2026"))
}

func TestGormConfig_TranslatesErrors(t *testing.T) {
	cfg := database.GormConfig("release")
	assert.True(t, cfg.TranslateError)
}
