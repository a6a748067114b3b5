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
)

func TestMedicationService_CatalogLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createUser(t, "admin1", models.RoleAdmin)
	svc := NewMedicationService(repository.NewMedicationRepo(env.db), env.audit, zap.NewNop())
	ctx := context.Background()

	m, err := svc.Create(ctx, admin, &models.Medication{Name: " Amoxicillin ", GenericName: "amoxicillin", Strength: "250mg", Route: "ORAL", Unit: "Capsule"})
	require.NoError(t, err)
	assert.Equal(t, "Amoxicillin", m.Name)
	assert.Equal(t, "oral", m.Route)
	assert.Equal(t, "capsule", m.Unit)
	assert.True(t, m.IsActive)

	hits, err := svc.Search(ctx, "amox")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = svc.Search(ctx, "a")
	assert.ErrorIs(t, err, ErrQueryTooShort)

	changes := *m
	changes.IsActive = false
	_, err = svc.Update(ctx, admin, m.ID, &changes)
	require.NoError(t, err)

	hits, err = svc.Search(ctx, "amox")
	require.NoError(t, err)
	assert.Empty(t, hits)

	active, total, err := svc.List(ctx, true, repository.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, active)

	all, total, err := svc.List(ctx, false, repository.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, all, 1)

	assert.Equal(t, int64(1), env.auditCount(t, models.AuditUpdate, "Medication"))
}

func TestMedicationService_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewMedicationService(repository.NewMedicationRepo(env.db), env.audit, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, Actor{}, &models.Medication{Name: "Mystery", Route: "nasal"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 2)

	_, err = svc.Update(ctx, Actor{}, 404, &models.Medication{Name: "X", Strength: "1mg"})
	assert.ErrorIs(t, err, ErrMedicationNotFound)
}
