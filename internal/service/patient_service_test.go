package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hms-backend/internal/models"
)

func TestPatientService_RegisterAllocatesSequentialMRNs(t *testing.T) {
	env := newTestEnv(t)
	_, actor := env.createUser(t, "records1", models.RoleRecordsOfficer)
	svc := env.patientService()
	ctx := context.Background()

	first, err := svc.Register(ctx, actor, newPatient("Jane", "Chebet"))
	require.NoError(t, err)
	assert.Equal(t, "BCH-2026-00001", first.MRN)
	assert.True(t, first.IsActive)
	assert.Equal(t, "UNKNOWN", first.BloodGroup)
	assert.Equal(t, "Baringo", first.County)
	require.NotNil(t, first.CreatedByID)
	assert.Equal(t, actor.UserID, *first.CreatedByID)

	second, err := svc.Register(ctx, actor, newPatient("John", "Kiprop"))
	require.NoError(t, err)
	assert.Equal(t, "BCH-2026-00002", second.MRN)

	assert.Equal(t, int64(2), env.auditCount(t, models.AuditCreate, "Patient"))
}

func TestPatientService_RegisterRecoversFromCounterDrift(t *testing.T) {
	env := newTestEnv(t)
	_, actor := env.createUser(t, "records1", models.RoleRecordsOfficer)
	svc := env.patientService()
	ctx := context.Background()

	_, err := svc.Register(ctx, actor, newPatient("Jane", "Chebet"))
	require.NoError(t, err)

	// a row written behind the counter's back
	imported := newPatient("Imported", "Record")
	imported.MRN = "BCH-2026-00002"
	imported.IsActive = true
	require.NoError(t, env.db.Create(imported).Error)

	p, err := svc.Register(ctx, actor, newPatient("John", "Kiprop"))
	require.NoError(t, err)
	assert.Equal(t, "BCH-2026-00003", p.MRN)
}

func TestPatientService_ConcurrentRegistrationsGetDistinctMRNs(t *testing.T) {
	env := newTestEnv(t)
	_, actor := env.createUser(t, "records1", models.RoleRecordsOfficer)
	svc := env.patientService()
	ctx := context.Background()

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		mrns = make(map[string]bool, n)
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := svc.Register(ctx, actor, newPatient("Patient", fmt.Sprintf("Number%d", i)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			mrns[p.MRN] = true
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, mrns, n)
	for seq := 1; seq <= n; seq++ {
		assert.True(t, mrns[fmt.Sprintf("BCH-2026-%05d", seq)], "missing sequence %d", seq)
	}
	assert.Equal(t, float64(0), promtest.ToFloat64(env.metrics.MRNAllocationRetries))

	var count int64
	require.NoError(t, env.db.Model(&models.Patient{}).Count(&count).Error)
	assert.Equal(t, int64(n), count)
}

func TestPatientService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.patientService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(p *models.Patient)
	}{
		{"missing first name", func(p *models.Patient) { p.FirstName = "  " }},
		{"missing last name", func(p *models.Patient) { p.LastName = "" }},
		{"future birth date", func(p *models.Patient) { p.DateOfBirth = fixedNow.AddDate(0, 0, 1) }},
		{"bad gender", func(p *models.Patient) { p.Gender = "X" }},
		{"bad blood group", func(p *models.Patient) { p.BloodGroup = "C+" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPatient("Jane", "Chebet")
			tt.mutate(p)

			_, err := svc.Register(ctx, Actor{}, p)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestPatientService_DuplicateNationalID(t *testing.T) {
	env := newTestEnv(t)
	svc := env.patientService()
	ctx := context.Background()

	id := "12345678"
	p := newPatient("Jane", "Chebet")
	p.NationalID = &id
	_, err := svc.Register(ctx, Actor{}, p)
	require.NoError(t, err)

	dup := newPatient("Janet", "Chebet")
	other := " 12345678 "
	dup.NationalID = &other
	_, err = svc.Register(ctx, Actor{}, dup)
	assert.ErrorIs(t, err, ErrDuplicateNationalID)

	blank := newPatient("Mary", "Jepkosgei")
	empty := "  "
	blank.NationalID = &empty
	registered, err := svc.Register(ctx, Actor{}, blank)
	require.NoError(t, err)
	assert.Nil(t, registered.NationalID)
}

func TestPatientService_UpdateKeepsMRN(t *testing.T) {
	env := newTestEnv(t)
	svc := env.patientService()
	ctx := context.Background()

	p, err := svc.Register(ctx, Actor{}, newPatient("Jane", "Chebet"))
	require.NoError(t, err)

	changes := newPatient("Jane", "Kiptoo")
	changes.MRN = "BCH-1999-99999"
	changes.BloodGroup = "o+"

	updated, err := svc.Update(ctx, Actor{}, p.MRN, changes)
	require.NoError(t, err)
	assert.Equal(t, p.MRN, updated.MRN)

	stored, err := svc.Get(ctx, Actor{}, p.MRN)
	require.NoError(t, err)
	assert.Equal(t, "Kiptoo", stored.LastName)
	assert.Equal(t, "O+", stored.BloodGroup)
}

func TestPatientService_DeactivateHidesPatient(t *testing.T) {
	env := newTestEnv(t)
	svc := env.patientService()
	ctx := context.Background()

	p, err := svc.Register(ctx, Actor{}, newPatient("Jane", "Chebet"))
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, Actor{}, p.MRN))

	_, err = svc.Get(ctx, Actor{}, p.MRN)
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.ErrorIs(t, svc.Deactivate(ctx, Actor{}, p.MRN), ErrPatientNotFound)

	var row models.Patient
	require.NoError(t, env.db.Where("mrn = ?", p.MRN).First(&row).Error)
	assert.False(t, row.IsActive)
}

func TestPatientService_QuickSearch(t *testing.T) {
	env := newTestEnv(t)
	svc := env.patientService()
	ctx := context.Background()

	_, err := svc.QuickSearch(ctx, " a ")
	assert.ErrorIs(t, err, ErrQueryTooShort)

	_, err = svc.Register(ctx, Actor{}, newPatient("Jane", "Chebet"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, Actor{}, newPatient("John", "Kiprop"))
	require.NoError(t, err)

	hits, err := svc.QuickSearch(ctx, "Chebet")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Jane", hits[0].FirstName)

	hits, err = svc.QuickSearch(ctx, "BCH-2026")
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestPatientService_LastVitals(t *testing.T) {
	env := newTestEnv(t)
	_, doctor := env.createUser(t, "doctor1", models.RoleDoctor)
	patients := env.patientService()
	consultations := env.consultationService()
	ctx := context.Background()

	p, err := patients.Register(ctx, Actor{}, newPatient("Jane", "Chebet"))
	require.NoError(t, err)

	vitals, err := patients.LastVitals(ctx, p.MRN)
	require.NoError(t, err)
	assert.Nil(t, vitals)

	c := newConsultation()
	hr, weight, temp := 88, 64.5, 38.2
	c.HeartRate = &hr
	c.Weight = &weight
	c.Temperature = &temp
	_, err = consultations.Create(ctx, doctor, p.MRN, c)
	require.NoError(t, err)

	vitals, err = patients.LastVitals(ctx, p.MRN)
	require.NoError(t, err)
	require.NotNil(t, vitals)
	require.NotNil(t, vitals.HeartRate)
	assert.Equal(t, 88, *vitals.HeartRate)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), vitals.RecordedOn.Format("2006-01-02"))
}
