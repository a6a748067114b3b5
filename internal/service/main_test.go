package service

import (
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/internal/testutil"
	"hms-backend/pkg/metrics"
	"hms-backend/pkg/utils"
)

func TestMain(m *testing.M) {
	utils.BcryptCost = 4
	utils.InitJWT("test-access-secret", "test-refresh-secret", 15*time.Minute, 12*time.Hour)
	os.Exit(m.Run())
}

// fixedNow is the wall clock every service test runs at
var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	db      *gorm.DB
	metrics *metrics.Collector
	audit   *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	m := metrics.NewCollector("hms", prometheus.NewRegistry())
	return &testEnv{
		db:      db,
		metrics: m,
		audit:   NewAuditService(repository.NewAuditRepo(db), zap.NewNop(), m),
	}
}

func (e *testEnv) createUser(t *testing.T, username string, role models.Role) (*models.User, Actor) {
	t.Helper()
	hash, err := utils.HashPassword("Passw0rd!")
	require.NoError(t, err)

	u := &models.User{
		Username:     username,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     string(role),
		Role:         role,
		Department:   "Outpatient",
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u, Actor{UserID: u.ID, Role: role, IPAddress: "10.0.0.5", UserAgent: "test"}
}

func (e *testEnv) auditCount(t *testing.T, action models.AuditAction, model string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.AuditLog{}).
		Where("action = ? AND model_name = ?", action, model).
		Count(&n).Error)
	return n
}

func (e *testEnv) patientService() *PatientService {
	svc := NewPatientService(
		e.db,
		repository.NewPatientRepo(e.db),
		repository.NewMRNRepo(e.db),
		repository.NewConsultationRepo(e.db),
		e.audit,
		zap.NewNop(),
		e.metrics,
		PatientServiceConfig{MRNPrefix: "BCH", Location: time.UTC},
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (e *testEnv) consultationService() *ConsultationService {
	svc := NewConsultationService(
		repository.NewConsultationRepo(e.db),
		repository.NewLabOrderRepo(e.db),
		repository.NewPatientRepo(e.db),
		e.audit,
		zap.NewNop(),
		e.metrics,
		time.UTC,
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (e *testEnv) prescriptionService() *PrescriptionService {
	svc := NewPrescriptionService(
		e.db,
		repository.NewPrescriptionRepo(e.db),
		repository.NewConsultationRepo(e.db),
		repository.NewMedicationRepo(e.db),
		e.audit,
		zap.NewNop(),
		e.metrics,
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func newPatient(first, last string) *models.Patient {
	return &models.Patient{
		FirstName:   first,
		LastName:    last,
		DateOfBirth: time.Date(1988, 7, 14, 0, 0, 0, 0, time.UTC),
		Gender:      models.GenderFemale,
		PhoneNumber: "+254712345678",
	}
}

func newConsultation() *models.Consultation {
	return &models.Consultation{
		ChiefComplaint: "Headache and fever for three days",
		Diagnosis:      "Malaria",
	}
}

func (e *testEnv) createMedication(t *testing.T, name string, active bool) *models.Medication {
	t.Helper()
	m := &models.Medication{Name: name, Strength: "500mg", Unit: "tablet", Route: "oral", IsActive: true}
	require.NoError(t, e.db.Create(m).Error)
	if !active {
		require.NoError(t, e.db.Model(m).Update("is_active", false).Error)
		m.IsActive = false
	}
	return m
}

func itemFor(med *models.Medication) models.PrescriptionItem {
	return models.PrescriptionItem{
		MedicationID: med.ID,
		Dosage:       "1 tablet",
		Frequency:    "TDS",
		Duration:     5,
		Quantity:     15,
	}
}
