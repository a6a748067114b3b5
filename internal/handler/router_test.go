package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hms-backend/internal/config"
	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/internal/service"
	"hms-backend/internal/testutil"
	"hms-backend/pkg/metrics"
	"hms-backend/pkg/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.BcryptCost = 4
	utils.InitJWT("handler-access-secret", "handler-refresh-secret", 15*time.Minute, 12*time.Hour)
	if err := RegisterValidators(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	m := metrics.NewCollector("hms", prometheus.NewRegistry())

	cfg := &config.Config{
		Server:   config.ServerConfig{GinMode: gin.TestMode},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Tracing:  config.TracingConfig{ServiceName: "hms-test"},
		Hospital: config.HospitalConfig{MRNPrefix: "BCH", Timezone: "UTC"},
		Security: config.SecurityConfig{LockoutThreshold: 5, LoginRatePerMinute: 100},
	}

	userRepo := repository.NewUserRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	patientRepo := repository.NewPatientRepo(db)
	consultationRepo := repository.NewConsultationRepo(db)
	medicationRepo := repository.NewMedicationRepo(db)
	audit := service.NewAuditService(repository.NewAuditRepo(db), log, m)

	router := NewRouter(Deps{
		Config:  cfg,
		Log:     log,
		Metrics: m,
		DB:      db,
		Auth:    service.NewAuthService(userRepo, sessionRepo, audit, log, m, cfg.Security.LockoutThreshold),
		Patients: service.NewPatientService(db, patientRepo, repository.NewMRNRepo(db), consultationRepo, audit, log, m,
			service.PatientServiceConfig{MRNPrefix: "BCH", Location: time.UTC}),
		Consultations: service.NewConsultationService(consultationRepo, repository.NewLabOrderRepo(db), patientRepo, audit, log, m, time.UTC),
		Prescriptions: service.NewPrescriptionService(db, repository.NewPrescriptionRepo(db), consultationRepo, medicationRepo, audit, log, m),
		Medications:   service.NewMedicationService(medicationRepo, audit, log),
		Reports:       service.NewReportService(repository.NewReportRepo(db), patientRepo, sessionRepo, audit, log, time.UTC),
		Audit:         audit,
		Users:         service.NewUserService(userRepo, audit, log),
	})

	return &testServer{t: t, db: db, router: router}
}

// staff creates an account with the given role and returns a bearer token for it
func (s *testServer) staff(username string, role models.Role) string {
	s.t.Helper()
	hash, err := utils.HashPassword("Passw0rd!")
	require.NoError(s.t, err)
	u := &models.User{Username: username, PasswordHash: hash, Role: role, IsActive: true}
	require.NoError(s.t, s.db.Create(u).Error)

	token, err := utils.GenerateAccessToken(u)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Fields  []string        `json:"fields"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func patientBody() gin.H {
	return gin.H{
		"first_name":    "Jane",
		"last_name":     "Chebet",
		"date_of_birth": "1988-07-14",
		"gender":        "F",
		"phone_number":  "+254712345678",
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/v1/patients", "/api/v1/reports/dashboard", "/api/v1/audit-logs", "/api/v1/auth/me"} {
		w := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)
	pharmacist := s.staff("pharm1", models.RolePharmacist)
	nurse := s.staff("nurse1", models.RoleNurse)
	receptionist := s.staff("recep1", models.RoleReceptionist)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/patients", pharmacist, patientBody()).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/patients", pharmacist, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/reports/dashboard", nurse, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/audit-logs", nurse, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users", nurse, nil).Code)

	// reception may register but not browse records
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/patients", receptionist, patientBody()).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/patients/BCH-2026-00001", receptionist, nil).Code)
}

func TestPatientRegistrationAndLookup(t *testing.T) {
	s := newTestServer(t)
	officer := s.staff("records1", models.RoleRecordsOfficer)

	w := s.do(http.MethodPost, "/api/v1/patients", officer, patientBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		MRN      string `json:"mrn"`
		FullName string `json:"full_name"`
		Age      int    `json:"age"`
		County   string `json:"county"`
	}
	decode(t, w, &created)
	assert.True(t, strings.HasPrefix(created.MRN, "BCH-"), created.MRN)
	assert.True(t, strings.HasSuffix(created.MRN, "-00001"), created.MRN)
	assert.Equal(t, "Jane Chebet", created.FullName)
	assert.Equal(t, "Baringo", created.County)
	assert.Greater(t, created.Age, 30)

	w = s.do(http.MethodGet, "/api/v1/patients/"+created.MRN, officer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/patients/BCH-1999-00042", officer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/patients?q=Chebet&type=name", officer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	decode(t, w, &list)
	assert.Len(t, list, 1)

	var views int64
	require.NoError(t, s.db.Model(&models.AuditLog{}).Where("action = ?", models.AuditView).Count(&views).Error)
	assert.Equal(t, int64(2), views)
}

func TestPatientRegistrationValidation(t *testing.T) {
	s := newTestServer(t)
	officer := s.staff("records1", models.RoleRecordsOfficer)

	tests := []struct {
		name  string
		field string
		value any
	}{
		{"non kenyan phone", "phone_number", "0712345678"},
		{"bad gender", "gender", "X"},
		{"bad date", "date_of_birth", "14/07/1988"},
		{"bad blood group", "blood_group", "C+"},
		{"non numeric national id", "national_id", "AB123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := patientBody()
			body[tt.field] = tt.value
			w := s.do(http.MethodPost, "/api/v1/patients", officer, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	body := patientBody()
	body["date_of_birth"] = time.Now().AddDate(0, 0, 5).Format(dateLayout)
	w := s.do(http.MethodPost, "/api/v1/patients", officer, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	assert.Contains(t, env.Fields, "date_of_birth cannot be in the future")
}

func TestLoginFlow(t *testing.T) {
	s := newTestServer(t)
	s.staff("doctor1", models.RoleDoctor)

	w := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "doctor1", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	decode(t, w, &login)
	assert.NotEmpty(t, login.AccessToken)
	assert.Equal(t, 900, login.ExpiresIn)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "refresh_token=")
	assert.Contains(t, w.Header().Get("Set-Cookie"), "HttpOnly")

	w = s.do(http.MethodGet, "/api/v1/auth/me", login.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "doctor1"}).Code)
}

func TestLoginLockout(t *testing.T) {
	s := newTestServer(t)
	s.staff("nurse1", models.RoleNurse)
	bad := gin.H{"username": "nurse1", "password": "wrong"}

	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/auth/login", "", bad).Code)
	}
	assert.Equal(t, http.StatusLocked, s.do(http.MethodPost, "/api/v1/auth/login", "", bad).Code)

	good := gin.H{"username": "nurse1", "password": "Passw0rd!"}
	assert.Equal(t, http.StatusLocked, s.do(http.MethodPost, "/api/v1/auth/login", "", good).Code)
}

func TestDispenseOverHTTP(t *testing.T) {
	s := newTestServer(t)
	officer := s.staff("records1", models.RoleRecordsOfficer)
	doctor := s.staff("doctor1", models.RoleDoctor)
	pharmacist := s.staff("pharm1", models.RolePharmacist)

	med := &models.Medication{Name: "Paracetamol", Strength: "500mg", Unit: "tablet", Route: "oral", IsActive: true}
	require.NoError(t, s.db.Create(med).Error)

	var patient struct {
		MRN string `json:"mrn"`
	}
	w := s.do(http.MethodPost, "/api/v1/patients", officer, patientBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &patient)

	var consultation models.Consultation
	w = s.do(http.MethodPost, "/api/v1/patients/"+patient.MRN+"/consultations", doctor, gin.H{
		"chief_complaint": "Fever",
		"diagnosis":       "Malaria",
		"temperature":     38.5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &consultation)

	// vitals outside physiological ranges are refused at the edge
	w = s.do(http.MethodPost, "/api/v1/patients/"+patient.MRN+"/consultations", doctor, gin.H{
		"chief_complaint": "Fever",
		"diagnosis":       "Malaria",
		"heart_rate":      300,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rxPath := fmt.Sprintf("/api/v1/consultations/%d/prescription", consultation.ID)
	rxBody := gin.H{"items": []gin.H{{
		"medication_id": med.ID, "dosage": "1 tablet", "frequency": "tds", "duration": 5, "quantity": 15,
	}}}
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, rxPath, pharmacist, rxBody).Code)

	var rx models.Prescription
	w = s.do(http.MethodPost, rxPath, doctor, rxBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &rx)
	require.Len(t, rx.Items, 1)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, rxPath, doctor, rxBody).Code)

	dispensePath := fmt.Sprintf("/api/v1/prescription-items/%d/dispense", rx.Items[0].ID)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, dispensePath, doctor, nil).Code)

	w = s.do(http.MethodPost, dispensePath, pharmacist, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &rx)
	assert.Equal(t, models.PrescriptionDispensed, rx.Status)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, dispensePath, pharmacist, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/v1/prescription-items/9999/dispense", pharmacist, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/prescription-items/abc/dispense", pharmacist, nil).Code)
}

func TestReportsAndAuditExport(t *testing.T) {
	s := newTestServer(t)
	admin := s.staff("admin1", models.RoleAdmin)

	w := s.do(http.MethodGet, "/api/v1/reports/dashboard", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/reports/daily?date=2026-03-02&format=csv", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "Metric,Value")

	w = s.do(http.MethodGet, "/api/v1/reports/monthly?year=2026&month=13", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/audit-logs/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}
