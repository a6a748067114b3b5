package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/pkg/metrics"
)

const (
	patientPageSize  = 20
	quickSearchLimit = 10
	minSearchLength  = 2
	mrnAllocAttempts = 3
)

var bloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true, "UNKNOWN": true,
}

// PatientServiceConfig carries the facility settings registration needs.
type PatientServiceConfig struct {
	MRNPrefix string
	Location  *time.Location
}

type PatientService struct {
	db       *gorm.DB
	patients *repository.PatientRepository
	mrns     *repository.MRNRepository
	visits   *repository.ConsultationRepository
	audit    *AuditService
	log      *zap.Logger
	metrics  *metrics.Collector
	prefix   string
	loc      *time.Location
	now      func() time.Time
}

func NewPatientService(
	db *gorm.DB,
	patients *repository.PatientRepository,
	mrns *repository.MRNRepository,
	visits *repository.ConsultationRepository,
	audit *AuditService,
	log *zap.Logger,
	m *metrics.Collector,
	cfg PatientServiceConfig,
) *PatientService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &PatientService{
		db:       db,
		patients: patients,
		mrns:     mrns,
		visits:   visits,
		audit:    audit,
		log:      log,
		metrics:  m,
		prefix:   cfg.MRNPrefix,
		loc:      loc,
		now:      time.Now,
	}
}

// Register allocates the next MRN and inserts the patient in one transaction.
//
// A unique violation means another registration took the same MRN (or the
// counter fell behind rows written elsewhere). The counter is resynced and
// the whole transaction retried a bounded number of times.
func (s *PatientService) Register(ctx context.Context, actor Actor, p *models.Patient) (*models.Patient, error) {
	ctx, span := tracer.Start(ctx, "PatientService.Register")
	defer span.End()

	now := s.now().In(s.loc)
	normalizePatient(p)
	if err := validatePatient(p, now); err != nil {
		return nil, err
	}

	if p.NationalID != nil {
		exists, err := s.patients.ExistsByNationalID(ctx, *p.NationalID, 0)
		if err != nil {
			return nil, fmt.Errorf("checking national id: %w", err)
		}
		if exists {
			return nil, ErrDuplicateNationalID
		}
	}

	p.IsActive = true
	if actor.UserID != 0 {
		p.CreatedByID = uintPtr(actor.UserID)
	}
	year := now.Year()

	for attempt := 1; attempt <= mrnAllocAttempts; attempt++ {
		p.ID, p.MRN = 0, ""
		for i := range p.EmergencyContacts {
			p.EmergencyContacts[i].ID = 0
			p.EmergencyContacts[i].PatientID = 0
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			mrn, err := s.mrns.WithTx(tx).Allocate(ctx, s.prefix, year)
			if err != nil {
				return err
			}
			p.MRN = mrn
			return s.patients.WithTx(tx).Create(ctx, p)
		})
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("registering patient: %w", err)
		}

		if p.NationalID != nil {
			if taken, _ := s.patients.ExistsByNationalID(ctx, *p.NationalID, 0); taken {
				return nil, ErrDuplicateNationalID
			}
		}

		s.metrics.MRNAllocationRetries.Inc()
		s.log.Warn("mrn collision, resyncing counter",
			zap.String("mrn", p.MRN),
			zap.Int("attempt", attempt),
		)
		if attempt == mrnAllocAttempts {
			return nil, ErrMRNConflict
		}
		if err := s.mrns.Resync(ctx, s.prefix, year); err != nil {
			return nil, fmt.Errorf("resyncing mrn counter: %w", err)
		}
	}

	span.SetAttributes(attribute.String("patient.mrn", p.MRN))
	s.metrics.PatientsRegisteredTotal.Inc()
	s.log.Info("patient registered",
		zap.String("mrn", p.MRN),
		zap.Uint("created_by", actor.UserID),
	)
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "Patient",
		ObjectID:  uintPtr(p.ID),
		Details:   fmt.Sprintf("Registered patient %s", p.MRN),
	})

	return p, nil
}

// Get loads an active patient by MRN and records the view
func (s *PatientService) Get(ctx context.Context, actor Actor, mrn string) (*models.Patient, error) {
	p, err := s.find(ctx, mrn)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditView,
		ModelName: "Patient",
		ObjectID:  uintPtr(p.ID),
		Details:   fmt.Sprintf("Viewed patient %s", p.MRN),
	})
	return p, nil
}

func (s *PatientService) find(ctx context.Context, mrn string) (*models.Patient, error) {
	p, err := s.patients.FindByMRN(ctx, strings.TrimSpace(mrn))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("finding patient: %w", err)
	}
	return p, nil
}

// Update replaces the editable demographics of a patient. The MRN never changes.
func (s *PatientService) Update(ctx context.Context, actor Actor, mrn string, changes *models.Patient) (*models.Patient, error) {
	p, err := s.find(ctx, mrn)
	if err != nil {
		return nil, err
	}

	normalizePatient(changes)
	if err := validatePatient(changes, s.now().In(s.loc)); err != nil {
		return nil, err
	}
	if changes.NationalID != nil {
		taken, err := s.patients.ExistsByNationalID(ctx, *changes.NationalID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("checking national id: %w", err)
		}
		if taken {
			return nil, ErrDuplicateNationalID
		}
	}

	changes.ID = p.ID
	changes.MRN = p.MRN
	changes.CreatedByID = p.CreatedByID
	changes.CreatedAt = p.CreatedAt
	changes.IsActive = p.IsActive
	changes.EmergencyContacts = p.EmergencyContacts

	if err := s.patients.Update(ctx, changes); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateNationalID
		}
		return nil, fmt.Errorf("updating patient: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditUpdate,
		ModelName: "Patient",
		ObjectID:  uintPtr(p.ID),
		Details:   fmt.Sprintf("Updated patient %s", p.MRN),
	})
	return changes, nil
}

// Deactivate hides a patient from listings. The record is kept.
func (s *PatientService) Deactivate(ctx context.Context, actor Actor, mrn string) error {
	p, err := s.find(ctx, mrn)
	if err != nil {
		return err
	}
	if err := s.patients.Deactivate(ctx, p.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("deactivating patient: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditDelete,
		ModelName: "Patient",
		ObjectID:  uintPtr(p.ID),
		Details:   fmt.Sprintf("Deactivated patient %s", p.MRN),
	})
	return nil
}

// Search pages through active patients, 20 per page
func (s *PatientService) Search(ctx context.Context, q repository.PatientSearch) ([]models.Patient, int64, error) {
	q.Pagination = q.Pagination.Normalize(patientPageSize)
	q.PageSize = patientPageSize
	return s.patients.Search(ctx, q)
}

// QuickSearch serves type-ahead lookups: at least two characters, ten results
func (s *PatientService) QuickSearch(ctx context.Context, term string) ([]models.Patient, error) {
	term = strings.TrimSpace(term)
	if len(term) < minSearchLength {
		return nil, ErrQueryTooShort
	}
	return s.patients.QuickSearch(ctx, term, quickSearchLimit)
}

// AddContact adds an emergency contact to a patient
func (s *PatientService) AddContact(ctx context.Context, actor Actor, mrn string, contact *models.EmergencyContact) (*models.EmergencyContact, error) {
	p, err := s.find(ctx, mrn)
	if err != nil {
		return nil, err
	}

	contact.ID = 0
	contact.PatientID = p.ID
	if err := s.patients.AddContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("adding emergency contact: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "EmergencyContact",
		ObjectID:  uintPtr(contact.ID),
		Details:   fmt.Sprintf("Added emergency contact for %s", p.MRN),
	})
	return contact, nil
}

// Vitals are the measurements carried over to prefill a new consultation.
type Vitals struct {
	Temperature            *float64  `json:"temperature"`
	HeartRate              *int      `json:"heart_rate"`
	RespiratoryRate        *int      `json:"respiratory_rate"`
	BloodPressureSystolic  *int      `json:"blood_pressure_systolic"`
	BloodPressureDiastolic *int      `json:"blood_pressure_diastolic"`
	OxygenSaturation       *int      `json:"oxygen_saturation"`
	Weight                 *float64  `json:"weight"`
	Height                 *float64  `json:"height"`
	RecordedOn             time.Time `json:"recorded_on"`
}

// LastVitals returns the vitals of the patient's latest consultation that
// recorded any, or nil when there is none.
func (s *PatientService) LastVitals(ctx context.Context, mrn string) (*Vitals, error) {
	p, err := s.find(ctx, mrn)
	if err != nil {
		return nil, err
	}

	c, err := s.visits.LatestWithVitals(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading last vitals: %w", err)
	}

	return &Vitals{
		Temperature:            c.Temperature,
		HeartRate:              c.HeartRate,
		RespiratoryRate:        c.RespiratoryRate,
		BloodPressureSystolic:  c.BloodPressureSystolic,
		BloodPressureDiastolic: c.BloodPressureDiastolic,
		OxygenSaturation:       c.OxygenSaturation,
		Weight:                 c.Weight,
		Height:                 c.Height,
		RecordedOn:             c.VisitDate,
	}, nil
}

func normalizePatient(p *models.Patient) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.MiddleName = strings.TrimSpace(p.MiddleName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.BloodGroup = strings.ToUpper(strings.TrimSpace(p.BloodGroup))
	if p.BloodGroup == "" {
		p.BloodGroup = "UNKNOWN"
	}
	if p.County == "" {
		p.County = "Baringo"
	}
	if p.NationalID != nil {
		id := strings.TrimSpace(*p.NationalID)
		if id == "" {
			p.NationalID = nil
		} else {
			p.NationalID = &id
		}
	}
}

func validatePatient(p *models.Patient, now time.Time) error {
	var errs []string

	if p.FirstName == "" {
		errs = append(errs, "first_name is required")
	}
	if p.LastName == "" {
		errs = append(errs, "last_name is required")
	}
	if p.DateOfBirth.IsZero() {
		errs = append(errs, "date_of_birth is required")
	} else if p.DateOfBirth.After(now) {
		errs = append(errs, "date_of_birth cannot be in the future")
	}
	switch p.Gender {
	case models.GenderMale, models.GenderFemale, models.GenderOther:
	default:
		errs = append(errs, "gender must be one of M, F, O")
	}
	if !bloodGroups[p.BloodGroup] {
		errs = append(errs, "blood_group is invalid")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
