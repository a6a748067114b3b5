package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/pkg/metrics"
)

const consultationPageSize = 20

type ConsultationService struct {
	consultations *repository.ConsultationRepository
	labOrders     *repository.LabOrderRepository
	patients      *repository.PatientRepository
	audit         *AuditService
	log           *zap.Logger
	metrics       *metrics.Collector
	loc           *time.Location
	now           func() time.Time
}

func NewConsultationService(
	consultations *repository.ConsultationRepository,
	labOrders *repository.LabOrderRepository,
	patients *repository.PatientRepository,
	audit *AuditService,
	log *zap.Logger,
	m *metrics.Collector,
	loc *time.Location,
) *ConsultationService {
	if loc == nil {
		loc = time.UTC
	}
	return &ConsultationService{
		consultations: consultations,
		labOrders:     labOrders,
		patients:      patients,
		audit:         audit,
		log:           log,
		metrics:       m,
		loc:           loc,
		now:           time.Now,
	}
}

// Create records a new visit for the patient identified by mrn. The visit is
// stamped with today's date in the hospital timezone.
func (s *ConsultationService) Create(ctx context.Context, actor Actor, mrn string, c *models.Consultation) (*models.Consultation, error) {
	p, err := s.patients.FindByMRN(ctx, mrn)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("finding patient: %w", err)
	}

	if c.Status == "" {
		c.Status = models.ConsultationScheduled
	}
	if c.VisitType == "" {
		c.VisitType = models.VisitNew
	}
	if err := validateConsultation(c); err != nil {
		return nil, err
	}
	if c.Status != models.ConsultationScheduled && !models.ConsultationScheduled.CanTransitionTo(c.Status) {
		return nil, fmt.Errorf("%w: a new consultation cannot start as %s", ErrInvalidTransition, c.Status)
	}

	now := s.now().In(s.loc)
	c.ID = 0
	c.PatientID = p.ID
	c.VisitDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	c.VisitTime = now.Format("15:04:05")
	if c.DoctorID == nil && actor.Role == models.RoleDoctor {
		c.DoctorID = uintPtr(actor.UserID)
	}
	if actor.UserID != 0 {
		c.CreatedByID = uintPtr(actor.UserID)
	}

	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("creating consultation: %w", err)
	}
	c.Patient = p

	s.metrics.ConsultationStatusTotal.WithLabelValues(string(c.Status)).Inc()
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "Consultation",
		ObjectID:  uintPtr(c.ID),
		Details:   fmt.Sprintf("Created consultation for %s", p.MRN),
	})
	return c, nil
}

// Get loads a consultation with its diagnoses and lab orders
func (s *ConsultationService) Get(ctx context.Context, actor Actor, id uint) (*models.Consultation, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditView,
		ModelName: "Consultation",
		ObjectID:  uintPtr(c.ID),
		Details:   fmt.Sprintf("Viewed consultation %d", c.ID),
	})
	return c, nil
}

func (s *ConsultationService) find(ctx context.Context, id uint) (*models.Consultation, error) {
	c, err := s.consultations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConsultationNotFound
		}
		return nil, fmt.Errorf("finding consultation: %w", err)
	}
	return c, nil
}

// Update replaces the clinical content of a consultation. Status is changed
// only through ChangeStatus; BMI is always recomputed from weight and height.
func (s *ConsultationService) Update(ctx context.Context, actor Actor, id uint, changes *models.Consultation) (*models.Consultation, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.ConsultationCancelled {
		return nil, fmt.Errorf("%w: consultation is cancelled", ErrInvalidTransition)
	}

	if changes.VisitType == "" {
		changes.VisitType = c.VisitType
	}
	changes.Status = c.Status
	if err := validateConsultation(changes); err != nil {
		return nil, err
	}

	c.VisitType = changes.VisitType
	c.ChiefComplaint = changes.ChiefComplaint
	c.HistoryPresentingIllness = changes.HistoryPresentingIllness
	c.Temperature = changes.Temperature
	c.HeartRate = changes.HeartRate
	c.RespiratoryRate = changes.RespiratoryRate
	c.BloodPressureSystolic = changes.BloodPressureSystolic
	c.BloodPressureDiastolic = changes.BloodPressureDiastolic
	c.OxygenSaturation = changes.OxygenSaturation
	c.Weight = changes.Weight
	c.Height = changes.Height
	c.PhysicalExamination = changes.PhysicalExamination
	c.Diagnosis = changes.Diagnosis
	c.DifferentialDiagnosis = changes.DifferentialDiagnosis
	c.TreatmentPlan = changes.TreatmentPlan
	c.Notes = changes.Notes
	c.FollowUpDate = changes.FollowUpDate
	c.FollowUpNotes = changes.FollowUpNotes
	if changes.DoctorID != nil {
		c.DoctorID = changes.DoctorID
		c.Doctor = nil
	}

	if err := s.consultations.Save(ctx, c); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("updating consultation: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditUpdate,
		ModelName: "Consultation",
		ObjectID:  uintPtr(c.ID),
		Details:   fmt.Sprintf("Updated consultation %d", c.ID),
	})
	return c, nil
}

// ChangeStatus moves a consultation along its lifecycle. Requesting the
// current status is accepted and changes nothing.
func (s *ConsultationService) ChangeStatus(ctx context.Context, actor Actor, id uint, to models.ConsultationStatus) (*models.Consultation, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !to.IsValid() {
		return nil, &ValidationError{Fields: []string{fmt.Sprintf("unknown status %q", to)}}
	}
	if c.Status == to {
		return c, nil
	}
	if !c.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}

	from := c.Status
	if err := s.consultations.UpdateStatus(ctx, c.ID, from, to); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("changing consultation status: %w", err)
	}
	c.Status = to

	s.metrics.ConsultationStatusTotal.WithLabelValues(string(to)).Inc()
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditUpdate,
		ModelName: "Consultation",
		ObjectID:  uintPtr(c.ID),
		Details:   fmt.Sprintf("Status %s -> %s", from, to),
	})
	return c, nil
}

// List pages through consultations, 20 per page
func (s *ConsultationService) List(ctx context.Context, f repository.ConsultationFilter) ([]models.Consultation, int64, error) {
	f.Pagination = f.Pagination.Normalize(consultationPageSize)
	return s.consultations.List(ctx, f)
}

// ListForPatient pages through one patient's visits
func (s *ConsultationService) ListForPatient(ctx context.Context, mrn string, p repository.Pagination) ([]models.Consultation, int64, error) {
	patient, err := s.patients.FindByMRN(ctx, mrn)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, ErrPatientNotFound
		}
		return nil, 0, fmt.Errorf("finding patient: %w", err)
	}
	return s.List(ctx, repository.ConsultationFilter{PatientID: &patient.ID, Pagination: p})
}

// AddDiagnosis attaches a structured, optionally ICD-10 coded, diagnosis
func (s *ConsultationService) AddDiagnosis(ctx context.Context, actor Actor, id uint, d *models.Diagnosis) (*models.Diagnosis, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Description = strings.TrimSpace(d.Description)
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
	if d.Description == "" {
		return nil, &ValidationError{Fields: []string{"description is required"}}
	}

	d.ID = 0
	d.ConsultationID = c.ID
	if err := s.consultations.AddDiagnosis(ctx, d); err != nil {
		return nil, fmt.Errorf("adding diagnosis: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "Diagnosis",
		ObjectID:  uintPtr(d.ID),
		Details:   fmt.Sprintf("Added diagnosis %s to consultation %d", d.Code, c.ID),
	})
	return d, nil
}

// OrderLab places a lab order against a consultation
func (s *ConsultationService) OrderLab(ctx context.Context, actor Actor, consultationID uint, o *models.LabOrder) (*models.LabOrder, error) {
	c, err := s.find(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if c.Status == models.ConsultationCancelled {
		return nil, fmt.Errorf("%w: consultation is cancelled", ErrInvalidTransition)
	}

	o.TestName = strings.TrimSpace(o.TestName)
	if o.TestName == "" {
		return nil, &ValidationError{Fields: []string{"test_name is required"}}
	}
	switch o.Priority {
	case "":
		o.Priority = models.PriorityRoutine
	case models.PriorityRoutine, models.PriorityUrgent, models.PriorityStat:
	default:
		return nil, &ValidationError{Fields: []string{"priority must be routine, urgent or stat"}}
	}

	o.ID = 0
	o.ConsultationID = c.ID
	o.Status = models.LabOrdered
	o.OrderedDate = s.now().UTC()
	o.OrderedByID = uintPtr(actor.UserID)
	o.Results, o.ResultDate, o.PerformedByID = "", nil, nil

	if err := s.labOrders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("creating lab order: %w", err)
	}

	s.metrics.LabOrdersTotal.WithLabelValues(string(o.Status)).Inc()
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "LabOrder",
		ObjectID:  uintPtr(o.ID),
		Details:   fmt.Sprintf("Ordered %s (%s) for consultation %d", o.TestName, o.Priority, c.ID),
	})
	return o, nil
}

// LabUpdate is a lab order progress report.
type LabUpdate struct {
	Status        models.LabOrderStatus
	Results       string
	ClinicalNotes *string
}

// UpdateLabOrder advances a lab order. Completing an order requires results
// and stamps the result time and the performing user.
func (s *ConsultationService) UpdateLabOrder(ctx context.Context, actor Actor, id uint, u LabUpdate) (*models.LabOrder, error) {
	o, err := s.labOrders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLabOrderNotFound
		}
		return nil, fmt.Errorf("finding lab order: %w", err)
	}

	to := u.Status
	if to == "" {
		to = o.Status
	}
	if !to.IsValid() {
		return nil, &ValidationError{Fields: []string{fmt.Sprintf("unknown status %q", to)}}
	}
	if !o.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	from := o.Status
	if to == from && u.ClinicalNotes == nil && strings.TrimSpace(u.Results) == "" {
		return o, nil
	}

	if u.ClinicalNotes != nil {
		o.ClinicalNotes = *u.ClinicalNotes
	}
	if r := strings.TrimSpace(u.Results); r != "" {
		if from == models.LabCompleted || from == models.LabCancelled {
			return nil, fmt.Errorf("%w: lab order is %s", ErrInvalidTransition, from)
		}
		o.Results = r
	}
	if to == models.LabCompleted && from != models.LabCompleted {
		if o.Results == "" {
			return nil, &ValidationError{Fields: []string{"results are required to complete a lab order"}}
		}
		now := s.now().UTC()
		o.ResultDate = &now
		o.PerformedByID = uintPtr(actor.UserID)
	}
	o.Status = to

	if err := s.labOrders.Transition(ctx, o, from); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("updating lab order: %w", err)
	}

	if to != from {
		s.metrics.LabOrdersTotal.WithLabelValues(string(to)).Inc()
	}
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditUpdate,
		ModelName: "LabOrder",
		ObjectID:  uintPtr(o.ID),
		Details:   fmt.Sprintf("Lab order %s: %s -> %s", o.TestName, from, to),
	})
	return o, nil
}

func validateConsultation(c *models.Consultation) error {
	var errs []string

	if strings.TrimSpace(c.ChiefComplaint) == "" {
		errs = append(errs, "chief_complaint is required")
	}
	if strings.TrimSpace(c.Diagnosis) == "" {
		errs = append(errs, "diagnosis is required")
	}
	if !c.Status.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown status %q", c.Status))
	}
	switch c.VisitType {
	case models.VisitNew, models.VisitFollowUp, models.VisitEmergency, models.VisitReview, models.VisitReferral:
	default:
		errs = append(errs, fmt.Sprintf("unknown visit_type %q", c.VisitType))
	}

	errs = checkIntRange(errs, "heart_rate", c.HeartRate, 30, 200)
	errs = checkIntRange(errs, "blood_pressure_systolic", c.BloodPressureSystolic, 70, 250)
	errs = checkIntRange(errs, "blood_pressure_diastolic", c.BloodPressureDiastolic, 40, 150)
	errs = checkIntRange(errs, "oxygen_saturation", c.OxygenSaturation, 50, 100)
	errs = checkPositive(errs, "weight", c.Weight)
	errs = checkPositive(errs, "height", c.Height)
	if c.Temperature != nil && (*c.Temperature < 25 || *c.Temperature > 45) {
		errs = append(errs, "temperature must be between 25 and 45")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkIntRange(errs []string, field string, v *int, min, max int) []string {
	if v != nil && (*v < min || *v > max) {
		errs = append(errs, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
	return errs
}

func checkPositive(errs []string, field string, v *float64) []string {
	if v != nil && (*v <= 0 || *v >= 1000) {
		errs = append(errs, field+" must be greater than 0 and less than 1000")
	}
	return errs
}
