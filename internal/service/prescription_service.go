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

const prescriptionPageSize = 20

var (
	frequencies   = map[string]bool{"od": true, "bd": true, "tds": true, "qds": true, "prn": true, "stat": true, "nocte": true}
	durationUnits = map[string]bool{"days": true, "weeks": true, "months": true}
)

type PrescriptionService struct {
	db            *gorm.DB
	prescriptions *repository.PrescriptionRepository
	consultations *repository.ConsultationRepository
	medications   *repository.MedicationRepository
	audit         *AuditService
	log           *zap.Logger
	metrics       *metrics.Collector
	now           func() time.Time
}

func NewPrescriptionService(
	db *gorm.DB,
	prescriptions *repository.PrescriptionRepository,
	consultations *repository.ConsultationRepository,
	medications *repository.MedicationRepository,
	audit *AuditService,
	log *zap.Logger,
	m *metrics.Collector,
) *PrescriptionService {
	return &PrescriptionService{
		db:            db,
		prescriptions: prescriptions,
		consultations: consultations,
		medications:   medications,
		audit:         audit,
		log:           log,
		metrics:       m,
		now:           time.Now,
	}
}

// Create issues the prescription for a consultation, with its initial items.
// A consultation has at most one prescription.
func (s *PrescriptionService) Create(ctx context.Context, actor Actor, consultationID uint, p *models.Prescription) (*models.Prescription, error) {
	c, err := s.consultations.FindByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConsultationNotFound
		}
		return nil, fmt.Errorf("finding consultation: %w", err)
	}
	if c.Status == models.ConsultationCancelled {
		return nil, fmt.Errorf("%w: consultation is cancelled", ErrInvalidTransition)
	}

	exists, err := s.prescriptions.ExistsForConsultation(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("checking prescription: %w", err)
	}
	if exists {
		return nil, ErrPrescriptionExists
	}

	for i := range p.Items {
		if err := s.validateItem(ctx, &p.Items[i]); err != nil {
			return nil, err
		}
		p.Items[i].ID = 0
		p.Items[i].PrescriptionID = 0
		p.Items[i].IsDispensed = false
		p.Items[i].DispensedDate = nil
		p.Items[i].DispensedByID = nil
	}

	p.ID = 0
	p.ConsultationID = c.ID
	p.PatientID = c.PatientID
	p.PrescribedDate = s.now().UTC()
	p.Status = models.PrescriptionActive
	if actor.UserID != 0 {
		p.PrescribedByID = uintPtr(actor.UserID)
	}

	if err := s.prescriptions.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPrescriptionExists
		}
		return nil, fmt.Errorf("creating prescription: %w", err)
	}

	s.metrics.PrescriptionsIssued.Inc()
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "Prescription",
		ObjectID:  uintPtr(p.ID),
		Details:   fmt.Sprintf("Issued prescription with %d items for consultation %d", len(p.Items), c.ID),
	})
	return s.Get(ctx, p.ID)
}

// Get loads a prescription with its items and their medications
func (s *PrescriptionService) Get(ctx context.Context, id uint) (*models.Prescription, error) {
	p, err := s.prescriptions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, fmt.Errorf("finding prescription: %w", err)
	}
	return p, nil
}

// List pages through prescriptions, 20 per page
func (s *PrescriptionService) List(ctx context.Context, f repository.PrescriptionFilter) ([]models.Prescription, int64, error) {
	f.Pagination = f.Pagination.Normalize(prescriptionPageSize)
	return s.prescriptions.List(ctx, f)
}

// AddItem appends an item to an open prescription and recomputes its status,
// so a fully dispensed prescription drops back to partial.
func (s *PrescriptionService) AddItem(ctx context.Context, actor Actor, prescriptionID uint, item *models.PrescriptionItem) (*models.PrescriptionItem, error) {
	if err := s.validateItem(ctx, item); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.prescriptions.WithTx(tx)
		p, err := repo.FindForUpdate(ctx, prescriptionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPrescriptionNotFound
			}
			return err
		}
		if p.Status.IsClosed() {
			return ErrPrescriptionClosed
		}

		item.ID = 0
		item.PrescriptionID = p.ID
		item.IsDispensed = false
		item.DispensedDate = nil
		item.DispensedByID = nil
		if err := repo.AddItem(ctx, item); err != nil {
			return err
		}
		return s.recompute(ctx, repo, p)
	})
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) || errors.Is(err, ErrPrescriptionClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("adding prescription item: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "PrescriptionItem",
		ObjectID:  uintPtr(item.ID),
		Details:   fmt.Sprintf("Added item to prescription %d", prescriptionID),
	})
	return item, nil
}

// Dispense marks one item dispensed and recomputes the prescription status in
// the same transaction. Dispensing an item twice fails with
// ErrAlreadyDispensed and leaves the first dispense record untouched.
func (s *PrescriptionService) Dispense(ctx context.Context, actor Actor, itemID uint) (*models.Prescription, error) {
	ctx, span := tracer.Start(ctx, "PrescriptionService.Dispense")
	defer span.End()
	span.SetAttributes(attribute.Int("prescription_item.id", int(itemID)))

	var prescriptionID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.prescriptions.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		prescriptionID = item.PrescriptionID

		p, err := repo.FindForUpdate(ctx, item.PrescriptionID)
		if err != nil {
			return err
		}
		if p.Status.IsClosed() {
			return ErrPrescriptionClosed
		}

		ok, err := repo.MarkDispensed(ctx, item.ID, actor.UserID, s.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyDispensed
		}
		return s.recompute(ctx, repo, p)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrPrescriptionClosed), errors.Is(err, ErrAlreadyDispensed):
			return nil, err
		}
		return nil, fmt.Errorf("dispensing item: %w", err)
	}

	s.metrics.ItemsDispensedTotal.Inc()
	s.log.Info("prescription item dispensed",
		zap.Uint("item_id", itemID),
		zap.Uint("prescription_id", prescriptionID),
		zap.Uint("dispensed_by", actor.UserID),
	)
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditUpdate,
		ModelName: "PrescriptionItem",
		ObjectID:  uintPtr(itemID),
		Details:   fmt.Sprintf("Dispensed item %d of prescription %d", itemID, prescriptionID),
	})
	return s.Get(ctx, prescriptionID)
}

// ChangeStatus applies a manual transition: cancel or complete.
func (s *PrescriptionService) ChangeStatus(ctx context.Context, actor Actor, id uint, to models.PrescriptionStatus) (*models.Prescription, error) {
	if !to.IsValid() {
		return nil, &ValidationError{Fields: []string{fmt.Sprintf("unknown status %q", to)}}
	}

	var from models.PrescriptionStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.prescriptions.WithTx(tx)
		p, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPrescriptionNotFound
			}
			return err
		}
		from = p.Status
		if from == to {
			return nil
		}
		if !from.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		return repo.SetStatus(ctx, p.ID, to)
	})
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("changing prescription status: %w", err)
	}

	if from != to {
		s.audit.Record(ctx, AuditEntry{
			Actor:     actor,
			Action:    models.AuditUpdate,
			ModelName: "Prescription",
			ObjectID:  uintPtr(id),
			Details:   fmt.Sprintf("Status %s -> %s", from, to),
		})
	}
	return s.Get(ctx, id)
}

func (s *PrescriptionService) recompute(ctx context.Context, repo *repository.PrescriptionRepository, p *models.Prescription) error {
	total, dispensed, err := repo.ItemCounts(ctx, p.ID)
	if err != nil {
		return err
	}
	next := models.AggregatePrescriptionStatus(p.Status, total, dispensed)
	if next == p.Status {
		return nil
	}
	if err := repo.SetStatus(ctx, p.ID, next); err != nil {
		return err
	}
	p.Status = next
	return nil
}

func (s *PrescriptionService) validateItem(ctx context.Context, item *models.PrescriptionItem) error {
	var errs []string

	item.Dosage = strings.TrimSpace(item.Dosage)
	item.Frequency = strings.ToLower(strings.TrimSpace(item.Frequency))
	item.DurationUnit = strings.ToLower(strings.TrimSpace(item.DurationUnit))
	if item.DurationUnit == "" {
		item.DurationUnit = "days"
	}

	if item.Dosage == "" {
		errs = append(errs, "dosage is required")
	}
	if !frequencies[item.Frequency] {
		errs = append(errs, "frequency must be one of od, bd, tds, qds, prn, stat, nocte")
	}
	if item.Duration < 1 {
		errs = append(errs, "duration must be at least 1")
	}
	if !durationUnits[item.DurationUnit] {
		errs = append(errs, "duration_unit must be days, weeks or months")
	}
	if item.Quantity < 1 {
		errs = append(errs, "quantity must be at least 1")
	}
	if item.Refills < 0 {
		errs = append(errs, "refills cannot be negative")
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	med, err := s.medications.FindByID(ctx, item.MedicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMedicationNotFound
		}
		return fmt.Errorf("finding medication: %w", err)
	}
	if !med.IsActive {
		return &ValidationError{Fields: []string{fmt.Sprintf("medication %s is inactive", med.Name)}}
	}
	if item.Route == "" {
		item.Route = med.Route
	}
	item.Medication = nil
	return nil
}
