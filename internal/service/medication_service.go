package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
)

const (
	medicationPageSize    = 50
	medicationSearchLimit = 15
)

var routes = map[string]bool{
	"oral": true, "iv": true, "im": true, "sc": true, "topical": true,
	"inhaled": true, "rectal": true, "sublingual": true, "ophthalmic": true, "otic": true,
}

type MedicationService struct {
	medications *repository.MedicationRepository
	audit       *AuditService
	log         *zap.Logger
}

func NewMedicationService(medications *repository.MedicationRepository, audit *AuditService, log *zap.Logger) *MedicationService {
	return &MedicationService{medications: medications, audit: audit, log: log}
}

func (s *MedicationService) List(ctx context.Context, activeOnly bool, p repository.Pagination) ([]models.Medication, int64, error) {
	return s.medications.List(ctx, activeOnly, p.Normalize(medicationPageSize))
}

// Search looks up active medications for prescribing
func (s *MedicationService) Search(ctx context.Context, term string) ([]models.Medication, error) {
	term = strings.TrimSpace(term)
	if len(term) < minSearchLength {
		return nil, ErrQueryTooShort
	}
	return s.medications.Search(ctx, term, medicationSearchLimit)
}

func (s *MedicationService) Create(ctx context.Context, actor Actor, m *models.Medication) (*models.Medication, error) {
	normalizeMedication(m)
	if err := validateMedication(m); err != nil {
		return nil, err
	}

	m.ID = 0
	m.IsActive = true
	if err := s.medications.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("creating medication: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditCreate,
		ModelName: "Medication",
		ObjectID:  uintPtr(m.ID),
		Details:   fmt.Sprintf("Added %s %s to the catalog", m.Name, m.Strength),
	})
	return m, nil
}

// Update replaces a catalog entry. Deactivating hides it from search but
// keeps existing prescriptions intact.
func (s *MedicationService) Update(ctx context.Context, actor Actor, id uint, changes *models.Medication) (*models.Medication, error) {
	existing, err := s.medications.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMedicationNotFound
		}
		return nil, fmt.Errorf("finding medication: %w", err)
	}

	normalizeMedication(changes)
	if err := validateMedication(changes); err != nil {
		return nil, err
	}
	changes.ID = existing.ID
	changes.CreatedAt = existing.CreatedAt

	if err := s.medications.Update(ctx, changes); err != nil {
		return nil, fmt.Errorf("updating medication: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditUpdate,
		ModelName: "Medication",
		ObjectID:  uintPtr(changes.ID),
		Details:   fmt.Sprintf("Updated %s", changes.Name),
	})
	return changes, nil
}

func normalizeMedication(m *models.Medication) {
	m.Name = strings.TrimSpace(m.Name)
	m.Strength = strings.TrimSpace(m.Strength)
	m.Unit = strings.ToLower(strings.TrimSpace(m.Unit))
	m.Route = strings.ToLower(strings.TrimSpace(m.Route))
	if m.Unit == "" {
		m.Unit = "tablet"
	}
	if m.Route == "" {
		m.Route = "oral"
	}
}

func validateMedication(m *models.Medication) error {
	var errs []string
	if m.Name == "" {
		errs = append(errs, "name is required")
	}
	if m.Strength == "" {
		errs = append(errs, "strength is required")
	}
	if !routes[m.Route] {
		errs = append(errs, fmt.Sprintf("unknown route %q", m.Route))
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
