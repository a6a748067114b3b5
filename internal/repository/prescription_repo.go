package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hms-backend/internal/models"
)

// PrescriptionFilter narrows the prescription listing
type PrescriptionFilter struct {
	PatientID *uint
	Status    models.PrescriptionStatus
	Pagination
}

type PrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepo(db *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

func (r *PrescriptionRepository) WithTx(tx *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: tx}
}

// Create inserts a prescription together with its items
func (r *PrescriptionRepository) Create(ctx context.Context, p *models.Prescription) error {
	return r.db.WithContext(ctx).Omit("Consultation", "Patient").Create(p).Error
}

// ExistsForConsultation reports whether a consultation already has a prescription
func (r *PrescriptionRepository) ExistsForConsultation(ctx context.Context, consultationID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Prescription{}).
		Where("consultation_id = ?", consultationID).
		Count(&n).Error
	return n > 0, err
}

// FindByID loads a prescription with patient and items
func (r *PrescriptionRepository) FindByID(ctx context.Context, id uint) (*models.Prescription, error) {
	var p models.Prescription
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Medication").
		First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns one page of prescriptions, newest first
func (r *PrescriptionRepository) List(ctx context.Context, f PrescriptionFilter) ([]models.Prescription, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Prescription{})
	if f.PatientID != nil {
		q = q.Where("patient_id = ?", *f.PatientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Prescription
	err := q.Preload("Patient").Preload("Items").
		Order("prescribed_date DESC").Order("id DESC").
		Offset(f.Offset()).Limit(f.PageSize).
		Find(&list).Error
	return list, total, err
}

// AddItem appends an item to a prescription
func (r *PrescriptionRepository) AddItem(ctx context.Context, item *models.PrescriptionItem) error {
	return r.db.WithContext(ctx).Omit("Medication").Create(item).Error
}

// FindItem retrieves a prescription item by ID
func (r *PrescriptionRepository) FindItem(ctx context.Context, id uint) (*models.PrescriptionItem, error) {
	var item models.PrescriptionItem
	err := r.db.WithContext(ctx).Preload("Medication").First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// MarkDispensed flips an undispensed item to dispensed. It reports false,
// and changes nothing, when the item was already dispensed.
func (r *PrescriptionRepository) MarkDispensed(ctx context.Context, itemID, by uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PrescriptionItem{}).
		Where("id = ? AND is_dispensed = ?", itemID, false).
		Updates(map[string]interface{}{
			"is_dispensed":    true,
			"dispensed_date":  at,
			"dispensed_by_id": by,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ItemCounts returns how many items a prescription has and how many are dispensed
func (r *PrescriptionRepository) ItemCounts(ctx context.Context, prescriptionID uint) (total, dispensed int64, err error) {
	db := r.db.WithContext(ctx).Model(&models.PrescriptionItem{})
	if err = db.Where("prescription_id = ?", prescriptionID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&models.PrescriptionItem{}).
		Where("prescription_id = ? AND is_dispensed = ?", prescriptionID, true).
		Count(&dispensed).Error
	return total, dispensed, err
}

// FindForUpdate reads the prescription row with a row lock held until the
// transaction ends, so recomputes on one prescription run one at a time.
// SQLite has no row locks and ignores the clause.
func (r *PrescriptionRepository) FindForUpdate(ctx context.Context, id uint) (*models.Prescription, error) {
	var p models.Prescription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SetStatus writes a new status
func (r *PrescriptionRepository) SetStatus(ctx context.Context, id uint, status models.PrescriptionStatus) error {
	return r.db.WithContext(ctx).Model(&models.Prescription{}).
		Where("id = ?", id).
		Update("status", status).Error
}
