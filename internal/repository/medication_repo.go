package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"hms-backend/internal/models"
)

type MedicationRepository struct {
	db *gorm.DB
}

func NewMedicationRepo(db *gorm.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// List returns the catalog ordered by name
func (r *MedicationRepository) List(ctx context.Context, activeOnly bool, p Pagination) ([]models.Medication, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Medication{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var meds []models.Medication
	err := q.Order("name ASC").Offset(p.Offset()).Limit(p.PageSize).Find(&meds).Error
	return meds, total, err
}

// Search matches active medications by name, generic or brand name
func (r *MedicationRepository) Search(ctx context.Context, term string, limit int) ([]models.Medication, error) {
	like := "%" + strings.ToLower(term) + "%"
	var meds []models.Medication
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("LOWER(name) LIKE ? OR LOWER(generic_name) LIKE ? OR LOWER(brand_name) LIKE ?", like, like, like).
		Order("name ASC").
		Limit(limit).
		Find(&meds).Error
	return meds, err
}

// FindByID retrieves a medication by ID
func (r *MedicationRepository) FindByID(ctx context.Context, id uint) (*models.Medication, error) {
	var m models.Medication
	err := r.db.WithContext(ctx).First(&m, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Create adds a catalog entry
func (r *MedicationRepository) Create(ctx context.Context, m *models.Medication) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Update writes every column of a catalog entry
func (r *MedicationRepository) Update(ctx context.Context, m *models.Medication) error {
	return r.db.WithContext(ctx).Model(m).Omit("created_at").Select("*").Updates(m).Error
}
