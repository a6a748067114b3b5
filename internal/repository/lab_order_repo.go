package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"hms-backend/internal/models"
)

type LabOrderRepository struct {
	db *gorm.DB
}

func NewLabOrderRepo(db *gorm.DB) *LabOrderRepository {
	return &LabOrderRepository{db: db}
}

// Create inserts a lab order
func (r *LabOrderRepository) Create(ctx context.Context, o *models.LabOrder) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// FindByID retrieves a lab order by ID
func (r *LabOrderRepository) FindByID(ctx context.Context, id uint) (*models.LabOrder, error) {
	var o models.LabOrder
	err := r.db.WithContext(ctx).First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Transition writes the new status and result fields, guarded by the
// status the caller read.
func (r *LabOrderRepository) Transition(ctx context.Context, o *models.LabOrder, from models.LabOrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.LabOrder{}).
		Where("id = ? AND status = ?", o.ID, from).
		Updates(map[string]interface{}{
			"status":          o.Status,
			"results":         o.Results,
			"result_date":     o.ResultDate,
			"performed_by_id": o.PerformedByID,
			"clinical_notes":  o.ClinicalNotes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}
