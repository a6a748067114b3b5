package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"hms-backend/internal/models"
)

// ConsultationFilter narrows the consultation listing
type ConsultationFilter struct {
	PatientID *uint
	DoctorID  *uint
	Status    models.ConsultationStatus
	Date      *time.Time
	Pagination
}

type ConsultationRepository struct {
	db *gorm.DB
}

func NewConsultationRepo(db *gorm.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

func (r *ConsultationRepository) WithTx(tx *gorm.DB) *ConsultationRepository {
	return &ConsultationRepository{db: tx}
}

// Create inserts a consultation; the BMI hook runs on insert
func (r *ConsultationRepository) Create(ctx context.Context, c *models.Consultation) error {
	return r.db.WithContext(ctx).Omit("Patient", "Doctor").Create(c).Error
}

// FindByID loads a consultation with patient, doctor, diagnoses and lab orders
func (r *ConsultationRepository) FindByID(ctx context.Context, id uint) (*models.Consultation, error) {
	var c models.Consultation
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Preload("Diagnoses").
		Preload("LabOrders", func(db *gorm.DB) *gorm.DB { return db.Order("ordered_date DESC") }).
		First(&c, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Save writes the clinical columns so the BMI hook recomputes from the stored
// vitals. Status is never written here and the row must still carry the
// status c was read with, otherwise ErrStaleStatus is returned.
func (r *ConsultationRepository) Save(ctx context.Context, c *models.Consultation) error {
	res := r.db.WithContext(ctx).
		Where("status = ?", c.Status).
		Select("*").
		Omit("status", "created_at", "Patient", "Doctor", "Diagnoses", "LabOrders").
		Save(c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// UpdateStatus moves a consultation from one status to another only if it is
// still in the expected status.
func (r *ConsultationRepository) UpdateStatus(ctx context.Context, id uint, from, to models.ConsultationStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Consultation{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// List returns one page of consultations, most recent visit first
func (r *ConsultationRepository) List(ctx context.Context, f ConsultationFilter) ([]models.Consultation, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Consultation{})
	if f.PatientID != nil {
		q = q.Where("patient_id = ?", *f.PatientID)
	}
	if f.DoctorID != nil {
		q = q.Where("doctor_id = ?", *f.DoctorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("visit_date >= ? AND visit_date < ?", day, day.AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Consultation
	err := q.Preload("Patient").Preload("Doctor").
		Order("visit_date DESC").Order("visit_time DESC").Order("id DESC").
		Offset(f.Offset()).Limit(f.PageSize).
		Find(&list).Error
	return list, total, err
}

// LatestWithVitals returns the patient's most recent consultation that
// recorded a temperature, or ErrNotFound.
func (r *ConsultationRepository) LatestWithVitals(ctx context.Context, patientID uint) (*models.Consultation, error) {
	var c models.Consultation
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND temperature IS NOT NULL", patientID).
		Order("visit_date DESC").Order("visit_time DESC").Order("id DESC").
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// AddDiagnosis attaches a coded diagnosis to a consultation
func (r *ConsultationRepository) AddDiagnosis(ctx context.Context, d *models.Diagnosis) error {
	return r.db.WithContext(ctx).Create(d).Error
}
