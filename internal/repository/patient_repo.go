package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"hms-backend/internal/models"
)

// PatientSearch filters the patient listing. Type is one of mrn, name,
// id, phone or all.
type PatientSearch struct {
	Query string
	Type  string
	Pagination
}

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepo(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) WithTx(tx *gorm.DB) *PatientRepository {
	return &PatientRepository{db: tx}
}

// Create inserts a new patient
func (r *PatientRepository) Create(ctx context.Context, p *models.Patient) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByMRN loads an active patient with its emergency contacts
func (r *PatientRepository) FindByMRN(ctx context.Context, mrn string) (*models.Patient, error) {
	var p models.Patient
	err := r.db.WithContext(ctx).
		Where("mrn = ? AND is_active = ?", mrn, true).
		Preload("EmergencyContacts").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update writes every editable column. MRN and audit columns are never changed.
func (r *PatientRepository) Update(ctx context.Context, p *models.Patient) error {
	return r.db.WithContext(ctx).Model(p).
		Omit("mrn", "created_by_id", "created_at", "is_active", "EmergencyContacts").
		Select("*").
		Updates(p).Error
}

// Deactivate hides a patient from every listing. Rows are never deleted.
func (r *PatientRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Patient{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Search lists active patients, newest first
func (r *PatientRepository) Search(ctx context.Context, s PatientSearch) ([]models.Patient, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Patient{}).Where("is_active = ?", true)

	if term := strings.TrimSpace(s.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		switch s.Type {
		case "mrn":
			q = q.Where("LOWER(mrn) LIKE ?", like)
		case "name":
			q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(middle_name) LIKE ?", like, like, like)
		case "id":
			q = q.Where("national_id LIKE ?", "%"+term+"%")
		case "phone":
			q = q.Where("phone_number LIKE ?", "%"+term+"%")
		default:
			q = q.Where("LOWER(mrn) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR national_id LIKE ? OR phone_number LIKE ?",
				like, like, like, "%"+term+"%", "%"+term+"%")
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var patients []models.Patient
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(s.Offset()).Limit(s.PageSize).
		Find(&patients).Error
	return patients, total, err
}

// QuickSearch matches mrn, names or phone for type-ahead lookups
func (r *PatientRepository) QuickSearch(ctx context.Context, term string, limit int) ([]models.Patient, error) {
	like := "%" + strings.ToLower(term) + "%"
	var patients []models.Patient
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("LOWER(mrn) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR phone_number LIKE ?",
			like, like, like, "%"+term+"%").
		Order("last_name ASC").Order("first_name ASC").
		Limit(limit).
		Find(&patients).Error
	return patients, err
}

// ExistsByNationalID reports whether any patient, active or not, holds the national ID
func (r *PatientRepository) ExistsByNationalID(ctx context.Context, nationalID string, excludeID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Patient{}).
		Where("national_id = ? AND id <> ?", nationalID, excludeID).
		Count(&n).Error
	return n > 0, err
}

// AddContact attaches an emergency contact to a patient
func (r *PatientRepository) AddContact(ctx context.Context, contact *models.EmergencyContact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

// CountRegistered returns patients registered in [from, to)
func (r *PatientRepository) CountRegistered(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Patient{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&n).Error
	return n, err
}
