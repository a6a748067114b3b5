package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"hms-backend/internal/models"
)

// VisitRow is one consultation flattened with the patient and doctor
// columns the reports aggregate over.
type VisitRow struct {
	ConsultationID uint
	PatientID      uint
	VisitDate      time.Time
	VisitType      models.VisitType
	Diagnosis      string
	Department     string
	Gender         models.Gender
	DateOfBirth    time.Time
}

// Totals are the headline counters on the reports dashboard
type Totals struct {
	ActivePatients      int64 `json:"total_patients"`
	Consultations       int64 `json:"total_consultations"`
	Prescriptions       int64 `json:"total_prescriptions"`
	PendingLabOrders    int64 `json:"pending_lab_orders"`
	PendingPrescription int64 `json:"pending_prescriptions"`
}

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Visits returns every consultation with visit_date in [from, to)
func (r *ReportRepository) Visits(ctx context.Context, from, to time.Time) ([]VisitRow, error) {
	var rows []VisitRow
	err := r.db.WithContext(ctx).
		Table("consultations").
		Select(`consultations.id AS consultation_id,
			consultations.patient_id AS patient_id,
			consultations.visit_date AS visit_date,
			consultations.visit_type AS visit_type,
			consultations.diagnosis AS diagnosis,
			COALESCE(users.department, '') AS department,
			patients.gender AS gender,
			patients.date_of_birth AS date_of_birth`).
		Joins("JOIN patients ON patients.id = consultations.patient_id").
		Joins("LEFT JOIN users ON users.id = consultations.doctor_id").
		Where("consultations.visit_date >= ? AND consultations.visit_date < ?", from, to).
		Order("consultations.visit_date ASC").
		Scan(&rows).Error
	return rows, err
}

// Totals gathers the dashboard counters
func (r *ReportRepository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Patient{}).Where("is_active = ?", true).Count(&t.ActivePatients).Error; err != nil {
		return t, err
	}
	if err := db.Model(&models.Consultation{}).Count(&t.Consultations).Error; err != nil {
		return t, err
	}
	if err := db.Model(&models.Prescription{}).Count(&t.Prescriptions).Error; err != nil {
		return t, err
	}
	if err := db.Model(&models.LabOrder{}).
		Where("status IN ?", []models.LabOrderStatus{models.LabOrdered, models.LabCollected, models.LabProcessing}).
		Count(&t.PendingLabOrders).Error; err != nil {
		return t, err
	}
	if err := db.Model(&models.Prescription{}).
		Where("status IN ?", []models.PrescriptionStatus{models.PrescriptionActive, models.PrescriptionPartial}).
		Count(&t.PendingPrescription).Error; err != nil {
		return t, err
	}
	return t, nil
}
