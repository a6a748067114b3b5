package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"hms-backend/internal/models"
)

func createPatient(t *testing.T, db *gorm.DB, mrn string) *models.Patient {
	t.Helper()
	p := &models.Patient{
		MRN:         mrn,
		FirstName:   "Jane",
		LastName:    "Chebet",
		DateOfBirth: time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
		Gender:      models.GenderFemale,
		PhoneNumber: "+254712345678",
		IsActive:    true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func createConsultation(t *testing.T, db *gorm.DB, patientID uint) *models.Consultation {
	t.Helper()
	c := &models.Consultation{
		PatientID:      patientID,
		VisitDate:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		VisitTime:      "09:30:00",
		VisitType:      models.VisitNew,
		Status:         models.ConsultationScheduled,
		ChiefComplaint: "Fever",
		Diagnosis:      "Malaria",
	}
	require.NoError(t, NewConsultationRepo(db).Create(context.Background(), c))
	return c
}

func createMedication(t *testing.T, db *gorm.DB, name string) *models.Medication {
	t.Helper()
	m := &models.Medication{Name: name, Strength: "500mg", Unit: "tablet", Route: "oral", IsActive: true}
	require.NoError(t, db.Create(m).Error)
	return m
}

// createPrescription issues a prescription with n undispensed items
func createPrescription(t *testing.T, db *gorm.DB, mrn string, n int) *models.Prescription {
	t.Helper()
	patient := createPatient(t, db, mrn)
	consultation := createConsultation(t, db, patient.ID)
	med := createMedication(t, db, "Paracetamol "+mrn)

	p := &models.Prescription{
		ConsultationID: consultation.ID,
		PatientID:      patient.ID,
		PrescribedDate: time.Now().UTC(),
		Status:         models.PrescriptionActive,
	}
	for i := 0; i < n; i++ {
		p.Items = append(p.Items, models.PrescriptionItem{
			MedicationID: med.ID,
			Dosage:       "1 tablet",
			Frequency:    "tds",
			Duration:     5,
			DurationUnit: "days",
			Route:        "oral",
			Quantity:     15,
		})
	}
	require.NoError(t, NewPrescriptionRepo(db).Create(context.Background(), p))
	return p
}
