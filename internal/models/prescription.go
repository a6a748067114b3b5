package models

import "time"

// Medication represents the medications catalog table
type Medication struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:200;not null;index" json:"name"`
	GenericName       string    `gorm:"size:200" json:"generic_name"`
	BrandName         string    `gorm:"size:200" json:"brand_name"`
	Category          string    `gorm:"size:100" json:"category"`
	Strength          string    `gorm:"size:50;not null" json:"strength"`
	Unit              string    `gorm:"size:20;not null;default:'tablet'" json:"unit"`
	Route             string    `gorm:"size:20;not null;default:'oral'" json:"route"`
	SideEffects       string    `gorm:"type:text" json:"side_effects"`
	Contraindications string    `gorm:"type:text" json:"contraindications"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName specifies the table name for Medication model
func (Medication) TableName() string {
	return "medications"
}

type PrescriptionStatus string

const (
	PrescriptionActive    PrescriptionStatus = "active"
	PrescriptionPartial   PrescriptionStatus = "partial"
	PrescriptionDispensed PrescriptionStatus = "dispensed"
	PrescriptionCancelled PrescriptionStatus = "cancelled"
	PrescriptionCompleted PrescriptionStatus = "completed"
)

// Manual transitions only. partial and dispensed are derived from item state
// by AggregatePrescriptionStatus.
var prescriptionTransitions = map[PrescriptionStatus][]PrescriptionStatus{
	PrescriptionActive:    {PrescriptionCancelled},
	PrescriptionPartial:   {PrescriptionCancelled, PrescriptionCompleted},
	PrescriptionDispensed: {PrescriptionCompleted},
	PrescriptionCancelled: {},
	PrescriptionCompleted: {},
}

func (s PrescriptionStatus) IsValid() bool {
	_, ok := prescriptionTransitions[s]
	return ok
}

func (s PrescriptionStatus) CanTransitionTo(next PrescriptionStatus) bool {
	if s == next {
		return s.IsValid()
	}
	for _, allowed := range prescriptionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsClosed reports whether the prescription no longer accepts items or dispensing.
func (s PrescriptionStatus) IsClosed() bool {
	return s == PrescriptionCancelled || s == PrescriptionCompleted
}

// AggregatePrescriptionStatus derives a prescription status from its item counts.
// Every item dispensed gives dispensed, some gives partial, none keeps current.
// Closed prescriptions are never changed.
func AggregatePrescriptionStatus(current PrescriptionStatus, total, dispensed int64) PrescriptionStatus {
	if current.IsClosed() || total == 0 {
		return current
	}
	switch {
	case dispensed >= total:
		return PrescriptionDispensed
	case dispensed > 0:
		return PrescriptionPartial
	default:
		return current
	}
}

// Prescription represents the prescriptions table.
// At most one prescription exists per consultation.
type Prescription struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	ConsultationID uint               `gorm:"not null;uniqueIndex" json:"consultation_id"`
	Consultation   *Consultation      `gorm:"foreignKey:ConsultationID;constraint:OnDelete:CASCADE" json:"-"`
	PatientID      uint               `gorm:"not null;index" json:"patient_id"`
	Patient        *Patient           `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"patient,omitempty"`
	PrescribedByID *uint              `gorm:"index" json:"prescribed_by_id,omitempty"`
	PrescribedDate time.Time          `gorm:"not null;index" json:"prescribed_date"`
	Status         PrescriptionStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	Notes          string             `gorm:"type:text" json:"notes"`

	Items []PrescriptionItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName specifies the table name for Prescription model
func (Prescription) TableName() string {
	return "prescriptions"
}

// PrescriptionItem represents the prescription_items table
type PrescriptionItem struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	PrescriptionID uint        `gorm:"not null;index" json:"prescription_id"`
	MedicationID   uint        `gorm:"not null;index" json:"medication_id"`
	Medication     *Medication `gorm:"foreignKey:MedicationID;constraint:OnDelete:RESTRICT" json:"medication,omitempty"`
	Dosage         string      `gorm:"size:100;not null" json:"dosage"`
	Frequency      string      `gorm:"size:20;not null" json:"frequency"`
	Duration       int         `gorm:"not null" json:"duration"`
	DurationUnit   string      `gorm:"size:20;not null;default:'days'" json:"duration_unit"`
	Route          string      `gorm:"size:20;not null;default:'oral'" json:"route"`
	Instructions   string      `gorm:"type:text" json:"instructions"`
	Quantity       int         `gorm:"not null" json:"quantity"`
	Refills        int         `gorm:"not null;default:0" json:"refills"`
	IsDispensed    bool        `gorm:"not null;default:false" json:"is_dispensed"`
	DispensedDate  *time.Time  `json:"dispensed_date,omitempty"`
	DispensedByID  *uint       `json:"dispensed_by_id,omitempty"`
}

// TableName specifies the table name for PrescriptionItem model
func (PrescriptionItem) TableName() string {
	return "prescription_items"
}
