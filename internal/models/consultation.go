package models

import (
	"time"

	"gorm.io/gorm"

	"hms-backend/internal/clinical"
)

type ConsultationStatus string

const (
	ConsultationScheduled  ConsultationStatus = "scheduled"
	ConsultationWaiting    ConsultationStatus = "waiting"
	ConsultationInProgress ConsultationStatus = "in_progress"
	ConsultationCompleted  ConsultationStatus = "completed"
	ConsultationCancelled  ConsultationStatus = "cancelled"
)

var consultationTransitions = map[ConsultationStatus][]ConsultationStatus{
	ConsultationScheduled:  {ConsultationWaiting, ConsultationInProgress, ConsultationCancelled},
	ConsultationWaiting:    {ConsultationInProgress, ConsultationCancelled},
	ConsultationInProgress: {ConsultationCompleted, ConsultationCancelled},
	ConsultationCompleted:  {},
	ConsultationCancelled:  {},
}

func (s ConsultationStatus) IsValid() bool {
	_, ok := consultationTransitions[s]
	return ok
}

// CanTransitionTo reports whether a consultation may move from s to next.
// Staying in the same state is always allowed.
func (s ConsultationStatus) CanTransitionTo(next ConsultationStatus) bool {
	if s == next {
		return s.IsValid()
	}
	for _, allowed := range consultationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type VisitType string

const (
	VisitNew       VisitType = "new"
	VisitFollowUp  VisitType = "follow_up"
	VisitEmergency VisitType = "emergency"
	VisitReview    VisitType = "review"
	VisitReferral  VisitType = "referral"
)

// Consultation represents the consultations table
type Consultation struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	PatientID uint               `gorm:"not null;index:idx_consultations_patient_date,priority:1" json:"patient_id"`
	Patient   *Patient           `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"patient,omitempty"`
	DoctorID  *uint              `gorm:"index:idx_consultations_doctor_date,priority:1" json:"doctor_id,omitempty"`
	Doctor    *User              `gorm:"foreignKey:DoctorID;constraint:OnDelete:SET NULL" json:"doctor,omitempty"`
	VisitDate time.Time          `gorm:"type:date;not null;index:idx_consultations_patient_date,priority:2;index:idx_consultations_doctor_date,priority:2" json:"visit_date"`
	VisitTime string             `gorm:"size:8;not null" json:"visit_time"`
	VisitType VisitType          `gorm:"size:20;not null;default:'new'" json:"visit_type"`
	Status    ConsultationStatus `gorm:"size:20;not null;default:'scheduled';index" json:"status"`

	ChiefComplaint           string `gorm:"type:text;not null" json:"chief_complaint"`
	HistoryPresentingIllness string `gorm:"type:text" json:"history_presenting_illness"`

	// Vital signs
	Temperature            *float64 `gorm:"type:decimal(4,1)" json:"temperature,omitempty"`
	HeartRate              *int     `json:"heart_rate,omitempty"`
	RespiratoryRate        *int     `json:"respiratory_rate,omitempty"`
	BloodPressureSystolic  *int     `json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *int     `json:"blood_pressure_diastolic,omitempty"`
	OxygenSaturation       *int     `json:"oxygen_saturation,omitempty"`
	Weight                 *float64 `gorm:"type:decimal(5,2)" json:"weight,omitempty"`
	Height                 *float64 `gorm:"type:decimal(5,2)" json:"height,omitempty"`
	BMI                    *float64 `gorm:"column:bmi;type:decimal(6,2)" json:"bmi,omitempty"`

	PhysicalExamination   string `gorm:"type:text" json:"physical_examination"`
	Diagnosis             string `gorm:"type:text;not null" json:"diagnosis"`
	DifferentialDiagnosis string `gorm:"type:text" json:"differential_diagnosis"`
	TreatmentPlan         string `gorm:"type:text" json:"treatment_plan"`
	Notes                 string `gorm:"type:text" json:"notes"`

	FollowUpDate  *time.Time `gorm:"type:date" json:"follow_up_date,omitempty"`
	FollowUpNotes string     `gorm:"type:text" json:"follow_up_notes"`

	CreatedByID *uint     `gorm:"index" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Diagnoses []Diagnosis `gorm:"constraint:OnDelete:CASCADE" json:"diagnoses,omitempty"`
	LabOrders []LabOrder  `gorm:"constraint:OnDelete:CASCADE" json:"lab_orders,omitempty"`
}

// TableName specifies the table name for Consultation model
func (Consultation) TableName() string {
	return "consultations"
}

// BeforeSave derives BMI from weight and height on every write,
// discarding any value the caller supplied.
func (c *Consultation) BeforeSave(tx *gorm.DB) error {
	c.BMI = clinical.ComputeBMI(c.Weight, c.Height)
	return nil
}

// Diagnosis represents the diagnoses table (ICD-10 coded).
type Diagnosis struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ConsultationID uint   `gorm:"not null;index" json:"consultation_id"`
	Code           string `gorm:"size:20" json:"code"`
	Description    string `gorm:"size:500;not null" json:"description"`
	IsPrimary      bool   `gorm:"not null;default:false" json:"is_primary"`
	Notes          string `gorm:"type:text" json:"notes"`
}

// TableName specifies the table name for Diagnosis model
func (Diagnosis) TableName() string {
	return "diagnoses"
}

type LabOrderStatus string

const (
	LabOrdered    LabOrderStatus = "ordered"
	LabCollected  LabOrderStatus = "collected"
	LabProcessing LabOrderStatus = "processing"
	LabCompleted  LabOrderStatus = "completed"
	LabCancelled  LabOrderStatus = "cancelled"
)

var labOrderTransitions = map[LabOrderStatus][]LabOrderStatus{
	LabOrdered:    {LabCollected, LabCancelled},
	LabCollected:  {LabProcessing, LabCancelled},
	LabProcessing: {LabCompleted, LabCancelled},
	LabCompleted:  {},
	LabCancelled:  {},
}

func (s LabOrderStatus) IsValid() bool {
	_, ok := labOrderTransitions[s]
	return ok
}

func (s LabOrderStatus) CanTransitionTo(next LabOrderStatus) bool {
	if s == next {
		return s.IsValid()
	}
	for _, allowed := range labOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type LabPriority string

const (
	PriorityRoutine LabPriority = "routine"
	PriorityUrgent  LabPriority = "urgent"
	PriorityStat    LabPriority = "stat"
)

// LabOrder represents the lab_orders table
type LabOrder struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConsultationID uint           `gorm:"not null;index" json:"consultation_id"`
	TestName       string         `gorm:"size:200;not null" json:"test_name"`
	Priority       LabPriority    `gorm:"size:20;not null;default:'routine'" json:"priority"`
	Status         LabOrderStatus `gorm:"size:20;not null;default:'ordered';index" json:"status"`
	OrderedByID    *uint          `gorm:"index" json:"ordered_by_id,omitempty"`
	OrderedDate    time.Time      `gorm:"not null" json:"ordered_date"`
	ClinicalNotes  string         `gorm:"type:text" json:"clinical_notes"`
	Results        string         `gorm:"type:text" json:"results"`
	ResultDate     *time.Time     `json:"result_date,omitempty"`
	PerformedByID  *uint          `json:"performed_by_id,omitempty"`
}

// TableName specifies the table name for LabOrder model
func (LabOrder) TableName() string {
	return "lab_orders"
}
