package models

import (
	"strings"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

// Patient represents the patients table.
// Rows are never hard-deleted; deactivation clears IsActive.
type Patient struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MRN         string    `gorm:"uniqueIndex;size:20;not null" json:"mrn"`
	FirstName   string    `gorm:"size:100;not null;index:idx_patients_name,priority:2" json:"first_name"`
	MiddleName  string    `gorm:"size:100" json:"middle_name"`
	LastName    string    `gorm:"size:100;not null;index:idx_patients_name,priority:1" json:"last_name"`
	DateOfBirth time.Time `gorm:"type:date;not null" json:"date_of_birth"`
	Gender      Gender    `gorm:"size:1;not null" json:"gender"`
	BloodGroup  string    `gorm:"size:10;not null;default:'UNKNOWN'" json:"blood_group"`

	PhoneNumber      string `gorm:"size:15;not null" json:"phone_number"`
	AlternativePhone string `gorm:"size:15" json:"alternative_phone"`
	Email            string `gorm:"size:254" json:"email"`

	County    string `gorm:"size:100;not null;default:'Baringo'" json:"county"`
	SubCounty string `gorm:"size:100" json:"sub_county"`
	Village   string `gorm:"size:200" json:"village"`
	Landmark  string `gorm:"size:200" json:"landmark"`

	NextOfKinName         string `gorm:"size:200" json:"next_of_kin_name"`
	NextOfKinRelationship string `gorm:"size:50" json:"next_of_kin_relationship"`
	NextOfKinPhone        string `gorm:"size:15" json:"next_of_kin_phone"`

	Allergies         string `gorm:"type:text" json:"allergies"`
	ChronicConditions string `gorm:"type:text" json:"chronic_conditions"`
	Disabilities      string `gorm:"type:text" json:"disabilities"`

	NationalID *string `gorm:"uniqueIndex;size:10" json:"national_id,omitempty"`
	NHIFNumber string  `gorm:"size:20" json:"nhif_number"`

	CreatedByID *uint     `gorm:"index" json:"created_by_id,omitempty"`
	CreatedBy   *User     `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`

	EmergencyContacts []EmergencyContact `gorm:"constraint:OnDelete:CASCADE" json:"emergency_contacts,omitempty"`
}

// TableName specifies the table name for Patient model
func (Patient) TableName() string {
	return "patients"
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// AgeAt returns the completed years of age on the given date.
func (p Patient) AgeAt(on time.Time) int {
	born := p.DateOfBirth
	age := on.Year() - born.Year()
	if on.Month() < born.Month() || (on.Month() == born.Month() && on.Day() < born.Day()) {
		age--
	}
	return age
}

// AgeGroup buckets an age for clinical display.
func AgeGroup(age int) string {
	switch {
	case age < 1:
		return "Infant"
	case age < 5:
		return "Toddler"
	case age < 13:
		return "Child"
	case age < 18:
		return "Adolescent"
	case age < 60:
		return "Adult"
	default:
		return "Elderly"
	}
}

// EmergencyContact represents the emergency_contacts table
type EmergencyContact struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	PatientID    uint   `gorm:"not null;index" json:"patient_id"`
	Name         string `gorm:"size:200;not null" json:"name"`
	Relationship string `gorm:"size:50;not null" json:"relationship"`
	PhoneNumber  string `gorm:"size:15;not null" json:"phone_number"`
	IsPrimary    bool   `gorm:"not null;default:false" json:"is_primary"`
}

// TableName specifies the table name for EmergencyContact model
func (EmergencyContact) TableName() string {
	return "emergency_contacts"
}

// MRNSequence is the durable per-prefix, per-year identifier counter.
type MRNSequence struct {
	Prefix    string `gorm:"primaryKey;size:10"`
	Year      int    `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64  `gorm:"not null;default:0"`
}

// TableName specifies the table name for MRNSequence model
func (MRNSequence) TableName() string {
	return "mrn_sequences"
}
