package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hms-backend/internal/models"
	"hms-backend/pkg/utils"
)

type seedUser struct {
	user     models.User
	password string
}

func strPtr(s string) *string { return &s }

var staff = []seedUser{
	{models.User{Username: "admin", Email: "admin@baringohospital.go.ke", FirstName: "John", LastName: "Admin",
		Role: models.RoleAdmin, EmployeeID: strPtr("AD001"), Department: "Administration", PhoneNumber: "+254700000001"}, "Admin@2026"},
	{models.User{Username: "doctor1", Email: "doctor1@baringohospital.go.ke", FirstName: "Sarah", LastName: "Kimani",
		Role: models.RoleDoctor, EmployeeID: strPtr("DOC001"), Department: "Internal Medicine", PhoneNumber: "+254700000002"}, "Doctor@2026"},
	{models.User{Username: "doctor2", Email: "doctor2@baringohospital.go.ke", FirstName: "James", LastName: "Omondi",
		Role: models.RoleDoctor, EmployeeID: strPtr("DOC002"), Department: "Pediatrics", PhoneNumber: "+254700000003"}, "Doctor@2026"},
	{models.User{Username: "nurse1", Email: "nurse1@baringohospital.go.ke", FirstName: "Mary", LastName: "Wanjiku",
		Role: models.RoleNurse, EmployeeID: strPtr("NUR001"), Department: "Emergency", PhoneNumber: "+254700000004"}, "Nurse@2026"},
	{models.User{Username: "records", Email: "records@baringohospital.go.ke", FirstName: "Peter", LastName: "Kipchoge",
		Role: models.RoleRecordsOfficer, EmployeeID: strPtr("REC001"), Department: "Records", PhoneNumber: "+254700000005"}, "Records@2026"},
	{models.User{Username: "pharmacist", Email: "pharmacy@baringohospital.go.ke", FirstName: "Lucy", LastName: "Akinyi",
		Role: models.RolePharmacist, EmployeeID: strPtr("PHA001"), Department: "Pharmacy", PhoneNumber: "+254700000006"}, "Pharm@2026"},
}

var catalog = []models.Medication{
	{Name: "Paracetamol", GenericName: "Acetaminophen", Strength: "500mg", Unit: "tablet", Route: "oral", Category: "Analgesic"},
	{Name: "Amoxicillin", GenericName: "Amoxicillin", Strength: "500mg", Unit: "capsule", Route: "oral", Category: "Antibiotic"},
	{Name: "Ibuprofen", GenericName: "Ibuprofen", Strength: "400mg", Unit: "tablet", Route: "oral", Category: "NSAID"},
	{Name: "Metformin", GenericName: "Metformin Hydrochloride", Strength: "500mg", Unit: "tablet", Route: "oral", Category: "Antidiabetic"},
	{Name: "Lisinopril", GenericName: "Lisinopril", Strength: "10mg", Unit: "tablet", Route: "oral", Category: "Antihypertensive"},
	{Name: "Salbutamol Inhaler", GenericName: "Albuterol", Strength: "100mcg", Unit: "inhalation", Route: "inhaled", Category: "Bronchodilator"},
	{Name: "ORS", GenericName: "Oral Rehydration Salts", Strength: "20.5g", Unit: "sachet", Route: "oral", Category: "Electrolyte"},
	{Name: "Artemether/Lumefantrine", GenericName: "Coartem", Strength: "20/120mg", Unit: "tablet", Route: "oral", Category: "Antimalarial"},
	{Name: "Ceftriaxone Injection", GenericName: "Ceftriaxone", Strength: "1g", Unit: "ml", Route: "iv", Category: "Antibiotic"},
	{Name: "Omeprazole", GenericName: "Omeprazole", Strength: "20mg", Unit: "capsule", Route: "oral", Category: "PPI"},
}

// Seed inserts the initial staff accounts and medication catalog.
// Existing rows are left as they are, so it is safe to run repeatedly.
func Seed(db *gorm.DB, log *zap.Logger) error {
	for _, s := range staff {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", s.user.Username).Count(&count).Error; err != nil {
			return fmt.Errorf("checking user %s: %w", s.user.Username, err)
		}
		if count > 0 {
			log.Info("user already exists", zap.String("username", s.user.Username))
			continue
		}

		hash, err := utils.HashPassword(s.password)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", s.user.Username, err)
		}
		u := s.user
		u.PasswordHash = hash
		u.IsActive = true
		if err := db.Create(&u).Error; err != nil {
			return fmt.Errorf("creating user %s: %w", u.Username, err)
		}
		log.Info("created user", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	}

	for _, m := range catalog {
		med := m
		med.IsActive = true
		result := db.Where(models.Medication{Name: med.Name}).FirstOrCreate(&med)
		if result.Error != nil {
			return fmt.Errorf("creating medication %s: %w", med.Name, result.Error)
		}
		if result.RowsAffected > 0 {
			log.Info("created medication", zap.String("name", med.Name))
		}
	}

	return nil
}
