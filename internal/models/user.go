package models

import "time"

// Role is a staff role. Capabilities per role live in internal/access.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleDoctor         Role = "doctor"
	RoleNurse          Role = "nurse"
	RoleRecordsOfficer Role = "records_officer"
	RolePharmacist     Role = "pharmacist"
	RoleLabTechnician  Role = "lab_technician"
	RoleReceptionist   Role = "receptionist"
)

// Roles lists every valid staff role.
var Roles = []Role{
	RoleAdmin, RoleDoctor, RoleNurse, RoleRecordsOfficer,
	RolePharmacist, RoleLabTechnician, RoleReceptionist,
}

func (r Role) IsValid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents the users table
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Username      string    `gorm:"uniqueIndex;not null;size:150" json:"username"`
	PasswordHash  string    `gorm:"not null;size:255" json:"-"`
	FirstName     string    `gorm:"size:150" json:"first_name"`
	LastName      string    `gorm:"size:150" json:"last_name"`
	Email         string    `gorm:"size:254" json:"email"`
	Role          Role      `gorm:"size:20;not null;default:'nurse'" json:"role"`
	EmployeeID    *string   `gorm:"uniqueIndex;size:20" json:"employee_id,omitempty"`
	Department    string    `gorm:"size:100" json:"department"`
	PhoneNumber   string    `gorm:"size:15" json:"phone_number"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	IsOnline      bool      `gorm:"not null;default:false" json:"is_online"`
	LastLoginIP   string    `gorm:"size:45" json:"last_login_ip,omitempty"`
	LoginAttempts int       `gorm:"not null;default:0" json:"login_attempts"`
	AccountLocked bool      `gorm:"not null;default:false" json:"account_locked"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// FullName returns "First Last", or the username when no name is set.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

// UserSession represents the user_sessions table.
// One row per login; the refresh token is stored hashed.
type UserSession struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	TokenHash  string     `gorm:"not null;size:64;uniqueIndex" json:"-"`
	IPAddress  string     `gorm:"size:45" json:"ip_address"`
	UserAgent  string     `gorm:"type:text" json:"user_agent"`
	LoginTime  time.Time  `gorm:"not null" json:"login_time"`
	LogoutTime *time.Time `json:"logout_time,omitempty"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	IsActive   bool       `gorm:"not null;default:true;index" json:"is_active"`
	User       *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for UserSession model
func (UserSession) TableName() string {
	return "user_sessions"
}

// LoginAttempt represents the login_attempts table
type LoginAttempt struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Username      string    `gorm:"size:150;not null;index" json:"username"`
	IPAddress     string    `gorm:"size:45" json:"ip_address"`
	WasSuccessful bool      `gorm:"not null" json:"was_successful"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`
}

// TableName specifies the table name for LoginAttempt model
func (LoginAttempt) TableName() string {
	return "login_attempts"
}
