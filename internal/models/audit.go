package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
	AuditView   AuditAction = "VIEW"
	AuditLogin  AuditAction = "LOGIN"
	AuditLogout AuditAction = "LOGOUT"
	AuditExport AuditAction = "EXPORT"
	AuditPrint  AuditAction = "PRINT"
)

// ErrAuditImmutable is returned when something tries to change a stored audit entry.
var ErrAuditImmutable = errors.New("audit log entries are append-only")

// AuditLog represents the audit_logs table
// Used for security tracking of every clinical and admin action
type AuditLog struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	UserID    *uint       `gorm:"index" json:"user_id"`
	User      *User       `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Action    AuditAction `gorm:"size:20;not null;index" json:"action"`
	ModelName string      `gorm:"size:100;not null" json:"model_name"`
	ObjectID  *uint       `json:"object_id,omitempty"`
	Details   string      `gorm:"type:text" json:"details"`
	IPAddress string      `gorm:"size:45" json:"ip_address"`
	UserAgent string      `gorm:"type:text" json:"user_agent"`
	Timestamp time.Time   `gorm:"not null;index" json:"timestamp"`
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
