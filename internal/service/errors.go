package service

import (
	"errors"
	"strings"

	"hms-backend/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account locked, contact an administrator")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")

	ErrPatientNotFound      = errors.New("patient not found")
	ErrConsultationNotFound = errors.New("consultation not found")
	ErrLabOrderNotFound     = errors.New("lab order not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrItemNotFound         = errors.New("prescription item not found")
	ErrMedicationNotFound   = errors.New("medication not found")
	ErrUserNotFound         = errors.New("user not found")

	ErrMRNConflict         = errors.New("could not allocate a unique MRN, retry the registration")
	ErrDuplicateNationalID = errors.New("a patient with this national ID already exists")
	ErrDuplicateUser       = errors.New("username or employee ID already in use")
	ErrPrescriptionExists  = errors.New("consultation already has a prescription")
	ErrPrescriptionClosed  = errors.New("prescription is cancelled or completed")
	ErrAlreadyDispensed    = errors.New("item already dispensed")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrConcurrentUpdate    = errors.New("record was changed by another user, reload and retry")
	ErrQueryTooShort       = errors.New("search term must be at least 2 characters")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Actor is the authenticated staff member a service call runs on behalf of.
type Actor struct {
	UserID    uint
	Role      models.Role
	IPAddress string
	UserAgent string
}
