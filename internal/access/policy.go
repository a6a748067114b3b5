// Package access is the role based capability table for staff users.
//
// Every check is a static membership test: no per-object rules and no
// policy data loaded at runtime.
package access

import "hms-backend/internal/models"

type Capability string

const (
	ViewPatient        Capability = "view_patient"
	EditPatient        Capability = "edit_patient"
	RegisterPatient    Capability = "register_patient"
	DeactivatePatient  Capability = "deactivate_patient"
	ViewConsultation   Capability = "view_consultation"
	RecordConsultation Capability = "record_consultation"
	OrderLab           Capability = "order_lab"
	ProcessLab         Capability = "process_lab"
	ViewPrescription   Capability = "view_prescription"
	Prescribe          Capability = "prescribe"
	Dispense           Capability = "dispense"
	ManageMedications  Capability = "manage_medications"
	ViewReports        Capability = "view_reports"
	ViewAudit          Capability = "view_audit"
	ManageUsers        Capability = "manage_users"
)

type roleSet map[models.Role]struct{}

func roles(rs ...models.Role) roleSet {
	set := make(roleSet, len(rs))
	for _, r := range rs {
		set[r] = struct{}{}
	}
	return set
}

var table = map[Capability]roleSet{
	ViewPatient:        roles(models.RoleAdmin, models.RoleDoctor, models.RoleNurse, models.RoleRecordsOfficer),
	EditPatient:        roles(models.RoleAdmin, models.RoleDoctor, models.RoleNurse),
	RegisterPatient:    roles(models.RoleAdmin, models.RoleDoctor, models.RoleNurse, models.RoleRecordsOfficer, models.RoleReceptionist),
	DeactivatePatient:  roles(models.RoleAdmin, models.RoleRecordsOfficer),
	ViewConsultation:   roles(models.RoleAdmin, models.RoleDoctor, models.RoleNurse, models.RoleRecordsOfficer, models.RoleLabTechnician),
	RecordConsultation: roles(models.RoleAdmin, models.RoleDoctor, models.RoleNurse),
	OrderLab:           roles(models.RoleAdmin, models.RoleDoctor),
	ProcessLab:         roles(models.RoleAdmin, models.RoleDoctor, models.RoleLabTechnician),
	ViewPrescription:   roles(models.RoleAdmin, models.RoleDoctor, models.RoleNurse, models.RolePharmacist),
	Prescribe:          roles(models.RoleAdmin, models.RoleDoctor),
	Dispense:           roles(models.RoleAdmin, models.RolePharmacist),
	ManageMedications:  roles(models.RoleAdmin, models.RolePharmacist),
	ViewReports:        roles(models.RoleAdmin, models.RoleRecordsOfficer),
	ViewAudit:          roles(models.RoleAdmin),
	ManageUsers:        roles(models.RoleAdmin),
}

// Can reports whether role holds capability. Unknown roles and
// capabilities are denied.
func Can(role models.Role, capability Capability) bool {
	set, ok := table[capability]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

func CanViewPatient(role models.Role) bool { return Can(role, ViewPatient) }

func CanEditPatient(role models.Role) bool { return Can(role, EditPatient) }

func CanViewReports(role models.Role) bool { return Can(role, ViewReports) }

// Capabilities lists everything role may do, used by GET /auth/me.
func Capabilities(role models.Role) []Capability {
	var out []Capability
	for _, c := range allCapabilities {
		if Can(role, c) {
			out = append(out, c)
		}
	}
	return out
}

var allCapabilities = []Capability{
	ViewPatient, EditPatient, RegisterPatient, DeactivatePatient,
	ViewConsultation, RecordConsultation, OrderLab, ProcessLab,
	ViewPrescription, Prescribe, Dispense, ManageMedications,
	ViewReports, ViewAudit, ManageUsers,
}
