package domain

// AgentRole is one of the five fixed conversational personas. The set is
// closed: every role decision walks the priority table below, and the
// client never picks a role.
type AgentRole string

const (
	RoleTriage               AgentRole = "triage"
	RoleClinicalInvestigator AgentRole = "clinical_investigator"
	RoleRecordsClerk         AgentRole = "records_clerk"
	RoleHistorySpecialist    AgentRole = "history_specialist"
	RoleHandoverSpecialist   AgentRole = "handover_specialist"
)

// AllRoles returns the closed role set in priority order.
func AllRoles() []AgentRole {
	return []AgentRole{
		RoleTriage,
		RoleClinicalInvestigator,
		RoleRecordsClerk,
		RoleHistorySpecialist,
		RoleHandoverSpecialist,
	}
}

// IsValidRole reports whether r is one of the five fixed roles.
func IsValidRole(r AgentRole) bool {
	switch r {
	case RoleTriage, RoleClinicalInvestigator, RoleRecordsClerk,
		RoleHistorySpecialist, RoleHandoverSpecialist:
		return true
	}
	return false
}

// roleOutstanding maps each role to the check deciding whether its
// portion of the medical record is still outstanding.
var roleOutstanding = []struct {
	role AgentRole
	open func(md MedicalData) bool
}{
	{RoleTriage, func(md MedicalData) bool {
		return md.ChiefComplaint == nil
	}},
	{RoleClinicalInvestigator, func(md MedicalData) bool {
		return md.HistoryOfPresentIllness == nil || md.ReviewOfSystems == nil
	}},
	{RoleRecordsClerk, func(md MedicalData) bool {
		return !md.RecordsChecked || md.Medications == nil || md.Allergies == nil
	}},
	{RoleHistorySpecialist, func(md MedicalData) bool {
		return !md.HistoryChecked || md.PastMedicalHistory == nil || md.FamilySocialHistory == nil
	}},
}

// RoleFor picks the active role from the outstanding fields: the first
// role in priority order with open work, or the handover specialist when
// the record is fully collected.
func RoleFor(md MedicalData) AgentRole {
	for _, entry := range roleOutstanding {
		if entry.open(md) {
			return entry.role
		}
	}
	return RoleHandoverSpecialist
}
