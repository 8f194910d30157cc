package connection

import (
	"time"

	"github.com/carelink/platform/internal/shared/types"
)

// Status is the connection lifecycle state, independent of any intake
// session's status.
type Status string

const (
	StatusActive       Status = "active"
	StatusDisconnected Status = "disconnected"
	StatusBlocked      Status = "blocked"
)

// Connection links one patient to one doctor. Every intake session
// hangs off a connection, and session ownership is always verified
// through the connection's patient.
type Connection struct {
	ID        types.ID  `json:"id"`
	PatientID types.ID  `json:"patient_id"`
	DoctorID  types.ID  `json:"doctor_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Profile names, populated on reads that join the users table.
	// Nullable in the store; display fallbacks happen at notification
	// time.
	PatientFirstName *string `json:"patient_first_name,omitempty"`
	PatientLastName  *string `json:"patient_last_name,omitempty"`
	DoctorFirstName  *string `json:"doctor_first_name,omitempty"`
	DoctorLastName   *string `json:"doctor_last_name,omitempty"`
}

// NewConnection creates an active connection between a patient and a
// doctor.
func NewConnection(patientID, doctorID types.ID) *Connection {
	now := time.Now()
	return &Connection{
		ID:        types.NewID(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateConnectionRequest is the payload for creating a connection.
type CreateConnectionRequest struct {
	PatientID types.ID `json:"patient_id"`
	DoctorID  types.ID `json:"doctor_id"`
}

// UpdateStatusRequest changes a connection's lifecycle state.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}
