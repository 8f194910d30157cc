package appointment

import (
	"time"

	"github.com/carelink/platform/internal/shared/types"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment is a scheduled consultation on a connection. When it
// references an intake session, that session can no longer be reset.
type Appointment struct {
	ID              types.ID  `json:"id"`
	ConnectionID    types.ID  `json:"connection_id"`
	IntakeSessionID *types.ID `json:"intake_session_id,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          Status    `json:"status"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewAppointment schedules a consultation.
func NewAppointment(connectionID types.ID, sessionID *types.ID, at time.Time, durationMinutes int) *Appointment {
	now := time.Now()
	return &Appointment{
		ID:              types.NewID(),
		ConnectionID:    connectionID,
		IntakeSessionID: sessionID,
		ScheduledAt:     at,
		DurationMinutes: durationMinutes,
		Status:          StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ScheduleRequest is the payload for scheduling an appointment.
type ScheduleRequest struct {
	ConnectionID    types.ID  `json:"connection_id"`
	IntakeSessionID *types.ID `json:"intake_session_id,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// CancelRequest is the payload for cancelling an appointment.
type CancelRequest struct {
	Reason string `json:"reason"`
}
