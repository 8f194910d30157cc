package notification

import (
	"strings"
	"time"

	"github.com/carelink/platform/internal/shared/types"
)

// Type is the notification event kind. The set is closed; every row in
// the store carries exactly one of these.
type Type string

const (
	TypeConnection     Type = "connection"
	TypeAppointment    Type = "appointment"
	TypeMessage        Type = "message"
	TypeIntakeComplete Type = "intake_complete"
)

// Notification is an immutable in-app notification row. Only the read
// flag changes after creation.
type Notification struct {
	ID              types.ID  `json:"id"`
	RecipientUserID types.ID  `json:"recipient_user_id"`
	Type            Type      `json:"type"`
	Payload         any       `json:"payload"`
	IsRead          bool      `json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}

// ConnectionPayload accompanies connection lifecycle changes.
type ConnectionPayload struct {
	ConnectionID  types.ID `json:"connection_id"`
	PatientUserID types.ID `json:"patient_user_id"`
	PatientName   string   `json:"patient_name"`
	Action        string   `json:"action"` // created, disconnected, blocked
}

// AppointmentPayload accompanies appointment actions.
type AppointmentPayload struct {
	AppointmentID types.ID  `json:"appointment_id"`
	ConnectionID  types.ID  `json:"connection_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Duration      int       `json:"duration"` // minutes
	Action        string    `json:"action"`   // scheduled, cancelled
	CancelReason  string    `json:"cancel_reason,omitempty"`
}

// MessagePayload accompanies a received chat message.
type MessagePayload struct {
	ConnectionID types.ID `json:"connection_id"`
	MessageID    types.ID `json:"message_id"`
	SenderName   string   `json:"sender_name"`
	SenderRole   string   `json:"sender_role"`
	Preview      string   `json:"preview"`
}

// IntakeCompletePayload accompanies an intake session becoming ready
// for doctor review.
type IntakeCompletePayload struct {
	SessionID      types.ID `json:"session_id"`
	ConnectionID   types.ID `json:"connection_id"`
	PatientName    string   `json:"patient_name"`
	ChiefComplaint string   `json:"chief_complaint,omitempty"`
}

// previewLimit bounds the message preview carried in a notification.
const previewLimit = 100

// Preview truncates message content to the preview limit, appending an
// ellipsis only when content was actually dropped. The limit counts
// runes, not bytes, so a multibyte character is never split.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "..."
}

// DisplayName concatenates the available name parts, falling back to a
// neutral placeholder when both are absent.
func DisplayName(first, last *string) string {
	var parts []string
	if first != nil && *first != "" {
		parts = append(parts, *first)
	}
	if last != nil && *last != "" {
		parts = append(parts, *last)
	}
	if len(parts) == 0 {
		return "A patient"
	}
	return strings.Join(parts, " ")
}
