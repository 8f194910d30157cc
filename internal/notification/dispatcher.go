package notification

import (
	"fmt"
	"time"

	"github.com/carelink/platform/internal/shared/types"
)

// Dispatcher maps domain events to notification rows. Recipient
// resolution is a pure function of the event kind and the entity graph:
// connection and intake events go to the doctor; message events go to
// the party that did not send.
type Dispatcher struct{}

// NewDispatcher creates a dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func newNotification(recipient types.ID, t Type, payload any) *Notification {
	return &Notification{
		ID:              types.NewID(),
		RecipientUserID: recipient,
		Type:            t,
		Payload:         payload,
		CreatedAt:       time.Now(),
	}
}

// ConnectionChanged targets the doctor of the connection.
func (d *Dispatcher) ConnectionChanged(doctorUserID, connectionID, patientUserID types.ID, patientFirst, patientLast *string, action string) (*Notification, error) {
	if doctorUserID.IsZero() {
		return nil, fmt.Errorf("connection notification requires a doctor recipient")
	}
	return newNotification(doctorUserID, TypeConnection, ConnectionPayload{
		ConnectionID:  connectionID,
		PatientUserID: patientUserID,
		PatientName:   DisplayName(patientFirst, patientLast),
		Action:        action,
	}), nil
}

// AppointmentAction targets the other party of the appointment's
// connection; the caller names the recipient because either side can
// act on an appointment.
func (d *Dispatcher) AppointmentAction(recipientUserID, appointmentID, connectionID types.ID, scheduledAt time.Time, durationMinutes int, action, cancelReason string) (*Notification, error) {
	if recipientUserID.IsZero() {
		return nil, fmt.Errorf("appointment notification requires a recipient")
	}
	return newNotification(recipientUserID, TypeAppointment, AppointmentPayload{
		AppointmentID: appointmentID,
		ConnectionID:  connectionID,
		ScheduledAt:   scheduledAt,
		Duration:      durationMinutes,
		Action:        action,
		CancelReason:  cancelReason,
	}), nil
}

// MessageReceived targets the non-sending party of the connection.
func (d *Dispatcher) MessageReceived(senderUserID, patientUserID, doctorUserID, connectionID, messageID types.ID, senderFirst, senderLast *string, senderRole, content string) (*Notification, error) {
	recipient := doctorUserID
	if senderUserID == doctorUserID {
		recipient = patientUserID
	}
	if recipient.IsZero() {
		return nil, fmt.Errorf("message notification requires a recipient")
	}
	return newNotification(recipient, TypeMessage, MessagePayload{
		ConnectionID: connectionID,
		MessageID:    messageID,
		SenderName:   DisplayName(senderFirst, senderLast),
		SenderRole:   senderRole,
		Preview:      Preview(content),
	}), nil
}

// IntakeReady targets the doctor of the connection once a session
// reaches ready.
func (d *Dispatcher) IntakeReady(doctorUserID, sessionID, connectionID types.ID, patientFirst, patientLast *string, chiefComplaint *string) (*Notification, error) {
	if doctorUserID.IsZero() {
		return nil, fmt.Errorf("intake notification requires a doctor recipient")
	}
	payload := IntakeCompletePayload{
		SessionID:    sessionID,
		ConnectionID: connectionID,
		PatientName:  DisplayName(patientFirst, patientLast),
	}
	if chiefComplaint != nil {
		payload.ChiefComplaint = *chiefComplaint
	}
	return newNotification(doctorUserID, TypeIntakeComplete, payload), nil
}

// IntakeReset targets the doctor when a patient rewinds a session. It
// is a connection-kind event because the reset changes the state of the
// relationship's intake, not a new completion. The row rides inside the
// reset transaction, so this builder only shapes it.
func (d *Dispatcher) IntakeReset(doctorUserID, connectionID, patientUserID types.ID, patientFirst, patientLast *string) (*Notification, error) {
	return d.ConnectionChanged(doctorUserID, connectionID, patientUserID, patientFirst, patientLast, "intake_reset")
}
