package notification

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/carelink/platform/internal/shared/types"
)

func strPtr(s string) *string { return &s }

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		first *string
		last  *string
		want  string
	}{
		{"both parts", strPtr("Ana"), strPtr("Jovanovic"), "Ana Jovanovic"},
		{"first only", strPtr("Ana"), nil, "Ana"},
		{"last only", nil, strPtr("Jovanovic"), "Jovanovic"},
		{"both absent", nil, nil, "A patient"},
		{"both empty", strPtr(""), strPtr(""), "A patient"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.first, tt.last); got != tt.want {
				t.Errorf("DisplayName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreviewTruncation(t *testing.T) {
	short := "I have a headache"
	if got := Preview(short); got != short {
		t.Errorf("Short content must pass through unchanged, got %q", got)
	}

	exact := strings.Repeat("a", 100)
	if got := Preview(exact); got != exact {
		t.Error("Content at exactly the limit must not gain an ellipsis")
	}

	long := strings.Repeat("b", 150)
	got := Preview(long)
	if len(got) != 103 {
		t.Errorf("Preview length = %d, want 103", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Truncated preview must end with ellipsis, got %q", got[90:])
	}
}

// TestPreviewMultibyte verifies truncation counts characters, not bytes,
// so a multibyte rune straddling the limit is kept whole.
func TestPreviewMultibyte(t *testing.T) {
	wide := strings.Repeat("é", 100)
	if got := Preview(wide); got != wide {
		t.Error("100 multibyte characters must pass through unchanged")
	}

	straddling := strings.Repeat("a", 99) + "é and more symptoms"
	got := Preview(straddling)
	if !utf8.ValidString(got) {
		t.Fatalf("Truncated preview is not valid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 103 {
		t.Errorf("Preview rune count = %d, want 103", utf8.RuneCountInString(got))
	}
	if !strings.HasPrefix(got, strings.Repeat("a", 99)+"é") {
		t.Errorf("Character at the boundary must survive intact, got %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("Truncated preview must end with ellipsis")
	}
}

func TestConnectionChangedTargetsDoctor(t *testing.T) {
	d := NewDispatcher()
	doctor, conn, patient := types.NewID(), types.NewID(), types.NewID()

	n, err := d.ConnectionChanged(doctor, conn, patient, strPtr("Ana"), nil, "created")
	if err != nil {
		t.Fatalf("ConnectionChanged: %v", err)
	}

	if n.RecipientUserID != doctor {
		t.Errorf("Recipient = %s, want doctor %s", n.RecipientUserID, doctor)
	}
	if n.Type != TypeConnection {
		t.Errorf("Type = %s, want %s", n.Type, TypeConnection)
	}

	payload, ok := n.Payload.(ConnectionPayload)
	if !ok {
		t.Fatalf("Payload type = %T", n.Payload)
	}
	if payload.ConnectionID != conn || payload.PatientUserID != patient {
		t.Error("Payload must carry the connection and patient identifiers")
	}
	if payload.PatientName != "Ana" || payload.Action != "created" {
		t.Errorf("Payload = %+v", payload)
	}
}

func TestConnectionChangedRequiresRecipient(t *testing.T) {
	d := NewDispatcher()
	if _, err := d.ConnectionChanged("", types.NewID(), types.NewID(), nil, nil, "created"); err == nil {
		t.Error("Missing doctor recipient must be rejected")
	}
}

func TestMessageReceivedTargetsNonSender(t *testing.T) {
	d := NewDispatcher()
	patient, doctor := types.NewID(), types.NewID()
	conn, msg := types.NewID(), types.NewID()

	tests := []struct {
		name          string
		sender        types.ID
		wantRecipient types.ID
	}{
		{"patient sends, doctor receives", patient, doctor},
		{"doctor sends, patient receives", doctor, patient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := d.MessageReceived(tt.sender, patient, doctor, conn, msg, strPtr("Ana"), strPtr("J"), "patient", "hello")
			if err != nil {
				t.Fatalf("MessageReceived: %v", err)
			}
			if n.RecipientUserID != tt.wantRecipient {
				t.Errorf("Recipient = %s, want %s", n.RecipientUserID, tt.wantRecipient)
			}
		})
	}
}

func TestMessagePayloadComplete(t *testing.T) {
	d := NewDispatcher()
	patient, doctor := types.NewID(), types.NewID()
	conn, msg := types.NewID(), types.NewID()

	long := strings.Repeat("symptom detail ", 20)
	n, err := d.MessageReceived(patient, patient, doctor, conn, msg, nil, nil, "patient", long)
	if err != nil {
		t.Fatalf("MessageReceived: %v", err)
	}

	payload := n.Payload.(MessagePayload)
	if payload.ConnectionID != conn || payload.MessageID != msg {
		t.Error("Payload must carry connection and message identifiers")
	}
	if payload.SenderName != "A patient" {
		t.Errorf("SenderName = %q, want placeholder", payload.SenderName)
	}
	if payload.SenderRole != "patient" {
		t.Errorf("SenderRole = %q", payload.SenderRole)
	}
	if len(payload.Preview) != 103 || !strings.HasSuffix(payload.Preview, "...") {
		t.Errorf("Preview not truncated correctly: %d chars", len(payload.Preview))
	}
}

func TestIntakeReadyPayload(t *testing.T) {
	d := NewDispatcher()
	doctor, session, conn := types.NewID(), types.NewID(), types.NewID()

	n, err := d.IntakeReady(doctor, session, conn, strPtr("Ana"), strPtr("Jovanovic"), strPtr("persistent cough"))
	if err != nil {
		t.Fatalf("IntakeReady: %v", err)
	}

	if n.Type != TypeIntakeComplete {
		t.Errorf("Type = %s, want %s", n.Type, TypeIntakeComplete)
	}
	payload := n.Payload.(IntakeCompletePayload)
	if payload.SessionID != session || payload.ConnectionID != conn {
		t.Error("Payload must carry session and connection identifiers")
	}
	if payload.PatientName != "Ana Jovanovic" {
		t.Errorf("PatientName = %q", payload.PatientName)
	}
	if payload.ChiefComplaint != "persistent cough" {
		t.Errorf("ChiefComplaint = %q", payload.ChiefComplaint)
	}

	// Chief complaint is optional.
	n2, err := d.IntakeReady(doctor, session, conn, nil, nil, nil)
	if err != nil {
		t.Fatalf("IntakeReady without complaint: %v", err)
	}
	if n2.Payload.(IntakeCompletePayload).ChiefComplaint != "" {
		t.Error("Absent chief complaint must stay empty")
	}
}

func TestAppointmentPayload(t *testing.T) {
	d := NewDispatcher()
	recipient, appt, conn := types.NewID(), types.NewID(), types.NewID()
	at := time.Now().Add(48 * time.Hour)

	n, err := d.AppointmentAction(recipient, appt, conn, at, 30, "cancelled", "patient request")
	if err != nil {
		t.Fatalf("AppointmentAction: %v", err)
	}

	payload := n.Payload.(AppointmentPayload)
	if payload.AppointmentID != appt || payload.ConnectionID != conn {
		t.Error("Payload must carry appointment and connection identifiers")
	}
	if payload.Duration != 30 || payload.Action != "cancelled" || payload.CancelReason != "patient request" {
		t.Errorf("Payload = %+v", payload)
	}
	if !payload.ScheduledAt.Equal(at) {
		t.Error("ScheduledAt must be preserved")
	}
}

func TestNewNotificationDefaults(t *testing.T) {
	d := NewDispatcher()
	n, err := d.ConnectionChanged(types.NewID(), types.NewID(), types.NewID(), nil, nil, "created")
	if err != nil {
		t.Fatal(err)
	}
	if n.ID.IsZero() {
		t.Error("Notification must get an ID at construction")
	}
	if n.IsRead {
		t.Error("Notifications start unread")
	}
	if n.CreatedAt.IsZero() {
		t.Error("Notification must be stamped at construction")
	}
}
