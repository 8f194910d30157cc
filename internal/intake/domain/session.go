package domain

import (
	"fmt"
	"time"

	"github.com/carelink/platform/internal/shared/types"
)

// Status is the intake session lifecycle state. Progression is forward
// only: not_started -> in_progress -> ready -> reviewed. The only rewind
// is the reset operation, which is a separately gated transaction, not a
// state-machine transition.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusReviewed   Status = "reviewed"
)

// TerminationReason records why a conversation wound down early.
type TerminationReason string

const (
	TerminationAIDegraded      TerminationReason = "ai_degraded"
	TerminationPatientConclude TerminationReason = "patient_concluded"
)

// Session is the aggregate root for a patient intake conversation.
type Session struct {
	ID           types.ID `json:"id"`
	ConnectionID types.ID `json:"connection_id"`
	DisplayName  string   `json:"display_name"`

	Status          Status      `json:"status"`
	MedicalData     MedicalData `json:"medical_data"`
	Completeness    int         `json:"completeness"`
	ActiveAgentRole AgentRole   `json:"active_agent_role"`

	// Anti-loop counters
	FollowUpCounts       map[string]int    `json:"follow_up_counts"`
	AnsweredTopics       []string          `json:"answered_topics"`
	ConsecutiveErrors    int               `json:"consecutive_errors"`
	AIMessageCount       int               `json:"ai_message_count"`
	HasOfferedConclusion bool              `json:"has_offered_conclusion"`
	TerminationReason    TerminationReason `json:"termination_reason,omitempty"`

	// Populated only by the handover/investigator roles, cleared on reset
	ClinicalHandover *ClinicalHandover `json:"clinical_handover,omitempty"`
	DoctorThought    DoctorThought     `json:"doctor_thought"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *types.ID  `json:"reviewed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Domain events (not persisted, published after the write commits)
	domainEvents []Event
}

// Event is a domain event raised by session transitions.
type Event struct {
	Type      string
	SessionID types.ID
	Data      map[string]any
}

// Domain event types.
const (
	EventSessionStarted = "intake.session.started"
	EventSessionReady   = "intake.session.ready"
	EventTriageRouted   = "intake.triage.routed"
)

// NewSession creates a fresh session bound to a connection.
func NewSession(connectionID types.ID, displayName string) (*Session, error) {
	if connectionID.IsZero() {
		return nil, fmt.Errorf("connection is required")
	}

	now := time.Now()
	return &Session{
		ID:              types.NewID(),
		ConnectionID:    connectionID,
		DisplayName:     displayName,
		Status:          StatusNotStarted,
		ActiveAgentRole: RoleTriage,
		FollowUpCounts:  map[string]int{},
		AnsweredTopics:  []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Start moves the session into in_progress on the first admitted patient
// message. Idempotent for an already-running session.
func (s *Session) Start() {
	if s.Status != StatusNotStarted {
		return
	}
	now := time.Now()
	s.Status = StatusInProgress
	s.StartedAt = &now
	s.UpdatedAt = now
	s.addEvent(EventSessionStarted, nil)
}

// ApplyExtraction merges newly-extracted fields into the record,
// recomputes completeness, and re-derives the active role from the
// outstanding fields. Completeness can only grow because the merge rule
// never unsets a field.
func (s *Session) ApplyExtraction(update MedicalData, handover *ClinicalHandover, thought *DoctorThought) {
	s.MedicalData.Merge(update)
	s.Completeness = s.MedicalData.Completeness()
	s.ActiveAgentRole = RoleFor(s.MedicalData)

	if handover != nil {
		s.ClinicalHandover = handover
	}
	if thought != nil {
		s.DoctorThought = *thought
	}

	s.UpdatedAt = time.Now()
}

// MarkReady transitions in_progress -> ready once the handover is
// written. Terminal conversation events hang off this transition.
func (s *Session) MarkReady() error {
	if s.Status != StatusInProgress {
		return fmt.Errorf("can only complete an in-progress session")
	}

	now := time.Now()
	s.Status = StatusReady
	s.CompletedAt = &now
	s.UpdatedAt = now
	s.addEvent(EventSessionReady, map[string]any{
		"completeness": s.Completeness,
	})

	return nil
}

// MarkReviewed is the single doctor-initiated transition: ready ->
// reviewed. Patient-side operations never set the review stamps.
func (s *Session) MarkReviewed(doctorID types.ID) error {
	if s.Status != StatusReady {
		return fmt.Errorf("can only review a session that is ready")
	}

	now := time.Now()
	s.Status = StatusReviewed
	s.ReviewedAt = &now
	s.ReviewedBy = &doctorID
	s.UpdatedAt = now

	return nil
}

// --- Anti-loop safeguards ---

// IsTopicAnswered reports whether a topic was already satisfied; answered
// topics are never re-asked.
func (s *Session) IsTopicAnswered(topic string) bool {
	for _, t := range s.AnsweredTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// MarkTopicAnswered records a satisfied topic and clears its follow-up
// budget.
func (s *Session) MarkTopicAnswered(topic string) {
	if topic == "" || s.IsTopicAnswered(topic) {
		return
	}
	s.AnsweredTopics = append(s.AnsweredTopics, topic)
	delete(s.FollowUpCounts, topic)
	s.UpdatedAt = time.Now()
}

// AllowFollowUp consumes one follow-up attempt for a topic and reports
// whether the budget still allows re-asking it.
func (s *Session) AllowFollowUp(topic string, maxFollowUps int) bool {
	if topic == "" || s.IsTopicAnswered(topic) {
		return false
	}
	if s.FollowUpCounts == nil {
		s.FollowUpCounts = map[string]int{}
	}
	if s.FollowUpCounts[topic] >= maxFollowUps {
		return false
	}
	s.FollowUpCounts[topic]++
	s.UpdatedAt = time.Now()
	return true
}

// RecordAIFailure bumps the consecutive failure streak.
func (s *Session) RecordAIFailure() {
	s.ConsecutiveErrors++
	s.UpdatedAt = time.Now()
}

// RecordAISuccess resets the failure streak.
func (s *Session) RecordAISuccess() {
	if s.ConsecutiveErrors != 0 {
		s.ConsecutiveErrors = 0
	}
	s.UpdatedAt = time.Now()
}

// AIDegraded reports whether the failure streak crossed the threshold,
// in which case the turn answers with the canned reply instead of
// invoking the AI service.
func (s *Session) AIDegraded(threshold int) bool {
	return s.ConsecutiveErrors >= threshold
}

// CountAIMessage bumps the model message counter and, past the nudge
// threshold without completion, marks the session as having offered to
// conclude. Advisory only; nothing is forced.
func (s *Session) CountAIMessage(nudgeAfter int) {
	s.AIMessageCount++
	if s.AIMessageCount > nudgeAfter && s.Status == StatusInProgress && !s.HasOfferedConclusion {
		s.HasOfferedConclusion = true
	}
	s.UpdatedAt = time.Now()
}

// --- Reset ---

// Resettable reports whether the status gate allows a reset. Completed
// and reviewed sessions are protected; the appointment gate is checked
// separately against the store.
func (s *Session) Resettable() bool {
	return s.Status != StatusReady && s.Status != StatusReviewed
}

// ResetToInitial rewinds every mutable field to its initial value.
// Identity is untouched: ID, ConnectionID, DisplayName and CreatedAt
// survive a reset. Callers persist this together with the message
// delete in one transaction.
func (s *Session) ResetToInitial() {
	s.Status = StatusNotStarted
	s.MedicalData = MedicalData{}
	s.Completeness = 0
	s.ActiveAgentRole = RoleTriage
	s.FollowUpCounts = map[string]int{}
	s.AnsweredTopics = []string{}
	s.ConsecutiveErrors = 0
	s.AIMessageCount = 0
	s.HasOfferedConclusion = false
	s.TerminationReason = ""
	s.ClinicalHandover = nil
	s.DoctorThought = DoctorThought{}
	s.StartedAt = nil
	s.CompletedAt = nil
	s.ReviewedAt = nil
	s.ReviewedBy = nil
	s.UpdatedAt = time.Now()
}

// --- Domain events ---

// RecordTriageRouted raises the triage event consumed by the audit
// stream.
func (s *Session) RecordTriageRouted(route string, reason string) {
	s.addEvent(EventTriageRouted, map[string]any{
		"route":  route,
		"reason": reason,
	})
}

// GetDomainEvents returns and clears pending domain events.
func (s *Session) GetDomainEvents() []Event {
	events := s.domainEvents
	s.domainEvents = nil
	return events
}

func (s *Session) addEvent(eventType string, data map[string]any) {
	s.domainEvents = append(s.domainEvents, Event{
		Type:      eventType,
		SessionID: s.ID,
		Data:      data,
	})
}
