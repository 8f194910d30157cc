package intake

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/carelink/platform/internal/ai"
	"github.com/carelink/platform/internal/audit"
	"github.com/carelink/platform/internal/connection"
	"github.com/carelink/platform/internal/intake/domain"
	"github.com/carelink/platform/internal/notification"
	"github.com/carelink/platform/internal/shared/auth"
	"github.com/carelink/platform/internal/shared/config"
	"github.com/carelink/platform/internal/shared/errors"
	"github.com/carelink/platform/internal/shared/events"
	"github.com/carelink/platform/internal/shared/metrics"
	"github.com/carelink/platform/internal/shared/types"
	"github.com/carelink/platform/internal/triage"
)

// fallbackReply answers a turn when the extraction service is down or
// degraded. The patient's message is already persisted by then.
const fallbackReply = "I'm sorry, I'm having trouble processing that right now. Your message has been saved and the care team will see it."

// AIClient is the extraction service surface the turn needs.
type AIClient interface {
	Enabled() bool
	Turn(ctx context.Context, req ai.TurnRequest) (*ai.TurnResult, error)
}

// ConnectionReader resolves a session's connection for ownership checks
// and notification targeting.
type ConnectionReader interface {
	GetByID(ctx context.Context, id types.ID) (*connection.Connection, error)
}

// AppointmentChecker reports whether any appointment references a
// session, which blocks resets.
type AppointmentChecker interface {
	ExistsForSession(ctx context.Context, sessionID types.ID) (bool, error)
}

// NotificationStore persists notification rows outside a transaction.
type NotificationStore interface {
	Create(ctx context.Context, n *notification.Notification) error
}

// Service orchestrates intake conversation turns and session lifecycle.
type Service struct {
	sessions      domain.SessionRepository
	messages      domain.MessageRepository
	dedup         *Deduplicator
	ai            AIClient
	connections   ConnectionReader
	appointments  AppointmentChecker
	notifications NotificationStore
	dispatcher    *notification.Dispatcher
	delivery      *notification.Delivery
	auditor       *audit.Recorder
	bus           events.Publisher
	cfg           config.IntakeConfig
}

// Deps bundles the service's collaborators.
type Deps struct {
	Sessions      domain.SessionRepository
	Messages      domain.MessageRepository
	AI            AIClient
	Connections   ConnectionReader
	Appointments  AppointmentChecker
	Notifications NotificationStore
	Dispatcher    *notification.Dispatcher
	Delivery      *notification.Delivery
	Auditor       *audit.Recorder
	Bus           events.Publisher
}

// NewService creates the intake service.
func NewService(deps Deps, cfg config.IntakeConfig) *Service {
	return &Service{
		sessions:      deps.Sessions,
		messages:      deps.Messages,
		dedup:         NewDeduplicator(deps.Messages, cfg.DedupWindow),
		ai:            deps.AI,
		connections:   deps.Connections,
		appointments:  deps.Appointments,
		notifications: deps.Notifications,
		dispatcher:    deps.Dispatcher,
		delivery:      deps.Delivery,
		auditor:       deps.Auditor,
		bus:           deps.Bus,
		cfg:           cfg,
	}
}

// ownership is the result of verifying a caller against a session's
// connection. Every case is handled explicitly.
type ownership int

const (
	ownershipOwned ownership = iota
	ownershipOverrideNoConnection
	ownershipDenied
)

// checkOwnership verifies the caller through the session's connection.
// Admins pass even when the connection row is gone; that path is
// reported distinctly so callers know no doctor can be notified. Only a
// missing connection is an ownership verdict: any other lookup failure
// is returned as an error and must never read as a denial.
func (s *Service) checkOwnership(ctx context.Context, user *auth.User, session *domain.Session) (ownership, *connection.Connection, error) {
	conn, err := s.connections.GetByID(ctx, session.ConnectionID)
	if err != nil {
		if errors.Code(err) != "NOT_FOUND" {
			return ownershipDenied, nil, err
		}
		if user.IsAdmin() {
			return ownershipOverrideNoConnection, nil, nil
		}
		return ownershipDenied, nil, nil
	}

	switch {
	case conn.PatientID == user.ID:
		return ownershipOwned, conn, nil
	case user.IsAdmin():
		return ownershipOwned, conn, nil
	default:
		return ownershipDenied, conn, nil
	}
}

// TurnResponse is the message-send result.
type TurnResponse struct {
	Reply            string           `json:"reply"`
	ActiveAgent      domain.AgentRole `json:"activeAgent"`
	Completeness     int              `json:"completeness"`
	IsReady          bool             `json:"isReady"`
	IsDuplicate      bool             `json:"isDuplicate"`
	MatchedMessageID types.ID         `json:"matchedMessageId,omitempty"`
}

// SendMessage runs one conversation turn: admit the message, extract,
// merge, advance the role, and answer. An extraction failure never
// fails the request; the turn completes with the fallback reply.
func (s *Service) SendMessage(ctx context.Context, user *auth.User, sessionID types.ID, content string, images []string) (*TurnResponse, error) {
	if content == "" {
		return nil, errors.BadRequest("message content is required")
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	own, conn, err := s.checkOwnership(ctx, user, session)
	if err != nil {
		return nil, err
	}
	if own == ownershipDenied {
		return nil, errors.Forbidden("not authorized to message this intake session")
	}

	dedup, err := s.dedup.Check(ctx, session.ID, content)
	if err != nil {
		return nil, err
	}
	if dedup.IsDuplicate {
		metrics.RecordMessageDuplicate()
		return &TurnResponse{
			ActiveAgent:      session.ActiveAgentRole,
			Completeness:     session.Completeness,
			IsReady:          session.Status == domain.StatusReady,
			IsDuplicate:      true,
			MatchedMessageID: dedup.MatchedMessageID,
		}, nil
	}

	session.Start()

	userMsg := domain.NewChatMessage(session.ID, domain.MessageRoleUser, content)
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, err
	}
	metrics.RecordMessageAccepted()

	reply := s.runExtraction(ctx, session, content, images)

	modelMsg := domain.NewChatMessage(session.ID, domain.MessageRoleModel, reply)
	if err := s.messages.Create(ctx, modelMsg); err != nil {
		return nil, err
	}
	session.CountAIMessage(s.cfg.ConclusionNudgeAfter)

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, user, session, conn)

	return &TurnResponse{
		Reply:        reply,
		ActiveAgent:  session.ActiveAgentRole,
		Completeness: session.Completeness,
		IsReady:      session.Status == domain.StatusReady,
	}, nil
}

// runExtraction calls the AI service and folds the result into the
// session. It always returns a reply; degraded paths return the
// fallback.
func (s *Service) runExtraction(ctx context.Context, session *domain.Session, content string, images []string) string {
	if session.AIDegraded(s.cfg.ErrorThreshold) {
		session.TerminationReason = domain.TerminationAIDegraded
		metrics.RecordAIFallback()
		return fallbackReply
	}
	if s.ai == nil || !s.ai.Enabled() {
		metrics.RecordAIFallback()
		return fallbackReply
	}

	history, err := s.messages.ListBySession(ctx, session.ID, 50)
	if err != nil {
		log.Printf("history load failed for session %s: %v", session.ID, err)
	}
	req := ai.TurnRequest{
		SessionID:      session.ID.String(),
		Role:           session.ActiveAgentRole,
		Message:        content,
		Images:         images,
		MedicalData:    session.MedicalData,
		AnsweredTopics: session.AnsweredTopics,
		OfferConcluded: session.HasOfferedConclusion,
	}
	for _, m := range history {
		req.History = append(req.History, ai.HistoryEntry{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	result, err := s.ai.Turn(ctx, req)
	metrics.RecordAICall(time.Since(start))
	if err != nil {
		session.RecordAIFailure()
		metrics.RecordAIFallback()
		log.Printf("extraction failed for session %s (streak %d): %v", session.ID, session.ConsecutiveErrors, err)
		return fallbackReply
	}
	session.RecordAISuccess()

	session.ApplyExtraction(result.Fields, result.Handover, result.DoctorThought)

	if result.Topic != "" {
		if result.TopicAnswered {
			session.MarkTopicAnswered(result.Topic)
		} else if !session.AllowFollowUp(result.Topic, s.cfg.MaxFollowUps) {
			// Budget exhausted: close the topic rather than loop on it.
			session.MarkTopicAnswered(result.Topic)
		}
	}

	if result.Vitals != nil {
		decision := triage.Decide(*result.Vitals, triage.Evaluate(*result.Vitals))
		metrics.RecordTriageDecision(string(decision.Route))
		session.RecordTriageRouted(string(decision.Route), decision.Reason)
	}

	if result.Complete && session.ClinicalHandover != nil {
		if err := session.MarkReady(); err == nil {
			metrics.RecordSessionReady()
		}
	}

	return result.Reply
}

// publishDomainEvents flushes the session's pending events to the bus
// and fans out the ready notification when the session just completed.
func (s *Service) publishDomainEvents(ctx context.Context, user *auth.User, session *domain.Session, conn *connection.Connection) {
	for _, e := range session.GetDomainEvents() {
		if e.Type == domain.EventSessionReady && conn != nil {
			s.notifyReady(ctx, session, conn)
		}
		if s.bus != nil {
			data := map[string]any{"session_id": e.SessionID}
			for k, v := range e.Data {
				data[k] = v
			}
			event := events.NewEvent(e.Type, "intake", data).WithActor(user.ID, user.UserType)
			if err := s.bus.Publish(ctx, event); err != nil {
				log.Printf("event publish failed for %s: %v", e.Type, err)
			}
		}
	}
}

func (s *Service) notifyReady(ctx context.Context, session *domain.Session, conn *connection.Connection) {
	notif, err := s.dispatcher.IntakeReady(conn.DoctorID, session.ID, conn.ID,
		conn.PatientFirstName, conn.PatientLastName, session.MedicalData.ChiefComplaint)
	if err != nil {
		log.Printf("ready notification build failed for session %s: %v", session.ID, err)
		return
	}
	if err := s.notifications.Create(ctx, notif); err != nil {
		log.Printf("ready notification write failed for session %s: %v", session.ID, err)
		return
	}
	metrics.RecordNotificationCreated(string(notif.Type))
	if s.delivery != nil {
		s.delivery.Enqueue(notif)
	}
}

// CreateSession opens an intake session on a connection. One session
// per connection; the patient or an admin may open it.
func (s *Service) CreateSession(ctx context.Context, user *auth.User, connectionID types.ID, displayName string) (*domain.Session, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.PatientID != user.ID && !user.IsAdmin() {
		return nil, errors.Forbidden("only the patient can open an intake session")
	}

	if displayName == "" {
		displayName = notification.DisplayName(conn.PatientFirstName, conn.PatientLastName)
	}

	session, err := domain.NewSession(connectionID, displayName)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns a session to its patient, its doctor, or an admin.
func (s *Service) GetSession(ctx context.Context, user *auth.User, sessionID types.ID) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	conn, err := s.connections.GetByID(ctx, session.ConnectionID)
	if err != nil {
		if errors.Code(err) != "NOT_FOUND" {
			return nil, err
		}
		if user.IsAdmin() {
			return session, nil
		}
		return nil, errors.Forbidden("not authorized to view this intake session")
	}
	if conn.PatientID == user.ID || conn.DoctorID == user.ID || user.IsAdmin() {
		return session, nil
	}
	return nil, errors.Forbidden("not authorized to view this intake session")
}

// Review marks a ready session reviewed by its doctor.
func (s *Service) Review(ctx context.Context, user *auth.User, sessionID types.ID) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	conn, err := s.connections.GetByID(ctx, session.ConnectionID)
	if err != nil {
		return nil, err
	}
	if conn.DoctorID != user.ID && !user.IsAdmin() {
		return nil, errors.Forbidden("only the connected doctor can review this intake session")
	}

	if err := session.MarkReviewed(user.ID); err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Reset rewinds a session to its initial state. Preconditions run in
// order and each short-circuits: existence, ownership, status gate,
// appointment gate. The rewind, the message delete, and the doctor's
// notification apply atomically.
func (s *Service) Reset(ctx context.Context, user *auth.User, sessionID types.ID) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		s.auditReset(ctx, user, sessionID, audit.OutcomeBlocked, "session not found")
		metrics.RecordSessionReset("blocked")
		return nil, err
	}

	own, conn, err := s.checkOwnership(ctx, user, session)
	if err != nil {
		s.auditReset(ctx, user, sessionID, audit.OutcomeFailed, "connection lookup failed")
		metrics.RecordSessionReset("failed")
		return nil, err
	}
	if own == ownershipDenied {
		log.Printf("reset denied: actor=%s session=%s reason=ownership", user.ID, sessionID)
		s.auditReset(ctx, user, sessionID, audit.OutcomeBlocked, "not the session owner")
		metrics.RecordSessionReset("blocked")
		return nil, errors.Forbidden("not authorized to reset this intake session")
	}

	if !session.Resettable() {
		log.Printf("reset denied: actor=%s session=%s reason=status %s", user.ID, sessionID, session.Status)
		s.auditReset(ctx, user, sessionID, audit.OutcomeBlocked, "session completed or reviewed")
		metrics.RecordSessionReset("blocked")
		return nil, errors.BadRequest("Cannot reset a completed or reviewed intake session.")
	}

	linked, err := s.appointments.ExistsForSession(ctx, sessionID)
	if err != nil {
		metrics.RecordSessionReset("failed")
		return nil, errors.Internal(err)
	}
	if linked {
		log.Printf("reset denied: actor=%s session=%s reason=appointment", user.ID, sessionID)
		s.auditReset(ctx, user, sessionID, audit.OutcomeBlocked, "linked to an appointment")
		metrics.RecordSessionReset("blocked")
		return nil, errors.BadRequest("Cannot reset an intake session that is linked to an appointment.")
	}

	session.ResetToInitial()

	var notify *domain.ResetNotification
	var notif *notification.Notification
	if conn != nil {
		notif, err = s.dispatcher.IntakeReset(conn.DoctorID, conn.ID, conn.PatientID,
			conn.PatientFirstName, conn.PatientLastName)
		if err == nil {
			payload, marshalErr := json.Marshal(notif.Payload)
			if marshalErr == nil {
				notify = &domain.ResetNotification{
					RecipientUserID: notif.RecipientUserID,
					Type:            string(notif.Type),
					Payload:         payload,
				}
			}
		}
	}

	if err := s.sessions.Reset(ctx, session, notify); err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			switch appErr.Code {
			case "BAD_REQUEST":
				// Raced with another reset or completion; the
				// transactional re-read caught it.
				s.auditReset(ctx, user, sessionID, audit.OutcomeBlocked, "session completed or reviewed")
				metrics.RecordSessionReset("blocked")
				return nil, err
			case "NOT_FOUND":
				// The session vanished between the precondition read and
				// the transaction.
				s.auditReset(ctx, user, sessionID, audit.OutcomeBlocked, "session not found")
				metrics.RecordSessionReset("blocked")
				return nil, err
			}
		}
		s.auditReset(ctx, user, sessionID, audit.OutcomeFailed, err.Error())
		metrics.RecordSessionReset("failed")
		return nil, errors.Internal(err)
	}

	s.auditReset(ctx, user, sessionID, audit.OutcomeCompleted, "")
	metrics.RecordSessionReset("completed")
	if notify != nil {
		metrics.RecordNotificationCreated(notify.Type)
		if s.delivery != nil && notif != nil {
			s.delivery.Enqueue(notif)
		}
	}

	if s.bus != nil {
		event := events.NewEvent("intake.reset.completed", "intake", map[string]any{
			"session_id": session.ID,
		}).WithActor(user.ID, user.UserType)
		if err := s.bus.Publish(ctx, event); err != nil {
			log.Printf("event publish failed for intake.reset.completed: %v", err)
		}
	}

	return session, nil
}

func (s *Service) auditReset(ctx context.Context, user *auth.User, sessionID types.ID, outcome audit.Outcome, reason string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:      user.ID,
		ActorType:    user.UserType,
		Action:       "intake.reset",
		ResourceType: "intake_session",
		ResourceID:   sessionID,
		Outcome:      outcome,
		Reason:       reason,
	})
}
