package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/platform/internal/intake/domain"
	"github.com/carelink/platform/internal/shared/errors"
	"github.com/carelink/platform/internal/shared/types"
)

// PostgresSessionRepository implements domain.SessionRepository.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionRepository creates a session repository.
func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

const sessionColumns = `
	id, connection_id, display_name, status,
	medical_data, completeness, active_agent_role,
	follow_up_counts, answered_topics, consecutive_errors,
	ai_message_count, has_offered_conclusion, termination_reason,
	clinical_handover, doctor_thought,
	started_at, completed_at, reviewed_at, reviewed_by,
	created_at, updated_at`

// Create persists a new session.
func (r *PostgresSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	medicalData, followUps, handover, thought, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO intake_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		s.ID, s.ConnectionID, s.DisplayName, s.Status,
		medicalData, s.Completeness, s.ActiveAgentRole,
		followUps, s.AnsweredTopics, s.ConsecutiveErrors,
		s.AIMessageCount, s.HasOfferedConclusion, nullString(string(s.TerminationReason)),
		handover, thought,
		s.StartedAt, s.CompletedAt, s.ReviewedAt, s.ReviewedBy,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create intake session")
	}
	return nil
}

// GetByID retrieves a session.
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id types.ID) (*domain.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM intake_sessions WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("intake session", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get intake session")
	}
	return s, nil
}

// GetByConnectionID retrieves the session for a connection.
func (r *PostgresSessionRepository) GetByConnectionID(ctx context.Context, connectionID types.ID) (*domain.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM intake_sessions WHERE connection_id = $1`, connectionID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("intake session", connectionID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get intake session by connection")
	}
	return s, nil
}

// Update persists the session's mutable fields.
func (r *PostgresSessionRepository) Update(ctx context.Context, s *domain.Session) error {
	args, err := updateSessionArgs(s)
	if err != nil {
		return err
	}
	result, err := r.pool.Exec(ctx, updateSessionQuery, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update intake session")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("intake session", s.ID.String())
	}
	return nil
}

const updateSessionQuery = `
	UPDATE intake_sessions SET
		status = $2, medical_data = $3, completeness = $4, active_agent_role = $5,
		follow_up_counts = $6, answered_topics = $7, consecutive_errors = $8,
		ai_message_count = $9, has_offered_conclusion = $10, termination_reason = $11,
		clinical_handover = $12, doctor_thought = $13,
		started_at = $14, completed_at = $15, reviewed_at = $16, reviewed_by = $17,
		updated_at = $18
	WHERE id = $1`

func updateSessionArgs(s *domain.Session) ([]any, error) {
	medicalData, followUps, handover, thought, err := marshalSessionJSON(s)
	if err != nil {
		return nil, err
	}
	return []any{
		s.ID,
		s.Status, medicalData, s.Completeness, s.ActiveAgentRole,
		followUps, s.AnsweredTopics, s.ConsecutiveErrors,
		s.AIMessageCount, s.HasOfferedConclusion, nullString(string(s.TerminationReason)),
		handover, thought,
		s.StartedAt, s.CompletedAt, s.ReviewedAt, s.ReviewedBy,
		s.UpdatedAt,
	}, nil
}

// Reset deletes the session's messages and rewinds the session row in
// one transaction, writing the doctor's notification alongside. Either
// everything applies or nothing does. The status gate is re-checked
// under the transaction so racing resets stay safe.
func (r *PostgresSessionRepository) Reset(ctx context.Context, s *domain.Session, notify *domain.ResetNotification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var status domain.Status
	err = tx.QueryRow(ctx,
		`SELECT status FROM intake_sessions WHERE id = $1 FOR UPDATE`, s.ID).Scan(&status)
	if err == pgx.ErrNoRows {
		return errors.NotFound("intake session", s.ID.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock intake session")
	}
	if status == domain.StatusReady || status == domain.StatusReviewed {
		return errors.BadRequest("Cannot reset a completed or reviewed intake session.")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, s.ID); err != nil {
		return errors.Wrap(err, "failed to delete session messages")
	}

	args, err := updateSessionArgs(s)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, updateSessionQuery, args...); err != nil {
		return errors.Wrap(err, "failed to rewind intake session")
	}

	if notify != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO notifications (id, recipient_user_id, type, payload, is_read, created_at)
			VALUES ($1, $2, $3, $4, false, $5)`,
			types.NewID(), notify.RecipientUserID, notify.Type, notify.Payload, time.Now())
		if err != nil {
			return errors.Wrap(err, "failed to create reset notification")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit reset transaction")
	}
	return nil
}

func marshalSessionJSON(s *domain.Session) (medicalData, followUps, handover, thought []byte, err error) {
	if medicalData, err = json.Marshal(s.MedicalData); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to marshal medical data")
	}
	counts := s.FollowUpCounts
	if counts == nil {
		counts = map[string]int{}
	}
	if followUps, err = json.Marshal(counts); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to marshal follow-up counts")
	}
	if s.ClinicalHandover != nil {
		if handover, err = json.Marshal(s.ClinicalHandover); err != nil {
			return nil, nil, nil, nil, errors.Wrap(err, "failed to marshal clinical handover")
		}
	}
	if thought, err = json.Marshal(s.DoctorThought); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to marshal doctor thought")
	}
	return medicalData, followUps, handover, thought, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	s := &domain.Session{}
	var medicalData, followUps, handover, thought []byte
	var terminationReason *string

	err := row.Scan(
		&s.ID, &s.ConnectionID, &s.DisplayName, &s.Status,
		&medicalData, &s.Completeness, &s.ActiveAgentRole,
		&followUps, &s.AnsweredTopics, &s.ConsecutiveErrors,
		&s.AIMessageCount, &s.HasOfferedConclusion, &terminationReason,
		&handover, &thought,
		&s.StartedAt, &s.CompletedAt, &s.ReviewedAt, &s.ReviewedBy,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(medicalData, &s.MedicalData); err != nil {
		return nil, errors.Wrap(err, "failed to decode medical data")
	}
	if err := json.Unmarshal(followUps, &s.FollowUpCounts); err != nil {
		return nil, errors.Wrap(err, "failed to decode follow-up counts")
	}
	if len(handover) > 0 {
		s.ClinicalHandover = &domain.ClinicalHandover{}
		if err := json.Unmarshal(handover, s.ClinicalHandover); err != nil {
			return nil, errors.Wrap(err, "failed to decode clinical handover")
		}
	}
	if len(thought) > 0 {
		if err := json.Unmarshal(thought, &s.DoctorThought); err != nil {
			return nil, errors.Wrap(err, "failed to decode doctor thought")
		}
	}
	if terminationReason != nil {
		s.TerminationReason = domain.TerminationReason(*terminationReason)
	}
	if s.AnsweredTopics == nil {
		s.AnsweredTopics = []string{}
	}

	return s, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PostgresMessageRepository implements domain.MessageRepository.
type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMessageRepository creates a message repository.
func NewPostgresMessageRepository(pool *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Create persists a message.
func (r *PostgresMessageRepository) Create(ctx context.Context, m *domain.ChatMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SessionID, m.Role, m.Content, m.ContentHash, m.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create chat message")
	}
	return nil
}

// ListBySession returns the most recent messages in chronological order.
func (r *PostgresMessageRepository) ListBySession(ctx context.Context, sessionID types.ID, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, role, content, content_hash, created_at
		FROM (
			SELECT id, session_id, role, content, content_hash, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at`, sessionID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	var out []*domain.ChatMessage
	for rows.Next() {
		m := &domain.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.ContentHash, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		out = append(out, m)
	}
	return out, nil
}

// FindRecentByHash returns the newest user message matching the hash
// strictly after the cutoff, or nil when none exists.
func (r *PostgresMessageRepository) FindRecentByHash(ctx context.Context, sessionID types.ID, hash string, after time.Time) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, role, content, content_hash, created_at
		FROM chat_messages
		WHERE session_id = $1 AND role = 'user' AND content_hash = $2 AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1`, sessionID, hash, after).Scan(
		&m.ID, &m.SessionID, &m.Role, &m.Content, &m.ContentHash, &m.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up message by hash")
	}
	return m, nil
}
