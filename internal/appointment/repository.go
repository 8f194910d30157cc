package appointment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/platform/internal/shared/errors"
	"github.com/carelink/platform/internal/shared/types"
)

// Repository provides database operations for appointments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new appointment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists an appointment.
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, connection_id, intake_session_id, scheduled_at,
			duration_minutes, status, cancel_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ConnectionID, a.IntakeSessionID, a.ScheduledAt,
		a.DurationMinutes, a.Status, a.CancelReason, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create appointment")
	}
	return nil
}

// GetByID retrieves an appointment.
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Appointment, error) {
	a := &Appointment{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, connection_id, intake_session_id, scheduled_at,
			duration_minutes, status, cancel_reason, created_at, updated_at
		FROM appointments WHERE id = $1`, id).Scan(
		&a.ID, &a.ConnectionID, &a.IntakeSessionID, &a.ScheduledAt,
		&a.DurationMinutes, &a.Status, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get appointment")
	}
	return a, nil
}

// ExistsForSession reports whether any appointment references the
// session. Cancelled appointments still count: the reference is the
// gate, not the appointment's state.
func (r *Repository) ExistsForSession(ctx context.Context, sessionID types.ID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM appointments WHERE intake_session_id = $1)`,
		sessionID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check appointments for session")
	}
	return exists, nil
}

// ListByConnection lists a connection's appointments, soonest first.
func (r *Repository) ListByConnection(ctx context.Context, connectionID types.ID) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, connection_id, intake_session_id, scheduled_at,
			duration_minutes, status, cancel_reason, created_at, updated_at
		FROM appointments
		WHERE connection_id = $1
		ORDER BY scheduled_at`, connectionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list appointments")
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a := &Appointment{}
		err := rows.Scan(
			&a.ID, &a.ConnectionID, &a.IntakeSessionID, &a.ScheduledAt,
			&a.DurationMinutes, &a.Status, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan appointment")
		}
		out = append(out, a)
	}
	return out, nil
}

// Cancel marks a scheduled appointment cancelled.
func (r *Repository) Cancel(ctx context.Context, id types.ID, reason string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2, cancel_reason = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		id, StatusCancelled, reason, StatusScheduled)
	if err != nil {
		return errors.Wrap(err, "failed to cancel appointment")
	}
	if result.RowsAffected() == 0 {
		return errors.BadRequest("appointment is not in a cancellable state")
	}
	return nil
}
