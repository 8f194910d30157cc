package connection

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/platform/internal/notification"
	"github.com/carelink/platform/internal/shared/errors"
	"github.com/carelink/platform/internal/shared/types"
)

// Repository provides database operations for connections.
type Repository struct {
	pool          *pgxpool.Pool
	notifications *notification.Repository
}

// NewRepository creates a new connection repository.
func NewRepository(pool *pgxpool.Pool, notifications *notification.Repository) *Repository {
	return &Repository{pool: pool, notifications: notifications}
}

const selectColumns = `
	c.id, c.patient_id, c.doctor_id, c.status, c.created_at, c.updated_at,
	p.first_name, p.last_name, d.first_name, d.last_name`

const selectFrom = `
	FROM connections c
	JOIN users p ON p.id = c.patient_id
	JOIN users d ON d.id = c.doctor_id`

func scanConnection(row pgx.Row) (*Connection, error) {
	conn := &Connection{}
	err := row.Scan(
		&conn.ID, &conn.PatientID, &conn.DoctorID, &conn.Status, &conn.CreatedAt, &conn.UpdatedAt,
		&conn.PatientFirstName, &conn.PatientLastName, &conn.DoctorFirstName, &conn.DoctorLastName,
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Create persists a connection and the doctor's notification in one
// transaction: either the doctor learns about the connection or it does
// not exist.
func (r *Repository) Create(ctx context.Context, conn *Connection, notif *notification.Notification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO connections (id, patient_id, doctor_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		conn.ID, conn.PatientID, conn.DoctorID, conn.Status, conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("connection between this patient and doctor already exists")
		}
		if strings.Contains(err.Error(), "foreign key") {
			return errors.BadRequest("patient or doctor does not exist")
		}
		return errors.Wrap(err, "failed to create connection")
	}

	if notif != nil {
		if err := r.notifications.CreateInTx(ctx, tx, notif); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// GetByID retrieves a connection with both parties' profile names.
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Connection, error) {
	conn, err := scanConnection(r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+selectFrom+` WHERE c.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("connection", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get connection")
	}
	return conn, nil
}

// ListByUser lists connections where the user is either party.
func (r *Repository) ListByUser(ctx context.Context, userID types.ID) ([]*Connection, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+selectColumns+selectFrom+`
		 WHERE c.patient_id = $1 OR c.doctor_id = $1
		 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list connections")
	}
	defer rows.Close()

	var out []*Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan connection")
		}
		out = append(out, conn)
	}
	return out, nil
}

// UpdateStatus moves a connection through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE connections SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return errors.Wrap(err, "failed to update connection status")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("connection", id.String())
	}
	return nil
}
