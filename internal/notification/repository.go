package notification

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/platform/internal/shared/errors"
	"github.com/carelink/platform/internal/shared/types"
)

// Repository provides database operations for notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new notification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertQuery = `
	INSERT INTO notifications (id, recipient_user_id, type, payload, is_read, created_at)
	VALUES ($1, $2, $3, $4, false, $5)`

// Create persists a notification row.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification payload")
	}

	_, err = r.pool.Exec(ctx, insertQuery, n.ID, n.RecipientUserID, n.Type, payload, n.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to create notification")
	}
	return nil
}

// CreateInTx persists a notification row inside a caller-owned
// transaction, so it commits or rolls back with the triggering write.
func (r *Repository) CreateInTx(ctx context.Context, tx pgx.Tx, n *Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification payload")
	}

	_, err = tx.Exec(ctx, insertQuery, n.ID, n.RecipientUserID, n.Type, payload, n.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to create notification")
	}
	return nil
}

// ListByRecipient returns a recipient's notifications, newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipientUserID types.ID, unreadOnly bool, limit int) ([]*Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, recipient_user_id, type, payload, is_read, created_at
		FROM notifications
		WHERE recipient_user_id = $1`
	if unreadOnly {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, recipientUserID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.RecipientUserID, &n.Type, &payload, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan notification")
		}
		var decoded map[string]any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, errors.Wrap(err, "failed to decode notification payload")
		}
		n.Payload = decoded
		out = append(out, &n)
	}

	return out, nil
}

// MarkRead flips the read flag. Scoped to the recipient so users cannot
// mark each other's rows.
func (r *Repository) MarkRead(ctx context.Context, id, recipientUserID types.ID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND recipient_user_id = $2`,
		id, recipientUserID)
	if err != nil {
		return errors.Wrap(err, "failed to mark notification read")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("notification", id.String())
	}
	return nil
}

// CountUnread returns the unread count for a recipient.
func (r *Repository) CountUnread(ctx context.Context, recipientUserID types.ID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_user_id = $1 AND is_read = false`,
		recipientUserID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count notifications")
	}
	return count, nil
}
