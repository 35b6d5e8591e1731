// Package storage persists message records in PostgreSQL. The queue is the
// messages table itself: queued rows are the backlog, drained oldest-first.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungwon/mailspool/internal/delivery"
	"github.com/sungwon/mailspool/internal/message"
)

// ErrNotFound is returned when a message does not exist.
var ErrNotFound = errors.New("storage: message not found")

// Store provides message persistence over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store using the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateMessage persists msg and its recipients and attachments in one
// transaction, assigning IDs and timestamps. msg must pass Validate before
// being handed to the store.
func (s *Store) CreateMessage(ctx context.Context, msg *message.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	msg.ID = uuid.New()
	msg.Status = message.StatusQueued

	var createdAt, updatedAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (
			id, from_address, subject,
			body_text, body_text_filename, body_html, body_html_filename,
			status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '')
		RETURNING created_at, updated_at`,
		msg.ID, msg.From, msg.Subject,
		msg.BodyText, msg.BodyTextFilename, msg.BodyHTML, msg.BodyHTMLFilename,
		msg.Status,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.CreatedAt = createdAt
	msg.UpdatedAt = updatedAt

	for i := range msg.Recipients {
		r := &msg.Recipients[i]
		r.ID = uuid.New()
		r.MessageID = msg.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO recipients (id, message_id, kind, email_address, position)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`,
			r.ID, r.MessageID, r.Kind, r.EmailAddress, i,
		).Scan(&r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert recipient: %w", err)
		}
	}

	for i := range msg.Attachments {
		a := &msg.Attachments[i]
		a.ID = uuid.New()
		a.MessageID = msg.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO attachments (id, message_id, content_filename, filename_in_message, position)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`,
			a.ID, a.MessageID, a.ContentFilename, a.FilenameInMessage, i,
		).Scan(&a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetMessage loads one message with its children in insertion order.
func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*message.Message, error) {
	row := s.pool.QueryRow(ctx, messageSelect+` WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select message: %w", err)
	}
	if err := s.loadChildren(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListQueued returns up to limit queued messages in creation order, with
// children loaded. Implements delivery.Store.
func (s *Store) ListQueued(ctx context.Context, limit int) ([]*message.Message, error) {
	rows, err := s.pool.Query(ctx,
		messageSelect+` WHERE status = $1 ORDER BY created_at, id LIMIT $2`,
		message.StatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("select queued messages: %w", err)
	}
	defer rows.Close()

	var out []*message.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for _, msg := range out {
		if err := s.loadChildren(ctx, msg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateDelivery writes the delivery outcome fields in a single statement.
// A nil ErrorMessage leaves the stored diagnostic untouched, so a
// successful attempt does not clear an earlier failure's record.
// Implements delivery.Store.
func (s *Store) UpdateDelivery(ctx context.Context, arg delivery.UpdateDeliveryParams) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2,
		    delivery_attempted_at = $3,
		    error_message = COALESCE($4, error_message),
		    updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.Status, arg.DeliveryAttemptedAt, arg.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes a message; recipients and attachments go with it
// via FK cascade.
func (s *Store) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const messageSelect = `
	SELECT id, from_address, subject,
	       body_text, body_text_filename, body_html, body_html_filename,
	       status, delivery_attempted_at, error_message,
	       created_at, updated_at
	FROM messages`

func scanMessage(row pgx.Row) (*message.Message, error) {
	var msg message.Message
	err := row.Scan(
		&msg.ID, &msg.From, &msg.Subject,
		&msg.BodyText, &msg.BodyTextFilename, &msg.BodyHTML, &msg.BodyHTMLFilename,
		&msg.Status, &msg.DeliveryAttemptedAt, &msg.ErrorMessage,
		&msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Store) loadChildren(ctx context.Context, msg *message.Message) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, kind, email_address, created_at
		FROM recipients
		WHERE message_id = $1
		ORDER BY position`, msg.ID)
	if err != nil {
		return fmt.Errorf("select recipients: %w", err)
	}
	defer rows.Close()

	msg.Recipients = nil
	for rows.Next() {
		var r message.Recipient
		if err := rows.Scan(&r.ID, &r.MessageID, &r.Kind, &r.EmailAddress, &r.CreatedAt); err != nil {
			return fmt.Errorf("scan recipient: %w", err)
		}
		msg.Recipients = append(msg.Recipients, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate recipients: %w", err)
	}
	rows.Close()

	attRows, err := s.pool.Query(ctx, `
		SELECT id, message_id, content_filename, filename_in_message, created_at
		FROM attachments
		WHERE message_id = $1
		ORDER BY position`, msg.ID)
	if err != nil {
		return fmt.Errorf("select attachments: %w", err)
	}
	defer attRows.Close()

	msg.Attachments = nil
	for attRows.Next() {
		var a message.Attachment
		if err := attRows.Scan(&a.ID, &a.MessageID, &a.ContentFilename, &a.FilenameInMessage, &a.CreatedAt); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		msg.Attachments = append(msg.Attachments, a)
	}
	if err := attRows.Err(); err != nil {
		return fmt.Errorf("iterate attachments: %w", err)
	}
	return nil
}
