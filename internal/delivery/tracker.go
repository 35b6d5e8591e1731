package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sungwon/mailspool/internal/message"
)

// Store is the persistence capability the engine needs: fetching the queued
// backlog and recording delivery outcomes.
type Store interface {
	// ListQueued returns up to limit queued messages, oldest first, with
	// recipients and attachments loaded.
	ListQueued(ctx context.Context, limit int) ([]*message.Message, error)
	// UpdateDelivery atomically writes the delivery outcome fields for one
	// message. A nil ErrorMessage leaves the stored error untouched.
	UpdateDelivery(ctx context.Context, arg UpdateDeliveryParams) error
}

// UpdateDeliveryParams carries the outcome fields written together after a
// delivery attempt.
type UpdateDeliveryParams struct {
	ID                  uuid.UUID
	Status              message.Status
	DeliveryAttemptedAt time.Time
	ErrorMessage        *string
}

// Tracker is the sole mutator of a message's status, attempt timestamp and
// error diagnostic. Both operations overwrite with the latest attempt's
// data, so re-invoking is last-write-wins.
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker creates a Tracker persisting through store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// MarkSent records a successful delivery: status sent, attempt timestamp
// set, error diagnostic untouched.
func (t *Tracker) MarkSent(ctx context.Context, msg *message.Message) error {
	attempted := t.now()
	err := t.store.UpdateDelivery(ctx, UpdateDeliveryParams{
		ID:                  msg.ID,
		Status:              message.StatusSent,
		DeliveryAttemptedAt: attempted,
	})
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", msg.ID, err)
	}
	msg.Status = message.StatusSent
	msg.DeliveryAttemptedAt = &attempted
	return nil
}

// MarkError records a failed delivery. The stored diagnostic is the failure
// kind joined with its message, for operator inspection.
func (t *Tracker) MarkError(ctx context.Context, msg *message.Message, kind, failure string) error {
	attempted := t.now()
	diagnostic := kind + ": " + failure
	err := t.store.UpdateDelivery(ctx, UpdateDeliveryParams{
		ID:                  msg.ID,
		Status:              message.StatusError,
		DeliveryAttemptedAt: attempted,
		ErrorMessage:        &diagnostic,
	})
	if err != nil {
		return fmt.Errorf("mark error %s: %w", msg.ID, err)
	}
	msg.Status = message.StatusError
	msg.DeliveryAttemptedAt = &attempted
	msg.ErrorMessage = diagnostic
	return nil
}
