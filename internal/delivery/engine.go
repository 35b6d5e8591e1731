// Package delivery drains the message queue: each queued record is composed
// into a transport payload, handed to the mailer, and its outcome recorded.
// Per-message failures are absorbed into error status; only store failures
// propagate to the caller.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/sungwon/mailspool/internal/compose"
	"github.com/sungwon/mailspool/internal/logger"
	"github.com/sungwon/mailspool/internal/mailer"
	"github.com/sungwon/mailspool/internal/message"
)

// DefaultDrainLimit bounds a drain invocation when the caller passes no
// explicit limit.
const DefaultDrainLimit = 100

// Engine orchestrates delivery over explicit collaborators. It keeps no
// state of its own between invocations; the queue lives in the store.
type Engine struct {
	store    Store
	mailer   mailer.Mailer
	composer *compose.Composer
	tracker  *Tracker
}

// NewEngine creates an Engine over the given store, mailer and filesystem
// capabilities. defaultFrom is the sender used for records without one.
// Loggers travel in the context so a drain run's correlation ID reaches
// every delivery attempt.
func NewEngine(store Store, m mailer.Mailer, files message.FileReader, defaultFrom string) *Engine {
	return &Engine{
		store:    store,
		mailer:   m,
		composer: compose.New(files, defaultFrom),
		tracker:  NewTracker(store),
	}
}

// DeliverOne attempts delivery of a single record and records the outcome.
// Compose and transport failures are converted into error status on the
// record and not returned; the returned error is only a store failure while
// recording the outcome.
func (e *Engine) DeliverOne(ctx context.Context, msg *message.Message) error {
	log := logger.FromContext(ctx)

	payload, err := e.composer.Compose(msg)
	if err != nil {
		log.Error().Err(err).
			Stringer("message_id", msg.ID).
			Msg("compose failed")
		return e.tracker.MarkError(ctx, msg, "compose", err.Error())
	}

	if err := e.mailer.Send(ctx, payload); err != nil {
		log.Error().Err(err).
			Stringer("message_id", msg.ID).
			Str("mailer", e.mailer.Name()).
			Msg("transport send failed")
		return e.tracker.MarkError(ctx, msg, "transport", err.Error())
	}

	log.Info().
		Stringer("message_id", msg.ID).
		Str("mailer", e.mailer.Name()).
		Msg("message delivered")
	return e.tracker.MarkSent(ctx, msg)
}

// DrainQueue fetches up to limit queued records, oldest first, and attempts
// each in turn. One record's delivery failure never aborts the rest of the
// batch. limit values <= 0 fall back to DefaultDrainLimit.
func (e *Engine) DrainQueue(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = DefaultDrainLimit
	}

	queued, err := e.store.ListQueued(ctx, limit)
	if err != nil {
		return fmt.Errorf("list queued messages: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Int("count", len(queued)).Msg("draining queue")
	for _, msg := range queued {
		if err := e.DeliverOne(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// TestMessageOptions overrides the subject and body of a connectivity test
// message. Empty fields use the defaults.
type TestMessageOptions struct {
	Subject string
	Body    string
}

// DeliverTestMessage sends a minimal payload straight through m, bypassing
// the queue and the store, to verify transport configuration.
func DeliverTestMessage(ctx context.Context, m mailer.Mailer, from, recipient string, opts TestMessageOptions) error {
	subject := opts.Subject
	if subject == "" {
		subject = "Testing mailspool"
	}
	body := opts.Body
	if body == "" {
		body = fmt.Sprintf("Test email sent at %s", time.Now().Format(time.RFC1123Z))
	}

	payload := &mailer.Payload{
		From:     from,
		To:       recipient,
		Subject:  subject,
		TextBody: body,
	}
	if err := m.Send(ctx, payload); err != nil {
		return fmt.Errorf("send test message: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("recipient", recipient).Msg("test message delivered")
	return nil
}
