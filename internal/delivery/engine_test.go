package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sungwon/mailspool/internal/mailer"
	"github.com/sungwon/mailspool/internal/message"
)

// mockStore implements Store in memory and records every delivery update.
type mockStore struct {
	queued    []*message.Message
	listErr   error
	updateErr error
	updates   []UpdateDeliveryParams
}

func (m *mockStore) ListQueued(_ context.Context, limit int) ([]*message.Message, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit < len(m.queued) {
		return m.queued[:limit], nil
	}
	return m.queued, nil
}

func (m *mockStore) UpdateDelivery(_ context.Context, arg UpdateDeliveryParams) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, arg)
	return nil
}

// mockMailer implements mailer.Mailer with a pluggable send function.
type mockMailer struct {
	sendFn func(ctx context.Context, p *mailer.Payload) error
	sent   []*mailer.Payload
}

func (m *mockMailer) Send(ctx context.Context, p *mailer.Payload) error {
	m.sent = append(m.sent, p)
	if m.sendFn != nil {
		return m.sendFn(ctx, p)
	}
	return nil
}

func (m *mockMailer) Name() string                        { return "mock" }
func (m *mockMailer) HealthCheck(_ context.Context) error { return nil }

type fakeFiles map[string]string

func (f fakeFiles) ReadFile(path string) ([]byte, error) {
	content, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	return []byte(content), nil
}

func queuedMessage(to, subject, bodyText string) *message.Message {
	msg := message.New(message.Params{
		To:       []string{to},
		Subject:  subject,
		BodyText: bodyText,
	})
	msg.ID = uuid.New()
	return msg
}

func TestDeliverOneSuccess(t *testing.T) {
	store := &mockStore{}
	mm := &mockMailer{}
	engine := NewEngine(store, mm, fakeFiles{}, "sender@example.com")

	msg := queuedMessage("r@example.com", "Hi", "hello")
	if err := engine.DeliverOne(context.Background(), msg); err != nil {
		t.Fatalf("DeliverOne failed: %v", err)
	}

	if msg.Status != message.StatusSent {
		t.Errorf("expected sent status, got %s", msg.Status)
	}
	if msg.DeliveryAttemptedAt == nil {
		t.Error("expected delivery attempt timestamp to be set")
	}
	if msg.ErrorMessage != "" {
		t.Errorf("expected error message untouched, got %q", msg.ErrorMessage)
	}

	if len(mm.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(mm.sent))
	}
	if mm.sent[0].To != "r@example.com" {
		t.Errorf("unexpected payload to: %q", mm.sent[0].To)
	}
	if mm.sent[0].TextBody != "hello" {
		t.Errorf("unexpected payload body: %q", mm.sent[0].TextBody)
	}

	if len(store.updates) != 1 {
		t.Fatalf("expected 1 store update, got %d", len(store.updates))
	}
	if store.updates[0].Status != message.StatusSent {
		t.Errorf("expected sent persisted, got %s", store.updates[0].Status)
	}
	if store.updates[0].ErrorMessage != nil {
		t.Error("expected error message left untouched on success")
	}
}

func TestDeliverOneTransportFailure(t *testing.T) {
	store := &mockStore{}
	mm := &mockMailer{
		sendFn: func(_ context.Context, _ *mailer.Payload) error {
			return &mailer.Error{Mailer: "mock", Message: "connection refused"}
		},
	}
	engine := NewEngine(store, mm, fakeFiles{}, "sender@example.com")

	msg := queuedMessage("r@example.com", "Hi", "hello")
	if err := engine.DeliverOne(context.Background(), msg); err != nil {
		t.Fatalf("expected transport failure to be absorbed, got %v", err)
	}

	if msg.Status != message.StatusError {
		t.Errorf("expected error status, got %s", msg.Status)
	}
	if !strings.Contains(msg.ErrorMessage, "connection refused") {
		t.Errorf("expected diagnostic to contain the transport failure, got %q", msg.ErrorMessage)
	}
	if !strings.HasPrefix(msg.ErrorMessage, "transport:") {
		t.Errorf("expected diagnostic to carry the failure kind, got %q", msg.ErrorMessage)
	}
	if msg.DeliveryAttemptedAt == nil {
		t.Error("expected delivery attempt timestamp to be set")
	}
}

func TestDeliverOneComposeFailure(t *testing.T) {
	store := &mockStore{}
	mm := &mockMailer{}
	engine := NewEngine(store, mm, fakeFiles{}, "sender@example.com")

	msg := queuedMessage("r@example.com", "Hi", "")
	msg.AddFile("missing.pdf", "")

	if err := engine.DeliverOne(context.Background(), msg); err != nil {
		t.Fatalf("expected compose failure to be absorbed, got %v", err)
	}

	if msg.Status != message.StatusError {
		t.Errorf("expected error status, got %s", msg.Status)
	}
	if !strings.HasPrefix(msg.ErrorMessage, "compose:") {
		t.Errorf("expected compose failure kind, got %q", msg.ErrorMessage)
	}
	if len(mm.sent) != 0 {
		t.Errorf("expected no transport attempt after compose failure, got %d", len(mm.sent))
	}
}

func TestDeliverOneStoreFailurePropagates(t *testing.T) {
	store := &mockStore{updateErr: errors.New("connection reset")}
	engine := NewEngine(store, &mockMailer{}, fakeFiles{}, "sender@example.com")

	msg := queuedMessage("r@example.com", "Hi", "hello")
	if err := engine.DeliverOne(context.Background(), msg); err == nil {
		t.Fatal("expected store failure to propagate")
	}
}

func TestDrainQueueBatchIsolation(t *testing.T) {
	first := queuedMessage("a@x.com", "one", "hello")
	second := queuedMessage("b@x.com", "two", "")
	second.AddFile("missing.pdf", "")
	third := queuedMessage("c@x.com", "three", "hello")

	store := &mockStore{queued: []*message.Message{first, second, third}}
	engine := NewEngine(store, &mockMailer{}, fakeFiles{}, "sender@example.com")

	if err := engine.DrainQueue(context.Background(), 3); err != nil {
		t.Fatalf("DrainQueue failed: %v", err)
	}

	if first.Status != message.StatusSent {
		t.Errorf("expected first message sent, got %s", first.Status)
	}
	if second.Status != message.StatusError {
		t.Errorf("expected second message errored, got %s", second.Status)
	}
	if third.Status != message.StatusSent {
		t.Errorf("expected third message processed and sent, got %s", third.Status)
	}
}

func TestDrainQueuePassesLimit(t *testing.T) {
	msgs := []*message.Message{
		queuedMessage("a@x.com", "one", "x"),
		queuedMessage("b@x.com", "two", "x"),
		queuedMessage("c@x.com", "three", "x"),
	}
	store := &mockStore{queued: msgs}
	mm := &mockMailer{}
	engine := NewEngine(store, mm, fakeFiles{}, "sender@example.com")

	if err := engine.DrainQueue(context.Background(), 2); err != nil {
		t.Fatalf("DrainQueue failed: %v", err)
	}
	if len(mm.sent) != 2 {
		t.Errorf("expected 2 deliveries with limit 2, got %d", len(mm.sent))
	}
	if msgs[2].Status != message.StatusQueued {
		t.Errorf("expected third message to remain queued, got %s", msgs[2].Status)
	}
}

func TestDrainQueueDefaultLimit(t *testing.T) {
	store := &mockStore{}
	engine := NewEngine(store, &mockMailer{}, fakeFiles{}, "sender@example.com")

	// limit <= 0 falls back to the default rather than fetching nothing.
	if err := engine.DrainQueue(context.Background(), 0); err != nil {
		t.Fatalf("DrainQueue failed: %v", err)
	}
}

func TestDrainQueueListFailurePropagates(t *testing.T) {
	store := &mockStore{listErr: errors.New("relation does not exist")}
	engine := NewEngine(store, &mockMailer{}, fakeFiles{}, "sender@example.com")

	if err := engine.DrainQueue(context.Background(), 10); err == nil {
		t.Fatal("expected list failure to propagate")
	}
}

func TestMarkSentIdempotent(t *testing.T) {
	store := &mockStore{}
	tracker := NewTracker(store)

	msg := queuedMessage("r@example.com", "Hi", "hello")
	if err := tracker.MarkSent(context.Background(), msg); err != nil {
		t.Fatalf("first MarkSent failed: %v", err)
	}
	firstAttempt := *msg.DeliveryAttemptedAt

	time.Sleep(time.Millisecond)
	if err := tracker.MarkSent(context.Background(), msg); err != nil {
		t.Fatalf("second MarkSent failed: %v", err)
	}

	if msg.Status != message.StatusSent {
		t.Errorf("expected sent status, got %s", msg.Status)
	}
	if !msg.DeliveryAttemptedAt.After(firstAttempt) {
		t.Error("expected second attempt timestamp to overwrite the first")
	}
	if len(store.updates) != 2 {
		t.Errorf("expected both updates persisted, got %d", len(store.updates))
	}
}

func TestMarkErrorOverwritesPreviousDiagnostic(t *testing.T) {
	store := &mockStore{}
	tracker := NewTracker(store)

	msg := queuedMessage("r@example.com", "Hi", "hello")
	if err := tracker.MarkError(context.Background(), msg, "transport", "timeout"); err != nil {
		t.Fatalf("MarkError failed: %v", err)
	}
	if err := tracker.MarkError(context.Background(), msg, "transport", "connection refused"); err != nil {
		t.Fatalf("MarkError failed: %v", err)
	}

	if msg.ErrorMessage != "transport: connection refused" {
		t.Errorf("expected latest diagnostic, got %q", msg.ErrorMessage)
	}
}

func TestDeliverTestMessageDefaults(t *testing.T) {
	mm := &mockMailer{}

	err := DeliverTestMessage(context.Background(), mm, "sender@example.com", "r@example.com", TestMessageOptions{})
	if err != nil {
		t.Fatalf("DeliverTestMessage failed: %v", err)
	}

	if len(mm.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(mm.sent))
	}
	p := mm.sent[0]
	if p.From != "sender@example.com" || p.To != "r@example.com" {
		t.Errorf("unexpected envelope: from %q to %q", p.From, p.To)
	}
	if p.Subject != "Testing mailspool" {
		t.Errorf("unexpected default subject: %q", p.Subject)
	}
	if !strings.HasPrefix(p.TextBody, "Test email sent at ") {
		t.Errorf("unexpected default body: %q", p.TextBody)
	}
}

func TestDeliverTestMessageFailurePropagates(t *testing.T) {
	mm := &mockMailer{
		sendFn: func(_ context.Context, _ *mailer.Payload) error {
			return &mailer.Error{Mailer: "mock", Message: "auth failed"}
		},
	}

	err := DeliverTestMessage(context.Background(), mm, "s@x.com", "r@x.com", TestMessageOptions{Subject: "s"})
	if err == nil {
		t.Fatal("expected test delivery failure to propagate")
	}
}
