package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stdout implements Mailer by writing payloads to standard output.
// Intended for development and debugging; nothing is actually delivered.
type Stdout struct {
	writer io.Writer
}

// NewStdout creates a Stdout mailer writing to os.Stdout.
func NewStdout() *Stdout {
	return &Stdout{writer: os.Stdout}
}

func (s *Stdout) Name() string { return "stdout" }

// Send prints the payload details and reports success.
func (s *Stdout) Send(_ context.Context, p *Payload) error {
	var b strings.Builder
	b.WriteString("--- stdout mailer: message ---\n")
	fmt.Fprintf(&b, "From:    %s\n", p.From)
	fmt.Fprintf(&b, "To:      %s\n", p.To)
	if p.Cc != "" {
		fmt.Fprintf(&b, "Cc:      %s\n", p.Cc)
	}
	if p.Bcc != "" {
		fmt.Fprintf(&b, "Bcc:     %s\n", p.Bcc)
	}
	fmt.Fprintf(&b, "Subject: %s\n", p.Subject)
	fmt.Fprintf(&b, "Text:    (%d bytes)\n", len(p.TextBody))
	fmt.Fprintf(&b, "HTML:    (%d bytes)\n", len(p.HTMLBody))
	for _, att := range p.Attachments {
		fmt.Fprintf(&b, "File:    %s (%d bytes)\n", att.Filename, len(att.Content))
	}
	b.WriteString("--- end ---\n")

	if _, err := io.WriteString(s.writer, b.String()); err != nil {
		return &Error{Mailer: s.Name(), Message: fmt.Sprintf("write: %v", err)}
	}
	return nil
}

// HealthCheck always succeeds.
func (s *Stdout) HealthCheck(_ context.Context) error {
	return nil
}
