// Package compose materializes a persisted message record into a
// transport-ready payload. This is the only step that touches the
// filesystem: body source files and attachment content are resolved here,
// not when the record is created.
package compose

import (
	"fmt"
	"strings"

	"github.com/sungwon/mailspool/internal/mailer"
	"github.com/sungwon/mailspool/internal/message"
)

// Composer turns message records into mailer payloads. DefaultFrom is used
// when a record carries no sender of its own.
type Composer struct {
	Files       message.FileReader
	DefaultFrom string
}

// New creates a Composer reading through files.
func New(files message.FileReader, defaultFrom string) *Composer {
	return &Composer{Files: files, DefaultFrom: defaultFrom}
}

// Compose builds the payload for msg. Recipient headers are comma-joined in
// insertion order; text and HTML parts are carried even when empty. Any
// failure reading a body source or attachment file aborts the compose.
func (c *Composer) Compose(msg *message.Message) (*mailer.Payload, error) {
	from := msg.From
	if from == "" {
		from = c.DefaultFrom
	}

	text, err := msg.BodyTextContent(c.Files)
	if err != nil {
		return nil, err
	}
	html, err := msg.BodyHTMLContent(c.Files)
	if err != nil {
		return nil, err
	}

	p := &mailer.Payload{
		From:     from,
		To:       joinAddresses(msg, message.KindTo),
		Cc:       joinAddresses(msg, message.KindCc),
		Bcc:      joinAddresses(msg, message.KindBcc),
		Subject:  msg.Subject,
		TextBody: text,
		HTMLBody: html,
	}

	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		content, err := c.Files.ReadFile(att.ContentFilename)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", att.ContentFilename, err)
		}
		p.Attachments = append(p.Attachments, mailer.Attachment{
			Filename: att.EffectiveFilename(),
			Content:  content,
		})
	}

	return p, nil
}

func joinAddresses(msg *message.Message, kind message.RecipientKind) string {
	return strings.Join(msg.Addresses(kind), ",")
}
