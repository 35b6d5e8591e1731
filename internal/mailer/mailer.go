// Package mailer defines the transport boundary for composed messages and
// its implementations (SMTP, AWS SES v2, stdout). The delivery engine treats
// a Mailer as opaque: a payload goes in, success or a classified failure
// comes out.
package mailer

import "context"

// Mailer sends a composed payload over some transport.
type Mailer interface {
	// Send delivers the payload. A non-nil error means the message was not
	// accepted by the transport.
	Send(ctx context.Context, p *Payload) error
	// Name returns the mailer's identifier (e.g. "smtp", "ses").
	Name() string
	// HealthCheck verifies the transport is reachable.
	HealthCheck(ctx context.Context) error
}

// Payload is a transport-ready message. The To/Cc/Bcc fields are rendered
// as comma-joined header values in recipient insertion order. TextBody and
// HTMLBody are both always present as parts, even when empty.
type Payload struct {
	From        string
	To          string
	Cc          string
	Bcc         string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment is a resolved attachment part: display filename plus raw bytes.
type Attachment struct {
	Filename string
	Content  []byte
}
