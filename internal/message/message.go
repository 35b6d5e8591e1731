// Package message defines the queued email aggregate: the message record
// itself plus its owned recipients and attachments. Records are composed in
// memory, persisted in queued status, and later drained by the delivery
// engine.
package message

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Status is the delivery lifecycle state of a message.
type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusError  Status = "error"
)

// RecipientKind selects which transport header a recipient address is
// rendered into.
type RecipientKind string

const (
	KindTo  RecipientKind = "to"
	KindCc  RecipientKind = "cc"
	KindBcc RecipientKind = "bcc"
)

// Valid reports whether k is one of the three known kinds.
func (k RecipientKind) Valid() bool {
	switch k {
	case KindTo, KindCc, KindBcc:
		return true
	}
	return false
}

// Recipient is a single address on a message, typed by kind.
type Recipient struct {
	ID           uuid.UUID
	MessageID    uuid.UUID
	Kind         RecipientKind
	EmailAddress string
	CreatedAt    time.Time
}

// Attachment references a file whose content is attached to the message.
// Content bytes are resolved at compose time, not at creation time.
type Attachment struct {
	ID                uuid.UUID
	MessageID         uuid.UUID
	ContentFilename   string
	FilenameInMessage string
	CreatedAt         time.Time
}

// EffectiveFilename returns the display name the attachment carries in the
// message: FilenameInMessage when set, otherwise the base name of the
// content file.
func (a *Attachment) EffectiveFilename() string {
	if a.FilenameInMessage != "" {
		return a.FilenameInMessage
	}
	return filepath.Base(a.ContentFilename)
}

// Message is the persisted email record. Body text and HTML each come from
// a literal value or a source file, never both.
type Message struct {
	ID                  uuid.UUID
	From                string
	Subject             string
	BodyText            string
	BodyTextFilename    string
	BodyHTML            string
	BodyHTMLFilename    string
	Status              Status
	DeliveryAttemptedAt *time.Time
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Recipients  []Recipient
	Attachments []Attachment
}

// File names an attachment source for Params. FilenameInMessage may be
// empty, in which case the base name of ContentFilename is used.
type File struct {
	ContentFilename   string
	FilenameInMessage string
}

// Params carries the constructor attributes for New. Recipient slices and
// Files are expanded into owned child entities in the order supplied.
// Any Status value is ignored: new messages always start queued.
type Params struct {
	From             string
	Subject          string
	To               []string
	Cc               []string
	Bcc              []string
	BodyText         string
	BodyTextFilename string
	BodyHTML         string
	BodyHTMLFilename string
	Files            []File
	Status           Status
}

// New builds an in-memory message from p. The result is not yet persisted
// and carries no ID; the store assigns identifiers on create.
func New(p Params) *Message {
	m := &Message{
		From:             p.From,
		Subject:          p.Subject,
		BodyText:         p.BodyText,
		BodyTextFilename: p.BodyTextFilename,
		BodyHTML:         p.BodyHTML,
		BodyHTMLFilename: p.BodyHTMLFilename,
		Status:           StatusQueued,
	}
	for _, addr := range p.To {
		m.AddRecipient(KindTo, addr)
	}
	for _, addr := range p.Cc {
		m.AddRecipient(KindCc, addr)
	}
	for _, addr := range p.Bcc {
		m.AddRecipient(KindBcc, addr)
	}
	for _, f := range p.Files {
		m.AddFile(f.ContentFilename, f.FilenameInMessage)
	}
	return m
}

// AddRecipient appends a recipient of the given kind and returns it.
// Insertion order is preserved and observable through Addresses.
func (m *Message) AddRecipient(kind RecipientKind, address string) Recipient {
	r := Recipient{Kind: kind, EmailAddress: address}
	m.Recipients = append(m.Recipients, r)
	return r
}

// AddFile appends an attachment. filenameInMessage may be empty to use the
// base name of contentFilename as the display name.
func (m *Message) AddFile(contentFilename, filenameInMessage string) Attachment {
	a := Attachment{ContentFilename: contentFilename, FilenameInMessage: filenameInMessage}
	m.Attachments = append(m.Attachments, a)
	return a
}

// Addresses returns the addresses of the given kind in insertion order.
func (m *Message) Addresses(kind RecipientKind) []string {
	var out []string
	for _, r := range m.Recipients {
		if r.Kind == kind {
			out = append(out, r.EmailAddress)
		}
	}
	return out
}

// BodyTextContent returns the plain text body: the literal value when set,
// otherwise the contents of the body text source file read through files.
// Returns an empty string when neither is set.
func (m *Message) BodyTextContent(files FileReader) (string, error) {
	return bodyContent(m.BodyText, m.BodyTextFilename, files)
}

// BodyHTMLContent returns the HTML body, resolved the same way as
// BodyTextContent.
func (m *Message) BodyHTMLContent(files FileReader) (string, error) {
	return bodyContent(m.BodyHTML, m.BodyHTMLFilename, files)
}

func bodyContent(literal, filename string, files FileReader) (string, error) {
	if literal != "" {
		return literal, nil
	}
	if filename == "" {
		return "", nil
	}
	data, err := files.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("read body file %s: %w", filename, err)
	}
	return string(data), nil
}

// ValidationError reports a structural rule violated by a message.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "message: " + e.Reason
}

// Validate checks the structural invariants: at least one recipient of any
// kind, and body literal/source mutual exclusivity for both text and HTML.
// It returns the first violation found as a *ValidationError.
func (m *Message) Validate() error {
	if len(m.Recipients) == 0 {
		return &ValidationError{Reason: "at least one to, cc or bcc recipient is required"}
	}
	for _, r := range m.Recipients {
		if r.EmailAddress == "" {
			return &ValidationError{Reason: "recipient email address is required"}
		}
		if !r.Kind.Valid() {
			return &ValidationError{Reason: fmt.Sprintf("unknown recipient kind %q", r.Kind)}
		}
	}
	if m.BodyText != "" && m.BodyTextFilename != "" {
		return &ValidationError{Reason: "body_text and body_text_filename are mutually exclusive"}
	}
	if m.BodyHTML != "" && m.BodyHTMLFilename != "" {
		return &ValidationError{Reason: "body_html and body_html_filename are mutually exclusive"}
	}
	for _, a := range m.Attachments {
		if a.ContentFilename == "" {
			return &ValidationError{Reason: "attachment content filename is required"}
		}
	}
	return nil
}
