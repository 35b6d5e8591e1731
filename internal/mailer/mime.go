package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// buildMIME renders a payload as a raw RFC 5322 message: top-level
// multipart/mixed carrying a multipart/alternative body (plain text part
// then HTML part, both always present) followed by base64-encoded
// attachment parts in insertion order. Bcc is deliberately not rendered
// into headers; blind recipients travel only in the envelope.
func buildMIME(p *Payload) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", p.From)
	if p.To != "" {
		fmt.Fprintf(&buf, "To: %s\r\n", p.To)
	}
	if p.Cc != "" {
		fmt.Fprintf(&buf, "Cc: %s\r\n", p.Cc)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", p.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	mixed := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	if err := writeBodyParts(mixed, p); err != nil {
		return nil, err
	}

	for _, att := range p.Attachments {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Type", "application/octet-stream")
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s", mime.QEncoding.Encode("UTF-8", att.Filename)))

		part, err := mixed.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create attachment part: %w", err)
		}
		if _, err := part.Write([]byte(encodeBase64Wrapped(att.Content))); err != nil {
			return nil, fmt.Errorf("write attachment part: %w", err)
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("close mixed writer: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBodyParts writes the multipart/alternative section with the plain
// text part first and the HTML part second, least-faithful-first per MIME
// convention.
func writeBodyParts(mixed *multipart.Writer, p *Payload) error {
	var inner bytes.Buffer
	alt := multipart.NewWriter(&inner)

	textHeader := make(textproto.MIMEHeader)
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	part, err := alt.CreatePart(textHeader)
	if err != nil {
		return fmt.Errorf("create text part: %w", err)
	}
	if _, err := part.Write([]byte(p.TextBody)); err != nil {
		return fmt.Errorf("write text part: %w", err)
	}

	htmlHeader := make(textproto.MIMEHeader)
	htmlHeader.Set("Content-Type", "text/html; charset=UTF-8")
	part, err = alt.CreatePart(htmlHeader)
	if err != nil {
		return fmt.Errorf("create html part: %w", err)
	}
	if _, err := part.Write([]byte(p.HTMLBody)); err != nil {
		return fmt.Errorf("write html part: %w", err)
	}

	if err := alt.Close(); err != nil {
		return fmt.Errorf("close alternative writer: %w", err)
	}

	altHeader := make(textproto.MIMEHeader)
	altHeader.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary()))
	outer, err := mixed.CreatePart(altHeader)
	if err != nil {
		return fmt.Errorf("create alternative part: %w", err)
	}
	if _, err := outer.Write(inner.Bytes()); err != nil {
		return fmt.Errorf("write alternative part: %w", err)
	}
	return nil
}

// encodeBase64Wrapped encodes bytes as base64 broken into 76-character
// lines per RFC 2045.
func encodeBase64Wrapped(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}

// envelopeRecipients flattens the payload's To, Cc and Bcc header values
// back into individual envelope addresses, preserving order.
func envelopeRecipients(p *Payload) []string {
	var out []string
	for _, joined := range []string{p.To, p.Cc, p.Bcc} {
		for _, addr := range strings.Split(joined, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}
