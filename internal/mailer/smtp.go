package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPConfig holds the settings for a direct SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	HELOName string
	Timeout  time.Duration
}

// SMTP delivers payloads to a single SMTP relay, with opportunistic
// STARTTLS and optional PLAIN authentication.
type SMTP struct {
	cfg SMTPConfig
}

// NewSMTP creates an SMTP mailer. Zero-value timeout defaults to 30s and an
// empty HELO name defaults to "mailspool.local".
func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HELOName == "" {
		cfg.HELOName = "mailspool.local"
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	return &SMTP{cfg: cfg}
}

func (s *SMTP) Name() string { return "smtp" }

// Send renders the payload to MIME and runs the SMTP dialogue. The envelope
// recipient list covers To, Cc and Bcc; Bcc addresses never appear in the
// rendered headers.
func (s *SMTP) Send(ctx context.Context, p *Payload) error {
	data, err := buildMIME(p)
	if err != nil {
		return &Error{Mailer: s.Name(), Message: err.Error(), Permanent: true}
	}

	recipients := envelopeRecipients(p)
	if len(recipients) == 0 {
		return &Error{Mailer: s.Name(), Message: "no envelope recipients", Permanent: true}
	}

	client, err := s.dial(ctx)
	if err != nil {
		return classifySMTPError(s.Name(), err)
	}
	defer client.Close()

	if err := s.handshake(client); err != nil {
		return classifySMTPError(s.Name(), err)
	}

	if err := client.Mail(p.From); err != nil {
		return classifySMTPError(s.Name(), fmt.Errorf("mail from: %w", err))
	}
	for _, addr := range recipients {
		if err := client.Rcpt(addr); err != nil {
			return classifySMTPError(s.Name(), fmt.Errorf("rcpt to %s: %w", addr, err))
		}
	}

	w, err := client.Data()
	if err != nil {
		return classifySMTPError(s.Name(), fmt.Errorf("data start: %w", err))
	}
	if _, err := w.Write(data); err != nil {
		return classifySMTPError(s.Name(), fmt.Errorf("data write: %w", err))
	}
	if err := w.Close(); err != nil {
		return classifySMTPError(s.Name(), fmt.Errorf("data close: %w", err))
	}

	if err := client.Quit(); err != nil {
		return classifySMTPError(s.Name(), fmt.Errorf("quit: %w", err))
	}
	return nil
}

// HealthCheck opens a connection, greets the relay and quits.
func (s *SMTP) HealthCheck(ctx context.Context) error {
	client, err := s.dial(ctx)
	if err != nil {
		return classifySMTPError(s.Name(), err)
	}
	defer client.Close()

	if err := client.Hello(s.cfg.HELOName); err != nil {
		return classifySMTPError(s.Name(), fmt.Errorf("helo: %w", err))
	}
	if err := client.Quit(); err != nil {
		return classifySMTPError(s.Name(), fmt.Errorf("quit: %w", err))
	}
	return nil
}

func (s *SMTP) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(2 * time.Minute)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("new client: %w", err)
	}
	return client, nil
}

// handshake greets the relay, upgrades to TLS when offered, and
// authenticates when credentials are configured.
func (s *SMTP) handshake(client *smtp.Client) error {
	if err := client.Hello(s.cfg.HELOName); err != nil {
		return fmt.Errorf("helo: %w", err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConf := &tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConf); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	return nil
}
