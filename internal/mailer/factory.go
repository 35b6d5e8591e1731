package mailer

import (
	"context"
	"fmt"
)

// Config selects and configures a Mailer implementation.
type Config struct {
	Type string // smtp, ses, stdout
	SMTP SMTPConfig
	SES  SESConfig
}

// New builds the Mailer named by cfg.Type.
func New(ctx context.Context, cfg Config) (Mailer, error) {
	switch cfg.Type {
	case "smtp":
		return NewSMTP(cfg.SMTP), nil
	case "ses":
		return NewSES(ctx, cfg.SES)
	case "stdout":
		return NewStdout(), nil
	default:
		return nil, fmt.Errorf("unknown mailer type %q", cfg.Type)
	}
}
