// send-test delivers a single message straight through the configured
// mailer, bypassing the queue. Use it to verify transport configuration
// before pointing the worker at real traffic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sungwon/mailspool/internal/config"
	"github.com/sungwon/mailspool/internal/delivery"
	"github.com/sungwon/mailspool/internal/logger"
	"github.com/sungwon/mailspool/internal/mailer"
)

func main() {
	configPath := flag.String("config", "config", "config directory")
	recipient := flag.String("to", "", "recipient address (required)")
	subject := flag.String("subject", "", "override the default subject")
	body := flag.String("body", "", "override the default body")
	flag.Parse()

	if *recipient == "" {
		fmt.Fprintln(os.Stderr, "usage: send-test -to recipient@example.com [-subject s] [-body b]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	ctx := logger.WithLogger(context.Background(), log)

	m, err := mailer.New(ctx, mailer.Config{
		Type: cfg.Mailer.Type,
		SMTP: mailer.SMTPConfig{
			Host:     cfg.Mailer.SMTP.Host,
			Port:     cfg.Mailer.SMTP.Port,
			Username: cfg.Mailer.SMTP.Username,
			Password: cfg.Mailer.SMTP.Password,
			HELOName: cfg.Mailer.SMTP.HELOName,
			Timeout:  cfg.Mailer.SMTP.Timeout,
		},
		SES: mailer.SESConfig{
			Region:          cfg.Mailer.SES.Region,
			AccessKeyID:     cfg.Mailer.SES.AccessKeyID,
			SecretAccessKey: cfg.Mailer.SES.SecretAccessKey,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build mailer")
	}

	if err := m.HealthCheck(ctx); err != nil {
		log.Fatal().Err(err).Str("mailer", m.Name()).Msg("mailer health check failed")
	}

	err = delivery.DeliverTestMessage(ctx, m, cfg.Mailer.From, *recipient, delivery.TestMessageOptions{
		Subject: *subject,
		Body:    *body,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("test delivery failed")
	}

	log.Info().Str("to", *recipient).Str("mailer", m.Name()).Msg("test message sent")
}
