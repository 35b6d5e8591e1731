package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sungwon/mailspool/internal/config"
	"github.com/sungwon/mailspool/internal/delivery"
	"github.com/sungwon/mailspool/internal/logger"
	"github.com/sungwon/mailspool/internal/mailer"
	"github.com/sungwon/mailspool/internal/message"
	"github.com/sungwon/mailspool/internal/storage"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info().Msg("starting queue worker")

	ctx := context.Background()
	pool, err := storage.Connect(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

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

	store := storage.New(pool)
	engine := delivery.NewEngine(store, m, message.OSFiles{}, cfg.Mailer.From)
	ctx = logger.WithLogger(ctx, log)

	// Interval 0 means a one-shot drain, for cron-style invocation.
	if cfg.Drain.Interval <= 0 {
		if err := drain(ctx, engine, cfg.Drain.Limit); err != nil {
			log.Fatal().Err(err).Msg("drain failed")
		}
		return
	}

	log.Info().
		Dur("interval", cfg.Drain.Interval).
		Int("limit", cfg.Drain.Limit).
		Str("mailer", m.Name()).
		Msg("queue worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// First drain happens immediately rather than one interval in.
	if err := drain(ctx, engine, cfg.Drain.Limit); err != nil {
		log.Error().Err(err).Msg("drain failed")
	}

	ticker := time.NewTicker(cfg.Drain.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := drain(ctx, engine, cfg.Drain.Limit); err != nil {
				log.Error().Err(err).Msg("drain failed")
			}
		case <-quit:
			log.Info().Msg("queue worker stopped")
			return
		}
	}
}

// drain runs one batch with a fresh correlation ID so every delivery in the
// batch can be traced to its run.
func drain(ctx context.Context, engine *delivery.Engine, limit int) error {
	ctx = logger.WithCorrelationID(ctx, logger.NewCorrelationID())
	return engine.DrainQueue(ctx, limit)
}
