// Package config loads application configuration from config.yaml with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Mailer   MailerConfig   `mapstructure:"mailer"`
	Drain    DrainConfig    `mapstructure:"drain"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// MailerConfig selects the outbound transport and the default sender.
type MailerConfig struct {
	Type string          `mapstructure:"type"` // smtp, ses, stdout
	From string          `mapstructure:"from"`
	SMTP SMTPConfig      `mapstructure:"smtp"`
	SES  SESMailerConfig `mapstructure:"ses"`
}

// SMTPConfig holds direct SMTP relay configuration.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	HELOName string        `mapstructure:"helo_name"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SESMailerConfig holds AWS SES v2 configuration. Empty credentials use the
// default AWS credential chain.
type SESMailerConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// DrainConfig controls the queue drain operation. A zero interval means
// drain once and exit.
type DrainConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix MAILSPOOL_ override file values.
// For example, MAILSPOOL_DATABASE_URL overrides database.url.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("MAILSPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
