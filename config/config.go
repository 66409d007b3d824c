package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"mangawatch.sqlite"`

	Telegram struct {
		Token           string `env:"TELEGRAM_TOKEN"`
		PollTimeoutSecs int    `env:"TELEGRAM_POLL_TIMEOUT_SECS" envDefault:"30"`
	}
	Source struct {
		BaseURL     string `env:"SOURCE_BASE_URL" envDefault:"https://weebcentral.com"`
		UserAgent   string `env:"SOURCE_USER_AGENT" envDefault:"mangawatch/1.0"`
		TimeoutSecs int    `env:"SOURCE_TIMEOUT_SECS" envDefault:"30"`
	}
	Notifier struct {
		IntervalMins     int      `env:"NOTIFIER_INTERVAL_MINS" envDefault:"60"`
		Concurrency      int      `env:"NOTIFIER_CONCURRENCY" envDefault:"4"`
		ReportRecipients []string `env:"NOTIFIER_REPORT_RECIPIENTS" envSeparator:","`
	}
	Document struct {
		Concurrency int `env:"DOCUMENT_CONCURRENCY" envDefault:"4"`
		TimeoutSecs int `env:"DOCUMENT_TIMEOUT_SECS" envDefault:"120"`
	}
	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	creds map[string]string
}

func NewConfig(log *zap.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		if cfg.Env != "development" {
			return nil, err
		}
		log.Sugar().Infof("%s (credentials will be set to default in development env)", err)
		creds = map[string]string{"admin": "password"}
	}
	cfg.creds = creds

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects durations that would stop the notifier or fail every
// outbound call.
func (cfg *Config) validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"NOTIFIER_INTERVAL_MINS", cfg.Notifier.IntervalMins},
		{"SOURCE_TIMEOUT_SECS", cfg.Source.TimeoutSecs},
		{"DOCUMENT_TIMEOUT_SECS", cfg.Document.TimeoutSecs},
		{"MAILGUN_TIMEOUT_SECS", cfg.Mailgun.TimeoutSecs},
	}
	var errs []error
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.value))
		}
	}
	return errors.Join(errs...)
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) MailgunEnabled() bool {
	return cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != ""
}

func (cfg *Config) NotifierInterval() time.Duration {
	return time.Duration(cfg.Notifier.IntervalMins) * time.Minute
}

func (cfg *Config) SourceTimeout() time.Duration {
	return time.Duration(cfg.Source.TimeoutSecs) * time.Second
}

func (cfg *Config) DocumentTimeout() time.Duration {
	return time.Duration(cfg.Document.TimeoutSecs) * time.Second
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar must be populated")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
