package senders

import (
	"context"
	"net/http"

	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib/models"
	"go.uber.org/zap"
)

const PlatformTelegram = "telegram"

// Sender delivers new-chapter notifications on one platform.
type Sender interface {
	SendUpdate(ctx context.Context, recipient string, update *models.ChapterUpdate) (string, error)
}

// Reporter delivers reconciliation pass reports to operators.
type Reporter interface {
	SendReport(ctx context.Context, recipient string, report *models.PassReport) (string, error)
}

type Registry map[string]Sender

func NewSenderRegistry(telegram *Telegram) Registry {
	return map[string]Sender{
		PlatformTelegram: telegram,
	}
}

// NewReporter returns nil when mailgun is not configured.
func NewReporter(log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Reporter {
	if !cfg.MailgunEnabled() {
		log.Sugar().Info("Mailgun is not configured, pass reports are disabled")
		return nil
	}
	return &mailgunSender{base{log, cfg, transport}}
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
