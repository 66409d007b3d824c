package app

import (
	"errors"
	"net/http"

	"github.com/fiffu/mangawatch/config"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func NewBotAPI(cfg *config.Config, log *zap.Logger, transport http.RoundTripper) (*tgbotapi.BotAPI, error) {
	if cfg.Telegram.Token == "" {
		return nil, errors.New("TELEGRAM_TOKEN envvar must be populated")
	}

	client := &http.Client{Transport: transport}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	log.Sugar().Infow("Authorized on Telegram", "username", api.Self.UserName)
	return api, nil
}
