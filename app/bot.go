package app

import (
	"context"
	"sync"

	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib/conversation"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type updatesAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type turnHandler interface {
	Handle(ctx context.Context, turn conversation.Turn)
}

// Bot long-polls Telegram and hands every private message to the engine.
type Bot struct {
	log         *zap.Logger
	api         updatesAPI
	engine      turnHandler
	pollTimeout int

	mu       sync.Mutex
	stopped  bool
	handlers sync.WaitGroup
}

func NewBot(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, api *tgbotapi.BotAPI, engine *conversation.Engine) *Bot {
	bot := &Bot{log: log, api: api, engine: engine, pollTimeout: cfg.Telegram.PollTimeoutSecs}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			bot.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			log.Sugar().Info("Trying to stop bot")
			bot.Stop()
			return nil
		},
	})
	return bot
}

func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	// The channel closes once the long poll in flight returns.
	go func() {
		for update := range updates {
			b.dispatch(update)
		}
	}()
	b.log.Sugar().Info("Bot polling started")
}

// Stop ends polling and waits for turns in progress. Updates that arrive
// afterwards are dropped.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()

	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	b.handlers.Wait()
	b.log.Sugar().Info("Bot stopped")
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	if !msg.Chat.IsPrivate() {
		b.log.Sugar().Debugw("Ignoring message outside a private chat", "chat_id", msg.Chat.ID)
		return
	}

	turn := conversation.ParseTurn(msg.From.ID, msg.Chat.ID, msg.Text)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		b.engine.Handle(context.Background(), turn)
	}()
}
