package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fiffu/mangawatch/lib/conversation"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeUpdates struct {
	ch      chan tgbotapi.Update
	timeout int
}

func (f *fakeUpdates) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	f.timeout = config.Timeout
	return f.ch
}

func (f *fakeUpdates) StopReceivingUpdates() {
	close(f.ch)
}

type recordingHandler struct {
	mu    sync.Mutex
	turns []conversation.Turn
}

func (r *recordingHandler) Handle(ctx context.Context, turn conversation.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
}

func (r *recordingHandler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns)
}

func message(chatType, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 7, Type: chatType},
		Text: text,
	}}
}

func TestBotDispatchesPrivateMessages(t *testing.T) {
	api := &fakeUpdates{ch: make(chan tgbotapi.Update)}
	handler := &recordingHandler{}
	bot := &Bot{log: zaptest.NewLogger(t), api: api, engine: handler, pollTimeout: 30}

	bot.Start()
	assert.Equal(t, 30, api.timeout)

	api.ch <- message("group", "/add foo")
	api.ch <- tgbotapi.Update{}
	api.ch <- message("private", "/add  one piece")

	require.Eventually(t, func() bool { return handler.count() == 1 }, time.Second, 5*time.Millisecond)
	bot.Stop()

	assert.Equal(t, conversation.Turn{UserID: 7, ChatID: 7, Command: "add", Args: "one piece"}, handler.turns[0])
}
