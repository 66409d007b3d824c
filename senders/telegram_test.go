package senders

import (
	"context"
	"errors"
	"testing"

	"github.com/fiffu/mangawatch/lib/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTelegramSendChoice(t *testing.T) {
	bot := &fakeBot{}
	tg := &Telegram{log: zaptest.NewLogger(t), api: bot}

	err := tg.SendChoice(context.Background(), 42, "Pick one", []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)

	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), msg.ChatID)
	keyboard := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	assert.True(t, keyboard.OneTimeKeyboard)
	require.Len(t, keyboard.Keyboard, 2)
	assert.Equal(t, "B", keyboard.Keyboard[1][0].Text)
}

func TestTelegramSendDocument(t *testing.T) {
	bot := &fakeBot{}
	tg := &Telegram{log: zaptest.NewLogger(t), api: bot}

	err := tg.SendDocument(context.Background(), 42, "Foo - Ch 1.epub", []byte("epub"))
	require.NoError(t, err)

	doc := bot.sent[0].(tgbotapi.DocumentConfig)
	file := doc.File.(tgbotapi.FileBytes)
	assert.Equal(t, "Foo - Ch 1.epub", file.Name)
	assert.Equal(t, []byte("epub"), file.Bytes)
}

func TestTelegramSendUpdate(t *testing.T) {
	bot := &fakeBot{}
	tg := &Telegram{log: zaptest.NewLogger(t), api: bot}

	update := &models.ChapterUpdate{
		Manga:   models.Manga{Title: "Foo"},
		Chapter: models.Chapter{URL: "https://weebcentral.com/chapters/2", Title: "Chapter 2", PublishedAt: "2025-03-01"},
	}
	id, err := tg.SendUpdate(context.Background(), "42", update)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "New chapter of Foo: Chapter 2 (published 2025-03-01)\nhttps://weebcentral.com/chapters/2", msg.Text)

	_, err = tg.SendUpdate(context.Background(), "not-a-chat", update)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestTelegramSendFailure(t *testing.T) {
	bot := &fakeBot{err: errors.New("blocked by user")}
	tg := &Telegram{log: zaptest.NewLogger(t), api: bot}

	err := tg.SendText(context.Background(), 42, "hi")
	assert.ErrorContains(t, err, "blocked by user")
}
