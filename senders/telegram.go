package senders

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fiffu/mangawatch/lib/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// botAPI is the slice of *tgbotapi.BotAPI that outbound messages need.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends conversation replies and chapter notifications to Telegram chats.
type Telegram struct {
	log *zap.Logger
	api botAPI
}

func NewTelegram(log *zap.Logger, api *tgbotapi.BotAPI) *Telegram {
	return &Telegram{log: log, api: api}
}

func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := t.send(chatID, msg)
	return err
}

// SendChoice shows options as a one-time reply keyboard, one option per row.
func (t *Telegram) SendChoice(ctx context.Context, chatID int64, text string, options []string) error {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(options))
	for _, opt := range options {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(opt)))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.OneTimeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	_, err := t.send(chatID, msg)
	return err
}

func (t *Telegram) SendDocument(ctx context.Context, chatID int64, filename string, data []byte) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	_, err := t.send(chatID, doc)
	return err
}

func (t *Telegram) SendUpdate(ctx context.Context, recipient string, update *models.ChapterUpdate) (string, error) {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram recipient %q: %w", recipient, models.ErrValidation)
	}

	text := formatUpdate(update)
	sent, err := t.send(chatID, tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (t *Telegram) send(chatID int64, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	sent, err := t.api.Send(c)
	if err != nil {
		t.log.Sugar().Errorw("Telegram send failed", "chat_id", chatID, "err", err)
		return sent, fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return sent, nil
}

func formatUpdate(update *models.ChapterUpdate) string {
	text := fmt.Sprintf("New chapter of %s: %s", update.Manga.Title, update.Chapter.Title)
	if update.Chapter.PublishedAt != "" {
		text += fmt.Sprintf(" (published %s)", update.Chapter.PublishedAt)
	}
	return text + "\n" + update.Chapter.URL
}
