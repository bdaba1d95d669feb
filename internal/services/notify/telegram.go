package notify

import (
	"context"
	"fmt"

	"DCAClock/internal/domain/models"
	"DCAClock/pkg/util"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramChunk = 3900

// TelegramSender is the part of *tgbotapi.BotAPI the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot    TelegramSender
	chatID int64
}

func NewTelegram(bot TelegramSender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID}
}

// NewTelegramBot authenticates the token against the Bot API.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

func (t *Telegram) Notify(_ context.Context, event models.Event) error {
	text := event.Title
	if event.Message != "" {
		text += "\n\n" + event.Message
	}
	for i, chunk := range util.ChunkText(text, telegramChunk) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, chunk)); err != nil {
			return fmt.Errorf("telegram chunk %d: %w", i+1, err)
		}
	}
	return nil
}
