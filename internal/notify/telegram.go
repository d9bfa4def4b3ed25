package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"scorebot/internal/store"
	"scorebot/pkg/logx"
)

// TelegramPusher delivers push notifications as Telegram DMs to users who
// linked a chat id in their preferences.
type TelegramPusher struct {
	bot *tele.Bot
	log logx.Logger
}

func NewTelegramPusher(token string, log logx.Logger) (*TelegramPusher, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &TelegramPusher{bot: b, log: log}, nil
}

func (t *TelegramPusher) Push(ctx context.Context, to store.Recipient, title, body string) error {
	if to.TelegramChatID == 0 {
		// User opted in but never linked a push channel; nothing to deliver.
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(tele.ChatID(to.TelegramChatID), title+"\n"+body)
	return err
}
