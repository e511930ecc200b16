package notify

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"fulfillment/pkg/models"
)

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram posts intents to one chat per recipient role. Roles without a
// configured chat are skipped.
type Telegram struct {
	bot   sender
	chats map[models.Role]int64
}

func NewTelegram(token string, chats map[models.Role]int64) (*Telegram, error) {
	b, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chats: chats}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(ctx context.Context, intent Intent) error {
	chatID := t.chats[intent.RecipientRole]
	if chatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(&tele.Chat{ID: chatID}, intent.Text()); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
