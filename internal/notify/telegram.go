package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"lembra/internal/iconhint"
)

// TelegramSink pushes reminders to one chat. Send-only: no poller, no
// handlers, the bot never consumes updates.
type TelegramSink struct {
	bot    *tele.Bot
	chatID int64
}

func NewTelegram(token string, chatID int64) (*TelegramSink, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &TelegramSink{bot: b, chatID: chatID}, nil
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) Send(ctx context.Context, n Notification) error {
	_ = ctx // telebot manages its own request deadlines
	_, err := t.bot.Send(&tele.Chat{ID: t.chatID}, emojiFor(n.Icon)+" "+n.Title)
	return err
}

// emojiFor maps the icon hint onto the closest emoji; chat has no icon set.
func emojiFor(h iconhint.Hint) string {
	switch h {
	case iconhint.Water:
		return "💧"
	case iconhint.Sleep:
		return "🌙"
	case iconhint.Meditation:
		return "🌿"
	case iconhint.Break:
		return "☕"
	case iconhint.Gratitude:
		return "💜"
	case iconhint.Mood:
		return "🙂"
	default:
		return "🔔"
	}
}
