package alert

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Telegram sends alerts to one chat through the Bot API. It never polls for
// updates.
type Telegram struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		URL:   cfg.URL,
		Token: cfg.Token,
		// Skip the getMe round trip; we only send.
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chat: tele.ChatID(cfg.ChatID)}, nil
}

func (*Telegram) Name() string { return "telegram" }

// Deliver blocks on the HTTP call; telebot has no per-request context, so a
// cancelled ctx only prevents a send that has not started.
func (t *Telegram) Deliver(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(t.chat, "cronus: "+a.Text)
	return err
}
