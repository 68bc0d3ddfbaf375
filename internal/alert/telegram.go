// Package alert reports failed job runs to a Telegram chat.
package alert

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"
)

const (
	telegramTextLimit = 4096
	sendTimeout       = 10 * time.Second
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
}

// messenger is the subset of *tele.Bot used here.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram sends plain text messages to one chat (and optional forum thread).
// It satisfies logx.Sender.
type Telegram struct {
	bot      messenger
	chat     *tele.Chat
	threadID int
}

// NewTelegram creates an offline bot: no getMe call and no polling, so it is
// cheap enough to build inside every child process.
func NewTelegram(cfg Config) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: sendTimeout},
	})
	if err != nil {
		return nil, err
	}
	return newTelegram(b, cfg), nil
}

func newTelegram(bot messenger, cfg Config) *Telegram {
	return &Telegram{bot: bot, chat: &tele.Chat{ID: cfg.ChatID}, threadID: cfg.ThreadID}
}

// SendText sends text, truncated to Telegram's message limit. The bot API
// has no context support, so ctx is only checked before sending.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(t.chat, truncate(text, telegramTextLimit), &tele.SendOptions{
		ThreadID:              t.threadID,
		DisableWebPagePreview: true,
	})
	return err
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes-1]) + "…"
}
