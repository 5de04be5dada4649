package notify

import (
	"context"
	"time"

	"github.com/avbocharov/chatpass-bot/internal/messages"
	"github.com/go-telegram/bot"
)

// TelegramNotifier sends outward messages through the bot API. Sends are
// best-effort: the caller logs the returned error and moves on, so a slow or
// failing delivery never holds a transaction open.
type TelegramNotifier struct {
	b       *bot.Bot
	timeout time.Duration
}

func NewTelegramNotifier(b *bot.Bot) *TelegramNotifier {
	return &TelegramNotifier{b: b, timeout: 10 * time.Second}
}

func (n *TelegramNotifier) Notify(ctx context.Context, recipientID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, err := n.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    recipientID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	return err
}
