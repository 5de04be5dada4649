package middleware

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avbocharov/chatpass-bot/internal/contextkeys"
	"github.com/avbocharov/chatpass-bot/types"
)

type Middlewares struct{}

func NewMessageAnalyzer() *Middlewares {
	return &Middlewares{}
}

// AnalyzeMessageMiddleware classifies the update and puts the caller's
// identity on the context. Updates without an identifiable sender are
// dropped here so handlers never see them.
func (m *Middlewares) AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		id, ok := identityFromUpdate(update)
		if !ok {
			return
		}
		ctx = contextkeys.WithIdentity(ctx, id)

		if update.CallbackQuery != nil && update.CallbackQuery.Data != "" {
			ctx = contextkeys.WithUpdateKind(ctx, contextkeys.UpdateKindCallback)
			ctx = contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
			next(ctx, b, update)
			return
		}

		ctx = contextkeys.WithUpdateKind(ctx, classifyMessage(update.Message))
		next(ctx, b, update)
	}
}

func identityFromUpdate(update *models.Update) (types.Identity, bool) {
	var from *models.User

	switch {
	case update.Message != nil && update.Message.From != nil:
		from = update.Message.From
	case update.CallbackQuery != nil:
		from = &update.CallbackQuery.From
	default:
		return types.Identity{}, false
	}

	if from.ID == 0 {
		return types.Identity{}, false
	}

	return types.Identity{
		TelegramID: from.ID,
		Username:   from.Username,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	}, true
}

func classifyMessage(msg *models.Message) contextkeys.UpdateKind {
	if msg == nil {
		return contextkeys.UpdateKindUnknown
	}
	if strings.HasPrefix(msg.Text, "/") {
		return contextkeys.UpdateKindCommand
	}
	if msg.Text != "" {
		return contextkeys.UpdateKindText
	}
	return contextkeys.UpdateKindUnknown
}

// ChatIDFromUpdate resolves the chat to reply into, for both plain
// messages and callback queries.
func ChatIDFromUpdate(update *models.Update) int64 {
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil {
		return chatIDFromMaybeInaccessible(update.CallbackQuery.Message)
	}
	return 0
}

func chatIDFromMaybeInaccessible(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}
