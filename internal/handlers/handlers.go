package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/avbocharov/chatpass-bot/internal/config"
	"github.com/avbocharov/chatpass-bot/internal/contextkeys"
	"github.com/avbocharov/chatpass-bot/internal/lifecycle"
	"github.com/avbocharov/chatpass-bot/internal/messages"
	"github.com/avbocharov/chatpass-bot/types"
)

type Handlers struct {
	coord  *lifecycle.Coordinator
	drafts types.DraftStore
	cfg    *config.Config
	log    *zap.SugaredLogger
}

func NewHandlers(coord *lifecycle.Coordinator, drafts types.DraftStore, cfg *config.Config, log *zap.SugaredLogger) *Handlers {
	return &Handlers{
		coord:  coord,
		drafts: drafts,
		cfg:    cfg,
		log:    log,
	}
}

func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	id, ok := contextkeys.GetIdentity(ctx)
	if !ok {
		return
	}

	kind, _ := contextkeys.GetUpdateKind(ctx)

	switch kind {
	case contextkeys.UpdateKindCommand:
		bh.HandleCommand(ctx, b, update, id)
	case contextkeys.UpdateKindCallback:
		data, _ := contextkeys.GetCallbackData(ctx)
		if data == "" && update.CallbackQuery != nil {
			data = update.CallbackQuery.Data
		}
		if strings.HasPrefix(data, "admin_") {
			bh.RequireAdmin(id, bh.HandleAdminCallback)(ctx, b, update)
			return
		}
		bh.HandleCallback(ctx, b, update, id, data)
	case contextkeys.UpdateKindText:
		// Plain text only matters inside the admin add-chat conversation.
		if bh.cfg.IsAdmin(id.TelegramID) {
			bh.HandleDraftInput(ctx, b, update, id)
		}
	default:
	}
}

// RequireAdmin wraps a handler so only configured operators reach it.
func (bh *Handlers) RequireAdmin(id types.Identity, next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if !bh.cfg.IsAdmin(id.TelegramID) {
			bh.log.Warnw("admin access denied", "telegram_id", id.TelegramID)
			if update.CallbackQuery != nil {
				_ = bh.answerCallback(ctx, b, update.CallbackQuery.ID, messages.NotAuthorized())
				return
			}
			bh.reply(ctx, b, update, messages.NotAuthorized())
			return
		}
		next(ctx, b, update)
	}
}

func (bh *Handlers) reply(ctx context.Context, b *bot.Bot, update *models.Update, text string) {
	bh.replyKeyboard(ctx, b, update, text, nil)
}

func (bh *Handlers) replyKeyboard(ctx context.Context, b *bot.Bot, update *models.Update, text string, keyboard *models.InlineKeyboardMarkup) {
	chatID := bh.getChatIDFromUpdate(update)
	if chatID == 0 {
		return
	}
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	_, err := b.SendMessage(ctx, params)
	if err != nil {
		bh.log.Warnw("send message failed", "chat_id", chatID, "err", err)
	}
}

func (bh *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID, text string) error {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	return err
}

func (bh *Handlers) getChatIDFromUpdate(update *models.Update) int64 {
	if update == nil {
		return 0
	}
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil {
		if update.CallbackQuery.Message.Message != nil {
			return update.CallbackQuery.Message.Message.Chat.ID
		}
		if update.CallbackQuery.Message.InaccessibleMessage != nil {
			return update.CallbackQuery.Message.InaccessibleMessage.Chat.ID
		}
	}
	return 0
}

// parseCallbackID extracts the numeric suffix of callback data like
// "select_chat_42".
func parseCallbackID(data, prefix string) (int64, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pad(s string) string {
	return "   " + s + "   "
}
