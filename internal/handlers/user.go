package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avbocharov/chatpass-bot/internal/messages"
	"github.com/avbocharov/chatpass-bot/store"
	"github.com/avbocharov/chatpass-bot/types"
)

func (bh *Handlers) HandleCommand(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity) {
	fields := strings.Fields(strings.TrimSpace(update.Message.Text))
	if len(fields) == 0 {
		return
	}
	cmd := fields[0]
	if strings.Contains(cmd, "@") {
		cmd = strings.SplitN(cmd, "@", 2)[0]
	}

	switch cmd {
	case "/start":
		bh.reply(ctx, b, update, messages.StartWelcome())
	case "/help":
		bh.reply(ctx, b, update, messages.Help())
	case "/panel":
		bh.sendPanel(ctx, b, update)
	case "/admin":
		bh.RequireAdmin(id, func(ctx context.Context, b *bot.Bot, update *models.Update) {
			bh.sendAdminPanel(ctx, b, update)
		})(ctx, b, update)
	default:
		bh.reply(ctx, b, update, messages.Help())
	}
}

func (bh *Handlers) HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity, data string) {
	if update.CallbackQuery == nil {
		return
	}
	_ = bh.answerCallback(ctx, b, update.CallbackQuery.ID, "")

	switch {
	case data == "panel":
		bh.sendPanel(ctx, b, update)
	case data == "subscribe":
		bh.sendChatList(ctx, b, update)
	case data == "my_subs":
		bh.sendMySubscriptions(ctx, b, update, id)
	case strings.HasPrefix(data, "select_chat_"):
		chatID, ok := parseCallbackID(data, "select_chat_")
		if !ok {
			bh.reply(ctx, b, update, messages.InvalidSelection())
			return
		}
		bh.startSubscription(ctx, b, update, id, chatID)
	case strings.HasPrefix(data, "confirm_payment_"):
		subID, ok := parseCallbackID(data, "confirm_payment_")
		if !ok {
			bh.reply(ctx, b, update, messages.InvalidSelection())
			return
		}
		bh.confirmPayment(ctx, b, update, id, subID)
	case strings.HasPrefix(data, "cancel_pending_"):
		subID, ok := parseCallbackID(data, "cancel_pending_")
		if !ok {
			bh.reply(ctx, b, update, messages.InvalidSelection())
			return
		}
		bh.cancelPending(ctx, b, update, id, subID)
	default:
		bh.reply(ctx, b, update, messages.InvalidSelection())
	}
}

func (bh *Handlers) sendPanel(ctx context.Context, b *bot.Bot, update *models.Update) {
	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: pad("Subscribe to a chat"), CallbackData: "subscribe"}},
		{{Text: pad("My subscriptions"), CallbackData: "my_subs"}},
	}}
	bh.replyKeyboard(ctx, b, update, messages.PanelTitle(), keyboard)
}

func (bh *Handlers) sendChatList(ctx context.Context, b *bot.Bot, update *models.Update) {
	chats, err := bh.coord.Chats(ctx, true)
	if err != nil {
		bh.log.Errorw("list chats failed", "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}
	if len(chats) == 0 {
		bh.reply(ctx, b, update, messages.NoChatsAvailable())
		return
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(chats)+1)
	for _, c := range chats {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: messages.ChatButton(c), CallbackData: fmt.Sprintf("select_chat_%d", c.ID)},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: pad("Back"), CallbackData: "panel"},
	})
	bh.replyKeyboard(ctx, b, update, messages.SelectChatPrompt(), &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (bh *Handlers) startSubscription(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity, chatID int64) {
	res, err := bh.coord.Subscribe(ctx, id, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bh.reply(ctx, b, update, messages.InvalidSelection())
			return
		}
		bh.log.Errorw("subscribe failed", "telegram_id", id.TelegramID, "chat_id", chatID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}

	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: pad("I've paid"), CallbackData: fmt.Sprintf("confirm_payment_%d", res.Subscription.ID)}},
		{{Text: pad("Cancel"), CallbackData: fmt.Sprintf("cancel_pending_%d", res.Subscription.ID)}},
	}}
	text := messages.PaymentInstructions(res.Chat, bh.cfg.SubscriptionDays, res.Wallet, res.Network, res.Subscription.PaymentRef)
	bh.replyKeyboard(ctx, b, update, text, keyboard)
}

func (bh *Handlers) confirmPayment(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity, subID int64) {
	res, err := bh.coord.ConfirmPayment(ctx, id, subID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			bh.reply(ctx, b, update, messages.SubscriptionNotFound())
		case errors.Is(err, store.ErrNotOwner):
			bh.reply(ctx, b, update, messages.NotYourSubscription())
		case errors.Is(err, store.ErrInvalidTransition):
			bh.reply(ctx, b, update, messages.SubscriptionNotFound())
		default:
			bh.log.Errorw("confirm failed", "telegram_id", id.TelegramID, "subscription_id", subID, "err", err)
			bh.reply(ctx, b, update, messages.ErrorDefault())
		}
		return
	}

	title := ""
	if res.Subscription.Chat != nil {
		title = res.Subscription.Chat.Title
	}
	if res.AlreadyActive {
		bh.reply(ctx, b, update, messages.SubscriptionAlreadyActive(title, res.Subscription.EndDate))
		return
	}
	bh.reply(ctx, b, update, messages.SubscriptionActivated(title, res.Subscription.EndDate))
}

func (bh *Handlers) cancelPending(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity, subID int64) {
	sub, err := bh.coord.Cancel(ctx, id, subID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			bh.reply(ctx, b, update, messages.SubscriptionNotFound())
		case errors.Is(err, store.ErrNotOwner):
			bh.reply(ctx, b, update, messages.NotYourSubscription())
		case errors.Is(err, store.ErrInvalidTransition):
			bh.reply(ctx, b, update, messages.SubscriptionNotFound())
		default:
			bh.log.Errorw("cancel failed", "telegram_id", id.TelegramID, "subscription_id", subID, "err", err)
			bh.reply(ctx, b, update, messages.ErrorDefault())
		}
		return
	}

	title := ""
	if sub.Chat != nil {
		title = sub.Chat.Title
	}
	bh.reply(ctx, b, update, messages.PendingCancelled(title))
}

func (bh *Handlers) sendMySubscriptions(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity) {
	subs, err := bh.coord.ActiveSubscriptions(ctx, id.TelegramID)
	if err != nil {
		bh.log.Errorw("list subscriptions failed", "telegram_id", id.TelegramID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}

	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: pad("Back"), CallbackData: "panel"}},
	}}
	if len(subs) == 0 {
		bh.replyKeyboard(ctx, b, update, messages.NoActiveSubscriptions(), keyboard)
		return
	}
	text := messages.ActiveSubscriptionsList(subs) + "\n" + messages.RenewHint()
	bh.replyKeyboard(ctx, b, update, text, keyboard)
}
