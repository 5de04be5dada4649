package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avbocharov/chatpass-bot/internal/contextkeys"
	"github.com/avbocharov/chatpass-bot/internal/messages"
	"github.com/avbocharov/chatpass-bot/store"
	"github.com/avbocharov/chatpass-bot/types"
)

func (bh *Handlers) HandleAdminCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	id, _ := contextkeys.GetIdentity(ctx)
	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = update.CallbackQuery.Data
	}
	_ = bh.answerCallback(ctx, b, update.CallbackQuery.ID, "")

	switch {
	case data == "admin_panel":
		bh.sendAdminPanel(ctx, b, update)
	case data == "admin_chats":
		bh.sendAdminChatList(ctx, b, update)
	case data == "admin_add_chat":
		bh.startChatDraft(ctx, b, update, id)
	case data == "admin_users":
		bh.sendUsersList(ctx, b, update)
	case data == "admin_wallet":
		bh.reply(ctx, b, update, messages.WalletInfo(bh.cfg.DefaultWalletAddress, bh.cfg.DefaultNetwork))
	case data == "admin_draft_save":
		bh.saveChatDraft(ctx, b, update, id)
	case data == "admin_draft_cancel":
		bh.cancelChatDraft(ctx, b, update, id)
	case strings.HasPrefix(data, "admin_toggle_"):
		chatID, ok := parseCallbackID(data, "admin_toggle_")
		if !ok {
			bh.reply(ctx, b, update, messages.InvalidSelection())
			return
		}
		bh.toggleChat(ctx, b, update, chatID)
	case strings.HasPrefix(data, "admin_remove_confirm_"):
		chatID, ok := parseCallbackID(data, "admin_remove_confirm_")
		if !ok {
			bh.reply(ctx, b, update, messages.InvalidSelection())
			return
		}
		bh.removeChat(ctx, b, update, chatID)
	case strings.HasPrefix(data, "admin_remove_"):
		chatID, ok := parseCallbackID(data, "admin_remove_")
		if !ok {
			bh.reply(ctx, b, update, messages.InvalidSelection())
			return
		}
		bh.confirmRemoveChat(ctx, b, update, chatID)
	default:
		bh.reply(ctx, b, update, messages.InvalidSelection())
	}
}

func (bh *Handlers) sendAdminPanel(ctx context.Context, b *bot.Bot, update *models.Update) {
	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: pad("Manage chats"), CallbackData: "admin_chats"}},
		{{Text: pad("Add a chat"), CallbackData: "admin_add_chat"}},
		{{Text: pad("Users"), CallbackData: "admin_users"}},
		{{Text: pad("Wallet"), CallbackData: "admin_wallet"}},
	}}
	bh.replyKeyboard(ctx, b, update, messages.AdminPanelTitle(), keyboard)
}

func (bh *Handlers) sendAdminChatList(ctx context.Context, b *bot.Bot, update *models.Update) {
	chats, err := bh.coord.Chats(ctx, false)
	if err != nil {
		bh.log.Errorw("admin list chats failed", "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}
	if len(chats) == 0 {
		bh.reply(ctx, b, update, messages.AdminNoChats())
		return
	}

	var text strings.Builder
	rows := make([][]models.InlineKeyboardButton, 0, len(chats)+1)
	for _, c := range chats {
		text.WriteString(messages.AdminChatLine(c))
		text.WriteString("\n")

		toggle := "Hide"
		if !c.IsActive {
			toggle = "Activate"
		}
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: fmt.Sprintf("%s: %s", toggle, c.Title), CallbackData: fmt.Sprintf("admin_toggle_%d", c.ID)},
			{Text: fmt.Sprintf("Remove: %s", c.Title), CallbackData: fmt.Sprintf("admin_remove_%d", c.ID)},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: pad("Back"), CallbackData: "admin_panel"},
	})
	bh.replyKeyboard(ctx, b, update, text.String(), &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (bh *Handlers) toggleChat(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	chat, err := bh.coord.ChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bh.reply(ctx, b, update, messages.ChatNotFound())
			return
		}
		bh.log.Errorw("toggle chat lookup failed", "chat_id", chatID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}

	updated, err := bh.coord.SetChatActive(ctx, chatID, !chat.IsActive)
	if err != nil {
		bh.log.Errorw("toggle chat failed", "chat_id", chatID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}
	bh.reply(ctx, b, update, messages.ChatToggled(updated.Title, updated.IsActive))
}

func (bh *Handlers) confirmRemoveChat(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	chat, err := bh.coord.ChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bh.reply(ctx, b, update, messages.ChatNotFound())
			return
		}
		bh.log.Errorw("remove chat lookup failed", "chat_id", chatID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}

	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: pad("Yes, remove"), CallbackData: fmt.Sprintf("admin_remove_confirm_%d", chatID)}},
		{{Text: pad("No, keep it"), CallbackData: "admin_chats"}},
	}}
	bh.replyKeyboard(ctx, b, update, messages.RemoveConfirm(chat.Title), keyboard)
}

func (bh *Handlers) removeChat(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64) {
	chat, err := bh.coord.ChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bh.reply(ctx, b, update, messages.ChatNotFound())
			return
		}
		bh.log.Errorw("remove chat lookup failed", "chat_id", chatID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}

	if err := bh.coord.RemoveChat(ctx, chatID); err != nil {
		switch {
		case errors.Is(err, store.ErrChatHasSubscriptions):
			bh.reply(ctx, b, update, messages.RemoveBlocked(chat.Title))
		case errors.Is(err, store.ErrNotFound):
			bh.reply(ctx, b, update, messages.ChatNotFound())
		default:
			bh.log.Errorw("remove chat failed", "chat_id", chatID, "err", err)
			bh.reply(ctx, b, update, messages.ErrorDefault())
		}
		return
	}
	bh.reply(ctx, b, update, messages.ChatRemoved(chat.Title))
}

func (bh *Handlers) sendUsersList(ctx context.Context, b *bot.Bot, update *models.Update) {
	users, err := bh.coord.Users(ctx, 20)
	if err != nil {
		bh.log.Errorw("list users failed", "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}
	bh.reply(ctx, b, update, messages.UsersList(users))
}

// --- add-chat conversation ---

func (bh *Handlers) startChatDraft(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity) {
	draft := &types.ChatDraft{Step: types.DraftStepChatID}
	if err := bh.drafts.SetDraft(ctx, id.TelegramID, draft); err != nil {
		bh.log.Errorw("start draft failed", "telegram_id", id.TelegramID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}
	bh.reply(ctx, b, update, messages.PromptChatID())
}

// HandleDraftInput feeds one admin text message into the add-chat
// conversation. Without a draft in flight the message is ignored.
func (bh *Handlers) HandleDraftInput(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity) {
	if update.Message == nil {
		return
	}
	draft, err := bh.drafts.GetDraft(ctx, id.TelegramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		bh.log.Errorw("get draft failed", "telegram_id", id.TelegramID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}

	text := strings.TrimSpace(update.Message.Text)

	switch draft.Step {
	case types.DraftStepChatID:
		chatID, err := parseChatID(text)
		if err != nil {
			bh.reply(ctx, b, update, messages.InvalidChatID())
			return
		}
		draft.TelegramChatID = chatID
		draft.Step = types.DraftStepTitle
		bh.advanceDraft(ctx, b, update, id, draft, messages.PromptTitle())
	case types.DraftStepTitle:
		title, err := validateTitle(text)
		if err != nil {
			bh.reply(ctx, b, update, messages.InvalidTitle())
			return
		}
		draft.Title = title
		draft.Step = types.DraftStepAmount
		bh.advanceDraft(ctx, b, update, id, draft, messages.PromptAmount())
	case types.DraftStepAmount:
		amount, err := validateAmount(text)
		if err != nil {
			bh.reply(ctx, b, update, messages.InvalidAmount())
			return
		}
		draft.PriceAmount = amount
		draft.Step = types.DraftStepCurrency
		bh.advanceDraft(ctx, b, update, id, draft, messages.PromptCurrency())
	case types.DraftStepCurrency:
		currency, err := validateCurrency(text)
		if err != nil {
			bh.reply(ctx, b, update, messages.InvalidCurrency())
			return
		}
		draft.PriceCurrency = currency
		draft.Step = types.DraftStepWallet
		bh.advanceDraft(ctx, b, update, id, draft, messages.PromptWallet())
	case types.DraftStepWallet:
		draft.WalletAddress = optionalValue(text)
		draft.Step = types.DraftStepNetwork
		bh.advanceDraft(ctx, b, update, id, draft, messages.PromptNetwork())
	case types.DraftStepNetwork:
		draft.Network = optionalValue(text)
		draft.Step = types.DraftStepConfirm
		if err := bh.drafts.SetDraft(ctx, id.TelegramID, draft); err != nil {
			bh.log.Errorw("save draft failed", "telegram_id", id.TelegramID, "err", err)
			bh.reply(ctx, b, update, messages.ErrorDefault())
			return
		}
		bh.sendDraftSummary(ctx, b, update, draft)
	case types.DraftStepConfirm:
		// Waiting on the buttons; re-show the summary.
		bh.sendDraftSummary(ctx, b, update, draft)
	}
}

func (bh *Handlers) advanceDraft(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity, draft *types.ChatDraft, prompt string) {
	if err := bh.drafts.SetDraft(ctx, id.TelegramID, draft); err != nil {
		bh.log.Errorw("save draft failed", "telegram_id", id.TelegramID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}
	bh.reply(ctx, b, update, prompt)
}

func (bh *Handlers) sendDraftSummary(ctx context.Context, b *bot.Bot, update *models.Update, draft *types.ChatDraft) {
	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: pad("Save"), CallbackData: "admin_draft_save"}},
		{{Text: pad("Cancel"), CallbackData: "admin_draft_cancel"}},
	}}
	bh.replyKeyboard(ctx, b, update, messages.DraftSummary(draft), keyboard)
}

func (bh *Handlers) saveChatDraft(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity) {
	draft, err := bh.drafts.GetDraft(ctx, id.TelegramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bh.reply(ctx, b, update, messages.InvalidSelection())
			return
		}
		bh.log.Errorw("get draft failed", "telegram_id", id.TelegramID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}
	if draft.Step != types.DraftStepConfirm {
		bh.reply(ctx, b, update, messages.InvalidSelection())
		return
	}

	chat, err := bh.coord.SaveChat(ctx, types.ChatInput{
		TelegramChatID: draft.TelegramChatID,
		Title:          draft.Title,
		PriceAmount:    draft.PriceAmount,
		PriceCurrency:  draft.PriceCurrency,
		WalletAddress:  draft.WalletAddress,
		Network:        draft.Network,
		IsActive:       true,
	})
	if err != nil {
		bh.log.Errorw("save chat failed", "telegram_id", id.TelegramID, "err", err)
		bh.reply(ctx, b, update, messages.ErrorDefault())
		return
	}

	if err := bh.drafts.ClearDraft(ctx, id.TelegramID); err != nil {
		bh.log.Warnw("clear draft failed", "telegram_id", id.TelegramID, "err", err)
	}
	bh.reply(ctx, b, update, messages.ChatSaved(chat.Title))
}

func (bh *Handlers) cancelChatDraft(ctx context.Context, b *bot.Bot, update *models.Update, id types.Identity) {
	if err := bh.drafts.ClearDraft(ctx, id.TelegramID); err != nil && !errors.Is(err, store.ErrNotFound) {
		bh.log.Warnw("clear draft failed", "telegram_id", id.TelegramID, "err", err)
	}
	bh.reply(ctx, b, update, messages.DraftCancelled())
}

// --- input validation ---

var (
	errInvalidInput = errors.New("invalid input")

	amountRe   = regexp.MustCompile(`^[0-9]{1,8}(\.[0-9]{1,2})?$`)
	currencyRe = regexp.MustCompile(`^[A-Za-z]{1,10}$`)
)

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidInput
	}
	return id, nil
}

func validateTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 128 {
		return "", errInvalidInput
	}
	return s, nil
}

func validateAmount(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !amountRe.MatchString(s) {
		return "", errInvalidInput
	}
	// All-zero amounts are not a price.
	if strings.Trim(s, "0.") == "" {
		return "", errInvalidInput
	}
	return s, nil
}

func validateCurrency(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !currencyRe.MatchString(s) {
		return "", errInvalidInput
	}
	return strings.ToUpper(s), nil
}

// optionalValue treats "-" as "use the global default".
func optionalValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" {
		return ""
	}
	return s
}
