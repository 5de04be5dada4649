package lifecycle

import (
	"context"

	"github.com/avbocharov/chatpass-bot/types"
)

// Operator-facing operations. Validation happens in the admin flow; refusing
// to delete a referenced chat is enforced by the store's referential
// constraints and surfaces as store.ErrChatHasSubscriptions.

func (c *Coordinator) SaveChat(ctx context.Context, in types.ChatInput) (*types.Chat, error) {
	var chat *types.Chat
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		chat, err = r.UpsertChatByTelegramID(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Infow("chat saved", "chat_id", chat.ID, "telegram_chat_id", chat.TelegramChatID, "title", chat.Title)
	return chat, nil
}

func (c *Coordinator) RemoveChat(ctx context.Context, chatID int64) error {
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		return r.DeleteChat(ctx, chatID)
	})
	if err != nil {
		return err
	}
	c.log.Infow("chat removed", "chat_id", chatID)
	return nil
}

func (c *Coordinator) SetChatActive(ctx context.Context, chatID int64, active bool) (*types.Chat, error) {
	var chat *types.Chat
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		chat, err = r.SetChatActive(ctx, chatID, active)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Infow("chat visibility changed", "chat_id", chatID, "active", active)
	return chat, nil
}

func (c *Coordinator) ChatByID(ctx context.Context, chatID int64) (*types.Chat, error) {
	var chat *types.Chat
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		chat, err = r.ChatByID(ctx, chatID)
		return err
	})
	return chat, err
}

func (c *Coordinator) Chats(ctx context.Context, onlyActive bool) ([]*types.Chat, error) {
	var chats []*types.Chat
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		if onlyActive {
			chats, err = r.ActiveChats(ctx)
		} else {
			chats, err = r.AllChats(ctx)
		}
		return err
	})
	return chats, err
}

func (c *Coordinator) Users(ctx context.Context, limit int) ([]*types.User, error) {
	var users []*types.User
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		users, err = r.AllUsers(ctx, limit)
		return err
	})
	return users, err
}
