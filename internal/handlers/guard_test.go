package handlers

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/avbocharov/chatpass-bot/internal/config"
	"github.com/avbocharov/chatpass-bot/types"
)

func guardHandlers(adminIDs ...int64) *Handlers {
	return NewHandlers(nil, nil, &config.Config{AdminUserIDs: adminIDs}, zap.NewNop().Sugar())
}

func TestRequireAdminAllows(t *testing.T) {
	bh := guardHandlers(42)

	called := false
	next := func(ctx context.Context, b *bot.Bot, update *models.Update) { called = true }

	bh.RequireAdmin(types.Identity{TelegramID: 42}, next)(context.Background(), nil, &models.Update{})
	assert.True(t, called)
}

func TestRequireAdminRejects(t *testing.T) {
	bh := guardHandlers(42)

	called := false
	next := func(ctx context.Context, b *bot.Bot, update *models.Update) { called = true }

	bh.RequireAdmin(types.Identity{TelegramID: 999}, next)(context.Background(), nil, &models.Update{})
	assert.False(t, called)
}

func TestRequireAdminRejectsWhenNoAdminsConfigured(t *testing.T) {
	bh := guardHandlers()

	called := false
	next := func(ctx context.Context, b *bot.Bot, update *models.Update) { called = true }

	bh.RequireAdmin(types.Identity{TelegramID: 42}, next)(context.Background(), nil, &models.Update{})
	assert.False(t, called)
}
