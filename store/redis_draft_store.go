package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avbocharov/chatpass-bot/types"
)

// RedisDraftStore keeps the admin add-chat conversation state. Drafts are
// throwaway: an abandoned conversation just expires with the TTL.
type RedisDraftStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisDraftStore(client *RedisClient, ttlHours int) *RedisDraftStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDraftStore{client: client, ttl: ttl}
}

func (s *RedisDraftStore) GetDraft(ctx context.Context, adminID int64) (*types.ChatDraft, error) {
	var draft types.ChatDraft
	key := s.client.key("chat_draft", fmt.Sprintf("%d", adminID))
	if err := s.client.Get(ctx, key, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *RedisDraftStore) SetDraft(ctx context.Context, adminID int64, draft *types.ChatDraft) error {
	key := s.client.key("chat_draft", fmt.Sprintf("%d", adminID))
	return s.client.Set(ctx, key, draft, s.ttl)
}

func (s *RedisDraftStore) ClearDraft(ctx context.Context, adminID int64) error {
	key := s.client.key("chat_draft", fmt.Sprintf("%d", adminID))
	return s.client.Del(ctx, key)
}
