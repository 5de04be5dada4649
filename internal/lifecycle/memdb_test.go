package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/avbocharov/chatpass-bot/store"
	"github.com/avbocharov/chatpass-bot/types"
)

// memDB is an in-memory types.DB with transaction semantics: each WithTx
// works on a deep copy of the state and the copy replaces the live state only
// when fn succeeds, so a mid-transaction failure leaves nothing behind.
type memDB struct {
	mu    sync.Mutex
	state *memState

	// test hooks
	failTx           error
	failCreateSub    error
	failUpdateStatus error
}

type memState struct {
	users map[int64]*types.User
	chats map[int64]*types.Chat
	subs  map[int64]*types.Subscription

	nextUser, nextChat, nextSub int64
}

func newMemDB() *memDB {
	return &memDB{state: &memState{
		users:    map[int64]*types.User{},
		chats:    map[int64]*types.Chat{},
		subs:     map[int64]*types.Subscription{},
		nextUser: 1, nextChat: 1, nextSub: 1,
	}}
}

func (m *memDB) WithTx(ctx context.Context, fn func(ctx context.Context, r types.Repo) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failTx != nil {
		return m.failTx
	}

	snapshot := m.state.clone()
	if err := fn(ctx, &memRepo{db: m, s: snapshot}); err != nil {
		return err
	}
	m.state = snapshot
	return nil
}

// seed helpers mutate live state directly, outside any transaction.

func (m *memDB) seedChat(c *types.Chat) *types.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	if cp.ID == 0 {
		cp.ID = m.state.nextChat
		m.state.nextChat++
	}
	m.state.chats[cp.ID] = &cp
	return &cp
}

func (m *memDB) setSubscriptionEnd(id int64, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.state.subs[id]; ok {
		s.EndDate = end
	}
}

func (m *memDB) setSubscriptionCreated(id int64, created time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.state.subs[id]; ok {
		s.CreatedAt = created
	}
}

func (m *memDB) subscription(id int64) *types.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.state.subs[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (m *memDB) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.users)
}

func (m *memDB) subCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.subs)
}

func (s *memState) clone() *memState {
	out := &memState{
		users:    make(map[int64]*types.User, len(s.users)),
		chats:    make(map[int64]*types.Chat, len(s.chats)),
		subs:     make(map[int64]*types.Subscription, len(s.subs)),
		nextUser: s.nextUser, nextChat: s.nextChat, nextSub: s.nextSub,
	}
	for id, u := range s.users {
		cp := *u
		out.users[id] = &cp
	}
	for id, c := range s.chats {
		cp := *c
		out.chats[id] = &cp
	}
	for id, sub := range s.subs {
		cp := *sub
		cp.User, cp.Chat = nil, nil
		out.subs[id] = &cp
	}
	return out
}

// memRepo implements types.Repo over a memState snapshot.
type memRepo struct {
	db *memDB
	s  *memState
}

func (r *memRepo) GetOrCreateUser(_ context.Context, telegramID int64) (*types.User, error) {
	for _, u := range r.s.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	now := time.Now().UTC()
	u := &types.User{
		ID: r.s.nextUser, TelegramID: telegramID, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	r.s.nextUser++
	r.s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *memRepo) TouchUserProfile(_ context.Context, userID int64, username, firstName, lastName string) error {
	u, ok := r.s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if username != "" {
		u.Username = username
	}
	if firstName != "" {
		u.FirstName = firstName
	}
	if lastName != "" {
		u.LastName = lastName
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memRepo) AllUsers(_ context.Context, limit int) ([]*types.User, error) {
	var out []*types.User
	for _, u := range r.s.users {
		cp := *u
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) CreatePendingSubscription(_ context.Context, userID, chatID int64, durationDays int, paymentRef string, details map[string]string) (*types.Subscription, error) {
	if r.db.failCreateSub != nil {
		return nil, r.db.failCreateSub
	}
	for _, s := range r.s.subs {
		if s.PaymentRef != "" && s.PaymentRef == paymentRef {
			return nil, store.ErrDuplicatePaymentRef
		}
	}
	now := time.Now().UTC()
	sub := &types.Subscription{
		ID: r.s.nextSub, UserID: userID, ChatID: chatID,
		StartDate: now, EndDate: now.AddDate(0, 0, durationDays),
		Status: types.StatusPendingPayment, PaymentRef: paymentRef,
		PaymentDetails: details, CreatedAt: now, UpdatedAt: now,
	}
	r.s.nextSub++
	r.s.subs[sub.ID] = sub
	cp := *sub
	return &cp, nil
}

func (r *memRepo) SubscriptionByID(_ context.Context, id int64) (*types.Subscription, error) {
	s, ok := r.s.subs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.joined(s), nil
}

func (r *memRepo) UpdateSubscriptionStatus(_ context.Context, id int64, status types.Status) (*types.Subscription, error) {
	if r.db.failUpdateStatus != nil {
		return nil, r.db.failUpdateStatus
	}
	s, ok := r.s.subs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	return &cp, nil
}

func (r *memRepo) UpdateSubscriptionStatusBatch(_ context.Context, ids []int64, status types.Status) error {
	if r.db.failUpdateStatus != nil {
		return r.db.failUpdateStatus
	}
	for _, id := range ids {
		if s, ok := r.s.subs[id]; ok {
			s.Status = status
			s.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (r *memRepo) EndingSoon(_ context.Context, withinDays int) ([]*types.Subscription, error) {
	now := time.Now().UTC()
	limit := now.AddDate(0, 0, withinDays)
	var out []*types.Subscription
	for _, s := range r.s.subs {
		if s.Status == types.StatusActive && s.EndDate.After(now) && !s.EndDate.After(limit) {
			out = append(out, r.joined(s))
		}
	}
	return out, nil
}

func (r *memRepo) Expired(_ context.Context) ([]*types.Subscription, error) {
	now := time.Now().UTC()
	var out []*types.Subscription
	for _, s := range r.s.subs {
		if s.Status == types.StatusActive && !s.EndDate.After(now) {
			out = append(out, r.joined(s))
		}
	}
	return out, nil
}

func (r *memRepo) StalePending(_ context.Context, olderThan time.Time) ([]*types.Subscription, error) {
	var out []*types.Subscription
	for _, s := range r.s.subs {
		if s.Status == types.StatusPendingPayment && !s.CreatedAt.After(olderThan) {
			out = append(out, r.joined(s))
		}
	}
	return out, nil
}

func (r *memRepo) ActiveForUser(_ context.Context, telegramID int64) ([]*types.Subscription, error) {
	now := time.Now().UTC()
	var out []*types.Subscription
	for _, s := range r.s.subs {
		u := r.s.users[s.UserID]
		if u == nil || u.TelegramID != telegramID {
			continue
		}
		if s.Status == types.StatusActive && s.EndDate.After(now) {
			out = append(out, r.joined(s))
		}
	}
	return out, nil
}

func (r *memRepo) UpsertChatByTelegramID(_ context.Context, in types.ChatInput) (*types.Chat, error) {
	now := time.Now().UTC()
	for _, c := range r.s.chats {
		if c.TelegramChatID == in.TelegramChatID {
			c.Title = in.Title
			c.PriceAmount = in.PriceAmount
			c.PriceCurrency = in.PriceCurrency
			c.WalletAddress = in.WalletAddress
			c.Network = in.Network
			c.IsActive = in.IsActive
			c.UpdatedAt = now
			cp := *c
			return &cp, nil
		}
	}
	c := &types.Chat{
		ID: r.s.nextChat, TelegramChatID: in.TelegramChatID, Title: in.Title,
		PriceAmount: in.PriceAmount, PriceCurrency: in.PriceCurrency,
		WalletAddress: in.WalletAddress, Network: in.Network,
		IsActive: in.IsActive, CreatedAt: now, UpdatedAt: now,
	}
	r.s.nextChat++
	r.s.chats[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *memRepo) ChatByID(_ context.Context, id int64) (*types.Chat, error) {
	c, ok := r.s.chats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) ActiveChats(_ context.Context) ([]*types.Chat, error) {
	var out []*types.Chat
	for _, c := range r.s.chats {
		if c.IsActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) AllChats(_ context.Context) ([]*types.Chat, error) {
	var out []*types.Chat
	for _, c := range r.s.chats {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRepo) SetChatActive(_ context.Context, id int64, active bool) (*types.Chat, error) {
	c, ok := r.s.chats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.IsActive = active
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (r *memRepo) DeleteChat(_ context.Context, id int64) error {
	if _, ok := r.s.chats[id]; !ok {
		return store.ErrNotFound
	}
	for _, s := range r.s.subs {
		if s.ChatID == id {
			return store.ErrChatHasSubscriptions
		}
	}
	delete(r.s.chats, id)
	return nil
}

func (r *memRepo) joined(s *types.Subscription) *types.Subscription {
	cp := *s
	if u, ok := r.s.users[s.UserID]; ok {
		ucp := *u
		cp.User = &ucp
	}
	if c, ok := r.s.chats[s.ChatID]; ok {
		ccp := *c
		cp.Chat = &ccp
	}
	return &cp
}

// fakeNotifier records sends and can fail per recipient.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    map[int64][]string
	failFor map[int64]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: map[int64][]string{}, failFor: map[int64]error{}}
}

func (n *fakeNotifier) Notify(_ context.Context, recipientID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failFor[recipientID]; ok {
		return err
	}
	n.sent[recipientID] = append(n.sent[recipientID], text)
	return nil
}

func (n *fakeNotifier) sentTo(recipientID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent[recipientID]...)
}
