package lifecycle

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/avbocharov/chatpass-bot/store"
	"github.com/avbocharov/chatpass-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCoordinator(db *memDB, n *fakeNotifier, opts Options) *Coordinator {
	return New(db, n, zap.NewNop().Sugar(), opts)
}

func seedVIPChat(db *memDB) *types.Chat {
	return db.seedChat(&types.Chat{
		TelegramChatID: -100200300,
		Title:          "VIP",
		PriceAmount:    "10.00",
		PriceCurrency:  "USD",
		WalletAddress:  "TWalletAddr",
		Network:        "TRC20",
		IsActive:       true,
	})
}

var caller = types.Identity{TelegramID: 555, Username: "alice", FirstName: "Alice"}

func TestSubscribeCreatesPendingSubscription(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	c := newTestCoordinator(db, newFakeNotifier(), Options{SubscriptionDays: 30})

	before := time.Now().UTC()
	res, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)

	sub := res.Subscription
	assert.Equal(t, types.StatusPendingPayment, sub.Status)
	assert.Equal(t, chat.ID, sub.ChatID)
	assert.Regexp(t, `^PAYREF-[0-9A-F]{10}$`, sub.PaymentRef)
	assert.Equal(t, sub.PaymentRef, sub.PaymentDetails["reference"])
	assert.Equal(t, "TWalletAddr", res.Wallet)
	assert.Equal(t, "TRC20", res.Network)

	wantEnd := sub.StartDate.AddDate(0, 0, 30)
	assert.WithinDuration(t, wantEnd, sub.EndDate, time.Second)
	assert.True(t, sub.StartDate.After(before.Add(-time.Second)))

	assert.Equal(t, 1, db.userCount())
	assert.Equal(t, 1, db.subCount())
}

func TestSubscribeReusesExistingUser(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	c := newTestCoordinator(db, newFakeNotifier(), Options{})

	_, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)
	_, err = c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)

	// One user row, two subscription rows: history is preserved, never
	// overwritten.
	assert.Equal(t, 1, db.userCount())
	assert.Equal(t, 2, db.subCount())
}

func TestSubscribeFallsBackToDefaultWallet(t *testing.T) {
	db := newMemDB()
	chat := db.seedChat(&types.Chat{
		TelegramChatID: -1, Title: "Basic", PriceAmount: "5.00", PriceCurrency: "USD", IsActive: true,
	})
	c := newTestCoordinator(db, newFakeNotifier(), Options{
		DefaultWallet: "GlobalWallet", DefaultNetwork: "ERC20",
	})

	res, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "GlobalWallet", res.Wallet)
	assert.Equal(t, "ERC20", res.Network)
	assert.Equal(t, "GlobalWallet", res.Subscription.PaymentDetails["wallet"])
}

func TestSubscribeUnknownOrInactiveChat(t *testing.T) {
	db := newMemDB()
	inactive := db.seedChat(&types.Chat{TelegramChatID: -2, Title: "Hidden", PriceAmount: "1.00", PriceCurrency: "USD", IsActive: false})
	c := newTestCoordinator(db, newFakeNotifier(), Options{})

	_, err := c.Subscribe(context.Background(), caller, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = c.Subscribe(context.Background(), caller, inactive.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, db.subCount())
}

func TestSubscribeRollsBackAtomically(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	c := newTestCoordinator(db, newFakeNotifier(), Options{})

	boom := errors.New("insert failed")
	db.failCreateSub = boom
	_, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.ErrorIs(t, err, boom)

	// The user created earlier in the same transaction must not survive.
	assert.Equal(t, 0, db.userCount())
	assert.Equal(t, 0, db.subCount())

	// Retrying after the failure produces exactly one of each.
	db.failCreateSub = nil
	_, err = c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, db.userCount())
	assert.Equal(t, 1, db.subCount())
}

func TestConfirmActivates(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	n := newFakeNotifier()
	c := newTestCoordinator(db, n, Options{})

	res, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)

	confirmed, err := c.ConfirmPayment(context.Background(), caller, res.Subscription.ID)
	require.NoError(t, err)
	assert.False(t, confirmed.AlreadyActive)
	assert.Equal(t, types.StatusActive, confirmed.Subscription.Status)
	assert.Equal(t, res.Subscription.EndDate, confirmed.Subscription.EndDate)

	// Simulated invite went out after the commit.
	msgs := n.sentTo(caller.TelegramID)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "VIP")
}

func TestConfirmIsIdempotent(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	n := newFakeNotifier()
	c := newTestCoordinator(db, n, Options{})

	res, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)

	first, err := c.ConfirmPayment(context.Background(), caller, res.Subscription.ID)
	require.NoError(t, err)

	second, err := c.ConfirmPayment(context.Background(), caller, res.Subscription.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyActive)
	assert.Equal(t, types.StatusActive, second.Subscription.Status)
	// The window is never extended or reset by a duplicate confirm.
	assert.Equal(t, first.Subscription.EndDate, second.Subscription.EndDate)
	// And no second invite.
	assert.Len(t, n.sentTo(caller.TelegramID), 1)
}

func TestConfirmOwnershipGuard(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	c := newTestCoordinator(db, newFakeNotifier(), Options{})

	res, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)

	intruder := types.Identity{TelegramID: 777}
	_, err = c.ConfirmPayment(context.Background(), intruder, res.Subscription.ID)
	assert.ErrorIs(t, err, store.ErrNotOwner)
	assert.NotErrorIs(t, err, store.ErrNotFound)

	// Status untouched.
	assert.Equal(t, types.StatusPendingPayment, db.subscription(res.Subscription.ID).Status)
}

func TestConfirmNotFound(t *testing.T) {
	db := newMemDB()
	c := newTestCoordinator(db, newFakeNotifier(), Options{})

	_, err := c.ConfirmPayment(context.Background(), caller, 12345)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConfirmRejectsTerminalStates(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	c := newTestCoordinator(db, newFakeNotifier(), Options{})

	res, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)
	_, err = c.Cancel(context.Background(), caller, res.Subscription.ID)
	require.NoError(t, err)

	_, err = c.ConfirmPayment(context.Background(), caller, res.Subscription.ID)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.Equal(t, types.StatusCancelled, db.subscription(res.Subscription.ID).Status)
}

func TestCancel(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	c := newTestCoordinator(db, newFakeNotifier(), Options{})

	res, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)
	_, err = c.ConfirmPayment(context.Background(), caller, res.Subscription.ID)
	require.NoError(t, err)

	cancelled, err := c.Cancel(context.Background(), caller, res.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)

	// Only the owner may cancel.
	res2, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)
	_, err = c.Cancel(context.Background(), types.Identity{TelegramID: 1}, res2.Subscription.ID)
	assert.ErrorIs(t, err, store.ErrNotOwner)
}

func TestActiveSubscriptions(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	c := newTestCoordinator(db, newFakeNotifier(), Options{})

	res, err := c.Subscribe(context.Background(), caller, chat.ID)
	require.NoError(t, err)

	subs, err := c.ActiveSubscriptions(context.Background(), caller.TelegramID)
	require.NoError(t, err)
	assert.Empty(t, subs, "pending subscriptions are not active")

	_, err = c.ConfirmPayment(context.Background(), caller, res.Subscription.ID)
	require.NoError(t, err)

	subs, err = c.ActiveSubscriptions(context.Background(), caller.TelegramID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].Chat)
	assert.Equal(t, "VIP", subs[0].Chat.Title)

	subs, err = c.ActiveSubscriptions(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestNewPaymentRef(t *testing.T) {
	re := regexp.MustCompile(`^PAYREF-[0-9A-F]{10}$`)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		ref := NewPaymentRef()
		require.Regexp(t, re, ref)
		require.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

// Full lifecycle walk-through: subscribe, confirm, expire.
func TestLifecycleScenario(t *testing.T) {
	db := newMemDB()
	chat := seedVIPChat(db)
	n := newFakeNotifier()
	c := newTestCoordinator(db, n, Options{SubscriptionDays: 30})

	user := types.Identity{TelegramID: 555}
	res, err := c.Subscribe(context.Background(), user, chat.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusPendingPayment, res.Subscription.Status)
	require.WithinDuration(t, res.Subscription.StartDate.AddDate(0, 0, 30), res.Subscription.EndDate, time.Second)
	require.NotEmpty(t, res.Subscription.PaymentRef)

	confirmed, err := c.ConfirmPayment(context.Background(), user, res.Subscription.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, confirmed.Subscription.Status)
	require.Equal(t, res.Subscription.EndDate, confirmed.Subscription.EndDate)

	// 31 days later.
	db.setSubscriptionEnd(res.Subscription.ID, time.Now().UTC().Add(-24*time.Hour))
	c.SweepExpired(context.Background())

	require.Equal(t, types.StatusExpired, db.subscription(res.Subscription.ID).Status)
	msgs := n.sentTo(555)
	expiryNotices := 0
	for _, m := range msgs {
		if regexp.MustCompile(`has expired`).MatchString(m) {
			expiryNotices++
		}
	}
	assert.Equal(t, 1, expiryNotices)
}
