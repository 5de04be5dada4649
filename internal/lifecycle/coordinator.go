package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avbocharov/chatpass-bot/internal/messages"
	"github.com/avbocharov/chatpass-bot/store"
	"github.com/avbocharov/chatpass-bot/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Coordinator owns the subscription state machine and its transaction
// boundaries. Every logical operation is exactly one DB.WithTx call; outward
// notifications always happen after the commit and never fail the operation.
type Coordinator struct {
	db       types.DB
	notifier types.Notifier
	log      *zap.SugaredLogger

	subscriptionDays  int
	reminderDaysAhead int
	pendingTTL        time.Duration
	defaultWallet     string
	defaultNetwork    string
}

type Options struct {
	SubscriptionDays  int
	ReminderDaysAhead int
	// PendingTTL bounds how long an unconfirmed pending_payment subscription
	// may linger before SweepStalePending cancels it. Zero disables the sweep.
	PendingTTL     time.Duration
	DefaultWallet  string
	DefaultNetwork string
}

func New(db types.DB, notifier types.Notifier, log *zap.SugaredLogger, opts Options) *Coordinator {
	if opts.SubscriptionDays <= 0 {
		opts.SubscriptionDays = 30
	}
	if opts.ReminderDaysAhead < 0 {
		opts.ReminderDaysAhead = 0
	}
	return &Coordinator{
		db:                db,
		notifier:          notifier,
		log:               log,
		subscriptionDays:  opts.SubscriptionDays,
		reminderDaysAhead: opts.ReminderDaysAhead,
		pendingTTL:        opts.PendingTTL,
		defaultWallet:     opts.DefaultWallet,
		defaultNetwork:    opts.DefaultNetwork,
	}
}

// SubscribeResult carries everything the presentation layer needs to show
// payment instructions.
type SubscribeResult struct {
	Subscription *types.Subscription
	Chat         *types.Chat
	Wallet       string
	Network      string
}

// Subscribe creates a pending_payment subscription for the caller on the
// given chat. User resolution, profile refresh and the subscription insert
// share one transaction: on any failure nothing is persisted.
func (c *Coordinator) Subscribe(ctx context.Context, caller types.Identity, chatID int64) (*SubscribeResult, error) {
	var res *SubscribeResult

	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		chat, err := r.ChatByID(ctx, chatID)
		if err != nil {
			return err
		}
		if !chat.IsActive {
			// Inactive chats are invisible to subscribers.
			return store.ErrNotFound
		}

		user, err := r.GetOrCreateUser(ctx, caller.TelegramID)
		if err != nil {
			return err
		}
		if err := r.TouchUserProfile(ctx, user.ID, caller.Username, caller.FirstName, caller.LastName); err != nil {
			return err
		}

		wallet, network := c.resolveWallet(chat)
		ref := NewPaymentRef()
		sub, err := r.CreatePendingSubscription(ctx, user.ID, chat.ID, c.subscriptionDays, ref, map[string]string{
			"wallet":    wallet,
			"network":   network,
			"reference": ref,
		})
		if err != nil {
			return err
		}
		sub.User = user
		sub.Chat = chat

		res = &SubscribeResult{Subscription: sub, Chat: chat, Wallet: wallet, Network: network}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Infow("pending subscription created",
		"subscription_id", res.Subscription.ID,
		"telegram_id", caller.TelegramID,
		"chat_id", chatID,
		"payment_ref", res.Subscription.PaymentRef)
	return res, nil
}

// ConfirmResult reports the post-confirmation state. AlreadyActive marks the
// idempotent no-op: the subscription was active before this call and its
// window was left untouched.
type ConfirmResult struct {
	Subscription  *types.Subscription
	AlreadyActive bool
}

// ConfirmPayment flips a pending_payment subscription to active on the user's
// claim. The confirming identity must own the subscription; confirming an
// already-active subscription succeeds without touching the window.
func (c *Coordinator) ConfirmPayment(ctx context.Context, caller types.Identity, subscriptionID int64) (*ConfirmResult, error) {
	var res *ConfirmResult

	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		sub, err := r.SubscriptionByID(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.User == nil || sub.User.TelegramID != caller.TelegramID {
			return store.ErrNotOwner
		}
		if sub.Status == types.StatusActive {
			res = &ConfirmResult{Subscription: sub, AlreadyActive: true}
			return nil
		}
		if !sub.Status.CanTransitionTo(types.StatusActive) {
			return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, sub.Status, types.StatusActive)
		}

		updated, err := r.UpdateSubscriptionStatus(ctx, sub.ID, types.StatusActive)
		if err != nil {
			return err
		}
		updated.User = sub.User
		updated.Chat = sub.Chat
		res = &ConfirmResult{Subscription: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.AlreadyActive {
		c.log.Infow("confirm on already-active subscription",
			"subscription_id", subscriptionID, "telegram_id", caller.TelegramID)
		return res, nil
	}

	c.log.Infow("subscription activated",
		"subscription_id", subscriptionID, "telegram_id", caller.TelegramID)

	// Simulated chat invite, after the commit and best-effort.
	if res.Subscription.Chat != nil {
		if err := c.notifier.Notify(ctx, caller.TelegramID, messages.ChatInvitePlaceholder(res.Subscription.Chat.Title)); err != nil {
			c.log.Warnw("invite notification failed",
				"subscription_id", subscriptionID, "telegram_id", caller.TelegramID, "err", err)
		}
	}
	return res, nil
}

// Cancel transitions an active subscription to cancelled at the owner's
// request.
func (c *Coordinator) Cancel(ctx context.Context, caller types.Identity, subscriptionID int64) (*types.Subscription, error) {
	var cancelled *types.Subscription

	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		sub, err := r.SubscriptionByID(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.User == nil || sub.User.TelegramID != caller.TelegramID {
			return store.ErrNotOwner
		}
		if !sub.Status.CanTransitionTo(types.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, sub.Status, types.StatusCancelled)
		}

		updated, err := r.UpdateSubscriptionStatus(ctx, sub.ID, types.StatusCancelled)
		if err != nil {
			return err
		}
		updated.User = sub.User
		updated.Chat = sub.Chat
		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Infow("subscription cancelled",
		"subscription_id", subscriptionID, "telegram_id", caller.TelegramID)
	return cancelled, nil
}

// ActiveSubscriptions lists the caller's currently active subscriptions with
// chat details loaded.
func (c *Coordinator) ActiveSubscriptions(ctx context.Context, telegramID int64) ([]*types.Subscription, error) {
	var subs []*types.Subscription
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		subs, err = r.ActiveForUser(ctx, telegramID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *Coordinator) resolveWallet(chat *types.Chat) (wallet, network string) {
	wallet = chat.WalletAddress
	if wallet == "" {
		wallet = c.defaultWallet
	}
	network = chat.Network
	if network == "" {
		network = c.defaultNetwork
	}
	return wallet, network
}

// NewPaymentRef builds a human-readable payment reference. Ten hex chars of
// UUID entropy keep the collision probability negligible; the store's unique
// index backs it up.
func NewPaymentRef() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "PAYREF-" + strings.ToUpper(raw[:10])
}
