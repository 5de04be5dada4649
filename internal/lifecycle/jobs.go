package lifecycle

import (
	"context"
	"time"

	"github.com/avbocharov/chatpass-bot/internal/messages"
	"github.com/avbocharov/chatpass-bot/types"
)

// DispatchReminders notifies users whose active subscriptions end within the
// configured lead time. Read-only: no state changes, so re-running just sends
// the reminder again. A failed send for one user never affects the others.
func (c *Coordinator) DispatchReminders(ctx context.Context) {
	if c.reminderDaysAhead == 0 {
		return
	}

	var due []*types.Subscription
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		due, err = r.EndingSoon(ctx, c.reminderDaysAhead)
		return err
	})
	if err != nil {
		c.log.Errorw("reminder dispatch: loading subscriptions", "err", err)
		return
	}

	c.log.Infow("reminder dispatch", "due", len(due), "days_ahead", c.reminderDaysAhead)
	sent := 0
	for _, sub := range due {
		if sub.User == nil || sub.Chat == nil {
			continue
		}
		if err := c.notifier.Notify(ctx, sub.User.TelegramID, messages.RenewalReminder(sub.Chat.Title, sub.EndDate)); err != nil {
			c.log.Warnw("reminder send failed",
				"subscription_id", sub.ID, "telegram_id", sub.User.TelegramID, "err", err)
			continue
		}
		sent++
	}
	c.log.Infow("reminder dispatch done", "sent", sent, "due", len(due))
}

// SweepExpired flips every active subscription past its end date to expired.
// The status flips commit as one batch; notifications fan out afterwards,
// best-effort per record. A second run right after a successful one finds
// nothing to do.
func (c *Coordinator) SweepExpired(ctx context.Context) {
	var expired []*types.Subscription
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		expired, err = r.Expired(ctx)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]int64, 0, len(expired))
		for _, sub := range expired {
			ids = append(ids, sub.ID)
		}
		return r.UpdateSubscriptionStatusBatch(ctx, ids, types.StatusExpired)
	})
	if err != nil {
		c.log.Errorw("expiry sweep failed, skipping this run", "err", err)
		return
	}
	if len(expired) == 0 {
		c.log.Debugw("expiry sweep: nothing due")
		return
	}

	c.log.Infow("expiry sweep committed", "expired", len(expired))
	for _, sub := range expired {
		if sub.User == nil || sub.Chat == nil {
			continue
		}
		if err := c.notifier.Notify(ctx, sub.User.TelegramID, messages.SubscriptionExpired(sub.Chat.Title)); err != nil {
			c.log.Warnw("expiry notification failed",
				"subscription_id", sub.ID, "telegram_id", sub.User.TelegramID, "err", err)
			continue
		}
		// Simulated removal from the chat.
		if err := c.notifier.Notify(ctx, sub.User.TelegramID, messages.ChatRemovePlaceholder(sub.Chat.Title)); err != nil {
			c.log.Warnw("removal notification failed",
				"subscription_id", sub.ID, "telegram_id", sub.User.TelegramID, "err", err)
		}
	}
}

// SweepStalePending cancels pending_payment subscriptions that were never
// confirmed within the TTL. Disabled when the TTL is zero.
func (c *Coordinator) SweepStalePending(ctx context.Context) {
	if c.pendingTTL <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-c.pendingTTL)

	var stale []*types.Subscription
	err := c.db.WithTx(ctx, func(ctx context.Context, r types.Repo) error {
		var err error
		stale, err = r.StalePending(ctx, cutoff)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		ids := make([]int64, 0, len(stale))
		for _, sub := range stale {
			ids = append(ids, sub.ID)
		}
		return r.UpdateSubscriptionStatusBatch(ctx, ids, types.StatusCancelled)
	})
	if err != nil {
		c.log.Errorw("stale-pending sweep failed, skipping this run", "err", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	c.log.Infow("stale-pending sweep committed", "cancelled", len(stale), "cutoff", cutoff)
	for _, sub := range stale {
		if sub.User == nil || sub.Chat == nil {
			continue
		}
		if err := c.notifier.Notify(ctx, sub.User.TelegramID, messages.PendingCancelled(sub.Chat.Title)); err != nil {
			c.log.Warnw("stale-pending notification failed",
				"subscription_id", sub.ID, "telegram_id", sub.User.TelegramID, "err", err)
		}
	}
}
