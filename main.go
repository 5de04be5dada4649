package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avbocharov/chatpass-bot/internal/config"
	"github.com/avbocharov/chatpass-bot/internal/handlers"
	"github.com/avbocharov/chatpass-bot/internal/lifecycle"
	"github.com/avbocharov/chatpass-bot/internal/middleware"
	"github.com/avbocharov/chatpass-bot/internal/notify"
	"github.com/avbocharov/chatpass-bot/internal/scheduler"
	"github.com/avbocharov/chatpass-bot/pkg/logger"
	"github.com/avbocharov/chatpass-bot/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatalw("config load failed", "err", err)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "chatpass")
	if err != nil {
		log.Fatalw("redis connect failed", "addr", cfg.RedisAddr, "err", err)
	}
	defer rdb.Close()

	draftStore := store.NewRedisDraftStore(rdb, 24)

	db, err := store.NewPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalw("postgres connect failed", "err", err)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	pollTimeout := 50 * time.Second

	b, err := bot.New(cfg.BotToken, bot.WithHTTPClient(pollTimeout, httpClient))
	if err != nil {
		log.Fatalw("bot init failed", "err", err)
	}

	coord := lifecycle.New(db, notify.NewTelegramNotifier(b), log, lifecycle.Options{
		SubscriptionDays:  cfg.SubscriptionDays,
		ReminderDaysAhead: cfg.ReminderDaysAhead,
		PendingTTL:        time.Duration(cfg.PendingTTLDays) * 24 * time.Hour,
		DefaultWallet:     cfg.DefaultWalletAddress,
		DefaultNetwork:    cfg.DefaultNetwork,
	})

	jobs := scheduler.New(log)
	if err := jobs.Add("renewal_reminders", cfg.RemindersAt, coord.DispatchReminders); err != nil {
		log.Fatalw("job registration failed", "err", err)
	}
	if err := jobs.Add("expiry_sweep", cfg.ExpiryAt, coord.SweepExpired); err != nil {
		log.Fatalw("job registration failed", "err", err)
	}
	if cfg.PendingTTLDays > 0 {
		if err := jobs.Add("stale_pending_sweep", cfg.ExpiryAt, coord.SweepStalePending); err != nil {
			log.Fatalw("job registration failed", "err", err)
		}
	}

	jobs.Start()
	defer jobs.Stop()

	h := handlers.NewHandlers(coord, draftStore, cfg, log)
	middlewares := middleware.NewMessageAnalyzer()

	handlerChain := middlewares.AnalyzeMessageMiddleware(h.MainHandler)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	log.Infow("bot started", "admins", len(cfg.AdminUserIDs))
	b.Start(ctx)
	log.Info("bot stopped")
}
