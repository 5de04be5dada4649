package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the explicit configuration surface of the bot. It is constructed
// once in main and passed to the coordinator and jobs; nothing reads the
// environment after Load returns.
type Config struct {
	BotToken string

	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminUserIDs []int64

	SubscriptionDays  int
	ReminderDaysAhead int
	// PendingTTLDays bounds how long a pending_payment subscription may sit
	// unconfirmed before the sweep cancels it. 0 disables the sweep.
	PendingTTLDays int

	DefaultWalletAddress string
	DefaultNetwork       string

	// Job times, "HH:MM" in UTC.
	RemindersAt string
	ExpiryAt    string

	LogLevel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:             strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		PostgresDSN:          strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:            envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		DefaultWalletAddress: strings.TrimSpace(os.Getenv("DEFAULT_WALLET_ADDRESS")),
		DefaultNetwork:       strings.TrimSpace(os.Getenv("DEFAULT_NETWORK")),
		RemindersAt:          envOr("REMINDERS_AT", "09:00"),
		ExpiryAt:             envOr("EXPIRY_SWEEP_AT", "01:00"),
		LogLevel:             envOr("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SubscriptionDays, err = envInt("SUBSCRIPTION_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.SubscriptionDays <= 0 {
		return nil, fmt.Errorf("SUBSCRIPTION_DAYS must be positive, got %d", cfg.SubscriptionDays)
	}
	if cfg.ReminderDaysAhead, err = envInt("REMINDER_DAYS_AHEAD", 3); err != nil {
		return nil, err
	}
	if cfg.ReminderDaysAhead < 0 {
		return nil, fmt.Errorf("REMINDER_DAYS_AHEAD must not be negative, got %d", cfg.ReminderDaysAhead)
	}
	if cfg.PendingTTLDays, err = envInt("PENDING_TTL_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.PendingTTLDays < 0 {
		return nil, fmt.Errorf("PENDING_TTL_DAYS must not be negative, got %d", cfg.PendingTTLDays)
	}

	if cfg.AdminUserIDs, err = parseAdminIDs(os.Getenv("ADMIN_USER_IDS")); err != nil {
		return nil, err
	}

	for _, at := range []string{cfg.RemindersAt, cfg.ExpiryAt} {
		if _, err := time.Parse("15:04", at); err != nil {
			return nil, fmt.Errorf("invalid job time %q: expected HH:MM", at)
		}
	}

	return cfg, nil
}

// IsAdmin reports whether the telegram user id is on the operator list.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminUserIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func parseAdminIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_USER_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}
