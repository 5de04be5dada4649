package types

import (
	"context"
	"time"
)

// User is a platform account. TelegramID is the external identifier and is
// unique; ID is the surrogate key subscriptions reference.
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Chat is a paid destination users subscribe to. PriceAmount is a decimal
// string; the core stores and displays it, never computes with it.
// WalletAddress and Network may be empty, in which case the configured
// defaults apply.
type Chat struct {
	ID             int64     `json:"id"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	Title          string    `json:"title"`
	PriceAmount    string    `json:"price_amount"`
	PriceCurrency  string    `json:"price_currency"`
	WalletAddress  string    `json:"wallet_address,omitempty"`
	Network        string    `json:"network,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Subscription links one user to one chat for a time window. User and Chat
// are populated by the eager-loading queries and are nil otherwise.
type Subscription struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	ChatID         int64             `json:"chat_id"`
	StartDate      time.Time         `json:"start_date"`
	EndDate        time.Time         `json:"end_date"`
	Status         Status            `json:"status"`
	PaymentRef     string            `json:"payment_ref,omitempty"`
	PaymentDetails map[string]string `json:"payment_details,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	User *User `json:"-"`
	Chat *Chat `json:"-"`
}

// Identity is the resolved caller of an inbound update.
type Identity struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// ChatInput carries validated parameters for creating or updating a chat.
// The repository trusts these are pre-validated by the admin flow.
type ChatInput struct {
	TelegramChatID int64
	Title          string
	PriceAmount    string
	PriceCurrency  string
	WalletAddress  string
	Network        string
	IsActive       bool
}

// Repo is the set of atomic read/write primitives over the store. Every
// method runs on the transaction it was handed through DB.WithTx and never
// commits; commit/rollback belongs to the WithTx caller.
type Repo interface {
	GetOrCreateUser(ctx context.Context, telegramID int64) (*User, error)
	TouchUserProfile(ctx context.Context, userID int64, username, firstName, lastName string) error
	AllUsers(ctx context.Context, limit int) ([]*User, error)

	CreatePendingSubscription(ctx context.Context, userID, chatID int64, durationDays int, paymentRef string, details map[string]string) (*Subscription, error)
	SubscriptionByID(ctx context.Context, id int64) (*Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id int64, status Status) (*Subscription, error)
	UpdateSubscriptionStatusBatch(ctx context.Context, ids []int64, status Status) error
	EndingSoon(ctx context.Context, withinDays int) ([]*Subscription, error)
	Expired(ctx context.Context) ([]*Subscription, error)
	StalePending(ctx context.Context, olderThan time.Time) ([]*Subscription, error)
	ActiveForUser(ctx context.Context, telegramID int64) ([]*Subscription, error)

	UpsertChatByTelegramID(ctx context.Context, in ChatInput) (*Chat, error)
	ChatByID(ctx context.Context, id int64) (*Chat, error)
	ActiveChats(ctx context.Context) ([]*Chat, error)
	AllChats(ctx context.Context) ([]*Chat, error)
	SetChatActive(ctx context.Context, id int64, active bool) (*Chat, error)
	DeleteChat(ctx context.Context, id int64) error
}

// DB is the unit-of-work boundary: one transaction per call. fn returning nil
// commits; any error rolls back and comes back unchanged.
type DB interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repo) error) error
}

// Notifier delivers an outward message best-effort. Callers log the error and
// never let it fail the operation that triggered the send.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, text string) error
}

// DraftStore holds the in-progress admin add-chat conversation state.
type DraftStore interface {
	GetDraft(ctx context.Context, adminID int64) (*ChatDraft, error)
	SetDraft(ctx context.Context, adminID int64, draft *ChatDraft) error
	ClearDraft(ctx context.Context, adminID int64) error
}

// ChatDraft is the field-by-field state of the admin add-chat conversation.
type ChatDraft struct {
	Step           DraftStep `json:"step"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	Title          string    `json:"title"`
	PriceAmount    string    `json:"price_amount"`
	PriceCurrency  string    `json:"price_currency"`
	WalletAddress  string    `json:"wallet_address"`
	Network        string    `json:"network"`
}

type DraftStep string

const (
	DraftStepChatID   DraftStep = "chat_id"
	DraftStepTitle    DraftStep = "title"
	DraftStepAmount   DraftStep = "price_amount"
	DraftStepCurrency DraftStep = "price_currency"
	DraftStepWallet   DraftStep = "wallet_address"
	DraftStepNetwork  DraftStep = "network"
	DraftStepConfirm  DraftStep = "confirm"
)
