package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avbocharov/chatpass-bot/types"
	"github.com/jackc/pgx/v5"
)

// pgxRepo implements types.Repo on top of a single pgx transaction. It never
// commits; Postgres.WithTx owns the transaction boundary.
type pgxRepo struct {
	tx pgx.Tx
}

const userColumns = `u.id, u.telegram_id, COALESCE(u.username, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), u.is_active, u.created_at, u.updated_at`

const chatColumns = `c.id, c.telegram_chat_id, c.title, c.price_amount::text, c.price_currency, COALESCE(c.wallet_address, ''), COALESCE(c.network, ''), c.is_active, c.created_at, c.updated_at`

const subColumns = `s.id, s.user_id, s.chat_id, s.start_date, s.end_date, s.status, COALESCE(s.payment_ref, ''), s.payment_details, s.created_at, s.updated_at`

func (r *pgxRepo) GetOrCreateUser(ctx context.Context, telegramID int64) (*types.User, error) {
	// Conflict-safe first contact: two concurrent inserts for the same
	// telegram_id race on the unique constraint, and the loser falls through
	// to the select.
	_, err := r.tx.Exec(ctx, `
INSERT INTO users (telegram_id)
VALUES ($1)
ON CONFLICT (telegram_id) DO NOTHING
`, telegramID)
	if err != nil {
		return nil, err
	}

	row := r.tx.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users u
WHERE u.telegram_id = $1
`, telegramID)
	return scanUser(row)
}

func (r *pgxRepo) TouchUserProfile(ctx context.Context, userID int64, username, firstName, lastName string) error {
	_, err := r.tx.Exec(ctx, `
UPDATE users SET
  username = COALESCE(NULLIF($2, ''), username),
  first_name = COALESCE(NULLIF($3, ''), first_name),
  last_name = COALESCE(NULLIF($4, ''), last_name),
  updated_at = NOW()
WHERE id = $1
`, userID, strings.TrimSpace(username), strings.TrimSpace(firstName), strings.TrimSpace(lastName))
	return err
}

func (r *pgxRepo) AllUsers(ctx context.Context, limit int) ([]*types.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.tx.Query(ctx, `
SELECT `+userColumns+`
FROM users u
ORDER BY u.created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *pgxRepo) CreatePendingSubscription(ctx context.Context, userID, chatID int64, durationDays int, paymentRef string, details map[string]string) (*types.Subscription, error) {
	var detailsJSON []byte
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("encode payment details: %w", err)
		}
		detailsJSON = b
	}

	row := r.tx.QueryRow(ctx, `
INSERT INTO subscriptions (user_id, chat_id, start_date, end_date, status, payment_ref, payment_details)
VALUES ($1, $2, NOW(), NOW() + make_interval(days => $3), $4, NULLIF($5, ''), $6)
RETURNING `+bareSubColumns(), userID, chatID, durationDays, types.StatusPendingPayment, strings.TrimSpace(paymentRef), detailsJSON)

	sub, err := scanSubscription(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePaymentRef
		}
		return nil, err
	}
	return sub, nil
}

func (r *pgxRepo) SubscriptionByID(ctx context.Context, id int64) (*types.Subscription, error) {
	// Locks the subscription row so concurrent confirms on the same id
	// serialize at the store.
	row := r.tx.QueryRow(ctx, `
SELECT `+subColumns+`, `+userColumns+`, `+chatColumns+`
FROM subscriptions s
JOIN users u ON u.id = s.user_id
JOIN chats c ON c.id = s.chat_id
WHERE s.id = $1
FOR UPDATE OF s
`, id)
	sub, err := scanSubscriptionJoined(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

func (r *pgxRepo) UpdateSubscriptionStatus(ctx context.Context, id int64, status types.Status) (*types.Subscription, error) {
	row := r.tx.QueryRow(ctx, `
UPDATE subscriptions s SET status = $2, updated_at = NOW()
WHERE s.id = $1
RETURNING `+bareSubColumns(), id, status)
	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

func (r *pgxRepo) UpdateSubscriptionStatusBatch(ctx context.Context, ids []int64, status types.Status) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.tx.Exec(ctx, `
UPDATE subscriptions SET status = $2, updated_at = NOW()
WHERE id = ANY($1)
`, ids, status)
	return err
}

func (r *pgxRepo) EndingSoon(ctx context.Context, withinDays int) ([]*types.Subscription, error) {
	rows, err := r.tx.Query(ctx, `
SELECT `+subColumns+`, `+userColumns+`, `+chatColumns+`
FROM subscriptions s
JOIN users u ON u.id = s.user_id
JOIN chats c ON c.id = s.chat_id
WHERE s.status = $1
  AND s.end_date > NOW()
  AND s.end_date <= NOW() + make_interval(days => $2)
ORDER BY s.end_date
`, types.StatusActive, withinDays)
	if err != nil {
		return nil, err
	}
	return collectJoined(rows)
}

func (r *pgxRepo) Expired(ctx context.Context) ([]*types.Subscription, error) {
	rows, err := r.tx.Query(ctx, `
SELECT `+subColumns+`, `+userColumns+`, `+chatColumns+`
FROM subscriptions s
JOIN users u ON u.id = s.user_id
JOIN chats c ON c.id = s.chat_id
WHERE s.status = $1 AND s.end_date <= NOW()
ORDER BY s.end_date
FOR UPDATE OF s
`, types.StatusActive)
	if err != nil {
		return nil, err
	}
	return collectJoined(rows)
}

func (r *pgxRepo) StalePending(ctx context.Context, olderThan time.Time) ([]*types.Subscription, error) {
	rows, err := r.tx.Query(ctx, `
SELECT `+subColumns+`, `+userColumns+`, `+chatColumns+`
FROM subscriptions s
JOIN users u ON u.id = s.user_id
JOIN chats c ON c.id = s.chat_id
WHERE s.status = $1 AND s.created_at <= $2
ORDER BY s.created_at
FOR UPDATE OF s
`, types.StatusPendingPayment, olderThan)
	if err != nil {
		return nil, err
	}
	return collectJoined(rows)
}

func (r *pgxRepo) ActiveForUser(ctx context.Context, telegramID int64) ([]*types.Subscription, error) {
	rows, err := r.tx.Query(ctx, `
SELECT `+subColumns+`, `+userColumns+`, `+chatColumns+`
FROM subscriptions s
JOIN users u ON u.id = s.user_id
JOIN chats c ON c.id = s.chat_id
WHERE u.telegram_id = $1 AND s.status = $2 AND s.end_date > NOW()
ORDER BY s.end_date
`, telegramID, types.StatusActive)
	if err != nil {
		return nil, err
	}
	return collectJoined(rows)
}

func (r *pgxRepo) UpsertChatByTelegramID(ctx context.Context, in types.ChatInput) (*types.Chat, error) {
	row := r.tx.QueryRow(ctx, `
INSERT INTO chats (telegram_chat_id, title, price_amount, price_currency, wallet_address, network, is_active)
VALUES ($1, $2, $3::numeric, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
ON CONFLICT (telegram_chat_id) DO UPDATE SET
  title = EXCLUDED.title,
  price_amount = EXCLUDED.price_amount,
  price_currency = EXCLUDED.price_currency,
  wallet_address = EXCLUDED.wallet_address,
  network = EXCLUDED.network,
  is_active = EXCLUDED.is_active,
  updated_at = NOW()
RETURNING `+bareChatColumns(),
		in.TelegramChatID, strings.TrimSpace(in.Title), strings.TrimSpace(in.PriceAmount),
		strings.TrimSpace(in.PriceCurrency), strings.TrimSpace(in.WalletAddress),
		strings.TrimSpace(in.Network), in.IsActive)
	return scanChat(row)
}

func (r *pgxRepo) ChatByID(ctx context.Context, id int64) (*types.Chat, error) {
	row := r.tx.QueryRow(ctx, `
SELECT `+chatColumns+`
FROM chats c
WHERE c.id = $1
`, id)
	chat, err := scanChat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return chat, err
}

func (r *pgxRepo) ActiveChats(ctx context.Context) ([]*types.Chat, error) {
	return r.listChats(ctx, true)
}

func (r *pgxRepo) AllChats(ctx context.Context) ([]*types.Chat, error) {
	return r.listChats(ctx, false)
}

func (r *pgxRepo) listChats(ctx context.Context, onlyActive bool) ([]*types.Chat, error) {
	rows, err := r.tx.Query(ctx, `
SELECT `+chatColumns+`
FROM chats c
WHERE ($1 = false OR c.is_active)
ORDER BY c.title
`, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*types.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (r *pgxRepo) SetChatActive(ctx context.Context, id int64, active bool) (*types.Chat, error) {
	row := r.tx.QueryRow(ctx, `
UPDATE chats c SET is_active = $2, updated_at = NOW()
WHERE c.id = $1
RETURNING `+bareChatColumns(), id, active)
	chat, err := scanChat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return chat, err
}

func (r *pgxRepo) DeleteChat(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrChatHasSubscriptions
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// bareSubColumns strips the table alias for RETURNING clauses.
func bareSubColumns() string {
	return strings.ReplaceAll(subColumns, "s.", "")
}

func bareChatColumns() string {
	return strings.ReplaceAll(chatColumns, "c.", "")
}

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanChat(row pgx.Row) (*types.Chat, error) {
	var c types.Chat
	err := row.Scan(&c.ID, &c.TelegramChatID, &c.Title, &c.PriceAmount, &c.PriceCurrency, &c.WalletAddress, &c.Network, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var (
		s       types.Subscription
		details []byte
	)
	err := row.Scan(&s.ID, &s.UserID, &s.ChatID, &s.StartDate, &s.EndDate, &s.Status, &s.PaymentRef, &details, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeDetails(details, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSubscriptionJoined(row pgx.Row) (*types.Subscription, error) {
	var (
		s       types.Subscription
		u       types.User
		c       types.Chat
		details []byte
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.ChatID, &s.StartDate, &s.EndDate, &s.Status, &s.PaymentRef, &details, &s.CreatedAt, &s.UpdatedAt,
		&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
		&c.ID, &c.TelegramChatID, &c.Title, &c.PriceAmount, &c.PriceCurrency, &c.WalletAddress, &c.Network, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeDetails(details, &s); err != nil {
		return nil, err
	}
	s.User = &u
	s.Chat = &c
	return &s, nil
}

func collectJoined(rows pgx.Rows) ([]*types.Subscription, error) {
	defer rows.Close()

	var subs []*types.Subscription
	for rows.Next() {
		sub, err := scanSubscriptionJoined(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func decodeDetails(raw []byte, s *types.Subscription) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &s.PaymentDetails); err != nil {
		return fmt.Errorf("decode payment details for subscription %d: %w", s.ID, err)
	}
	return nil
}
