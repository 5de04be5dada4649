package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound signals an absent user, chat or subscription. Callers have
	// a recovery path (re-select, re-open the panel), so this is a value, not
	// a panic-worthy failure.
	ErrNotFound = errors.New("record not found")

	// ErrNotOwner signals that the caller tried to act on a subscription that
	// belongs to a different user. Deliberately distinct from ErrNotFound so
	// handlers can answer "not yours" without leaking more.
	ErrNotOwner = errors.New("subscription belongs to another user")

	// ErrChatHasSubscriptions blocks deleting a chat still referenced by
	// subscription rows. The admin flow offers deactivation instead.
	ErrChatHasSubscriptions = errors.New("chat has subscriptions referencing it")

	// ErrDuplicatePaymentRef signals a payment reference collision on insert.
	ErrDuplicatePaymentRef = errors.New("payment reference already exists")

	// ErrInvalidTransition signals a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid subscription status transition")
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
