package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestViolationDetection(t *testing.T) {
	fk := &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "subscriptions_chat_id_fkey"}
	uq := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uq_subscriptions_payment_ref"}

	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isForeignKeyViolation(uq))
	assert.True(t, isUniqueViolation(uq))
	assert.False(t, isUniqueViolation(fk))

	// Wrapped pg errors still match.
	assert.True(t, isForeignKeyViolation(fmt.Errorf("delete chat: %w", fk)))

	assert.False(t, isForeignKeyViolation(errors.New("plain")))
	assert.False(t, isUniqueViolation(nil))
}
