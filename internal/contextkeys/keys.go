package contextkeys

import (
	"context"

	"github.com/avbocharov/chatpass-bot/types"
)

type identityKey struct{}
type updateKindKey struct{}
type callbackDataKey struct{}

type UpdateKind string

const (
	UpdateKindCommand  UpdateKind = "command"
	UpdateKindText     UpdateKind = "text"
	UpdateKindCallback UpdateKind = "callback"
	UpdateKindUnknown  UpdateKind = "unknown"
)

func WithIdentity(ctx context.Context, id types.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (types.Identity, bool) {
	v := ctx.Value(identityKey{})
	if v == nil {
		return types.Identity{}, false
	}
	return v.(types.Identity), true
}

func WithUpdateKind(ctx context.Context, kind UpdateKind) context.Context {
	return context.WithValue(ctx, updateKindKey{}, kind)
}

func GetUpdateKind(ctx context.Context) (UpdateKind, bool) {
	v := ctx.Value(updateKindKey{})
	if v == nil {
		return UpdateKindUnknown, false
	}
	return v.(UpdateKind), true
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v := ctx.Value(callbackDataKey{})
	if v == nil {
		return "", false
	}
	return v.(string), true
}
