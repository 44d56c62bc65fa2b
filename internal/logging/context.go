package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	chatUserIDKey
)

// WithCorrelationID stamps the context with the request's correlation ID.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// GetCorrelationID returns the correlation ID carried by the context, or ""
// when the context was never stamped.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// EnsureCorrelationID returns a context guaranteed to carry a correlation ID,
// generating a fresh one when absent. Update handlers call this once at the
// top so every log line of one update shares an ID.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if GetCorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, GenerateCorrelationID())
}

// GenerateCorrelationID returns a new random correlation ID.
func GenerateCorrelationID() string {
	return uuid.New().String()
}

// WithChatUser stamps the context with the chat user an update belongs to.
// Context-aware log methods pick it up as the chat_user_id entry field.
func WithChatUser(ctx context.Context, chatUserID int64) context.Context {
	return context.WithValue(ctx, chatUserIDKey, chatUserID)
}

// ChatUser returns the chat user carried by the context, if any.
func ChatUser(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(chatUserIDKey).(int64)
	return id, ok
}
