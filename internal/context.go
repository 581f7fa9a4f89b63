package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextThreadKey ctxKey = "threadID"

func ThreadIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if threadID, ok := ctx.Value(ContextThreadKey).(string); ok {
		return threadID
	}
	return ""
}

func ContextWithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, ContextThreadKey, threadID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
