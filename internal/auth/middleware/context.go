package auth

import (
	"context"

	"github.com/mind-engage/skillway/internal/content"
)

type ctxKey string

const (
	ctxKeySub    ctxKey = "sub"
	ctxKeyEmail  ctxKey = "email"
	ctxKeyCaller ctxKey = "caller"
)

func WithSubject(ctx context.Context, sub, email string) context.Context {
	ctx = context.WithValue(ctx, ctxKeySub, sub)
	return context.WithValue(ctx, ctxKeyEmail, email)
}

func SubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySub); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func EmailFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyEmail); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func WithCaller(ctx context.Context, c content.Caller) context.Context {
	return context.WithValue(ctx, ctxKeyCaller, c)
}

// CallerFromContext returns the identity attached by AttachCaller.
func CallerFromContext(ctx context.Context) (content.Caller, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(content.Caller)
	return c, ok
}
