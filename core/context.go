package core

import "context"

type quietKey struct{}

// WithSuppressHeader returns a context under which run headers and batch
// summaries are not printed.
func WithSuppressHeader(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func shouldSuppressHeader(ctx context.Context) bool {
	quiet, _ := ctx.Value(quietKey{}).(bool)
	return quiet
}
