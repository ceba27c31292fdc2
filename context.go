package khata

import "context"

type requestIDContextKey struct{}

// WithRequestID pins the X-Request-ID sent with requests made under ctx. Without it every
// request gets a fresh uuid.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
