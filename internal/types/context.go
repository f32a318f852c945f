package types

import "context"

type clientNameKey struct{}

// WithClientName tags ctx with the Innertube client issuing a request, for
// log fields further down the transport stack.
func WithClientName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, clientNameKey{}, name)
}

// ClientNameFromContext returns the client set by WithClientName.
func ClientNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(clientNameKey{}).(string)
	return name, ok && name != ""
}
