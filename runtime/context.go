package runtime

import "context"

type runtimeKey struct{}

// FromContext returns the runtime executing the current guest call, or
// nil outside a call. Guest code uses it to Throw or to invoke other
// functions.
func FromContext(ctx context.Context) *Runtime {
	r, _ := ctx.Value(runtimeKey{}).(*Runtime)
	return r
}

func withRuntime(ctx context.Context, r *Runtime) context.Context {
	if FromContext(ctx) == r {
		return ctx
	}
	return context.WithValue(ctx, runtimeKey{}, r)
}
