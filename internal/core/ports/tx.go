package ports

import "context"

type txMarkerKey struct{}

// MarkTx returns a context flagged as running inside a transaction.
func MarkTx(ctx context.Context) context.Context {
	return context.WithValue(ctx, txMarkerKey{}, true)
}

// InTx reports whether ctx was produced by MarkTx.
func InTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarkerKey{}).(bool)
	return v
}
