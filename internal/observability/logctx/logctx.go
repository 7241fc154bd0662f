// Package logctx carries a request-scoped logger on the context so fields
// attached at the boundary (trace ids, actor) follow the call chain.
package logctx

import (
	"context"

	"github.com/pharmaracks/stockledger/internal/observability"
)

type loggerKey struct{}

// With stores the logger on the context.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromOr returns the context logger when present, otherwise fallback.
func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(observability.Logger); ok && logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return observability.NopLogger()
}
