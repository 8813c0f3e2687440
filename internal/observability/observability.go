// Package observability carries loggers through context.Context so that protocol
// state functions can emit structured records without holding a logger field.
package observability

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	observabilityKey = contextKey("OBSERVABILITY")
)

// Observability holds Loggers & Metrics.
// nil *Observability are safe to use.
type Observability struct {
	Logger *slog.Logger
}

// Log returns inner Logger or slog.Default().
func (self *Observability) Log() *slog.Logger {
	if (nil == self) || (nil == self.Logger) {
		return slog.Default()
	}

	return self.Logger
}

// GetObservability returns ctx Observability.
func GetObservability(ctx context.Context) *Observability {
	var rv *Observability
	rv, _ = ctx.Value(observabilityKey).(*Observability)
	return rv
}

// SetObservability returns new Context containing obs.
func SetObservability(ctx context.Context, obs *Observability) context.Context {
	return context.WithValue(ctx, observabilityKey, obs)
}

// WithRole returns a Context whose Observability Logger tags all records with
// the protocol role ("authority", "registrant", "verifier") executing under ctx.
func WithRole(ctx context.Context, role string) context.Context {
	log := GetObservability(ctx).Log().With("role", role)
	return SetObservability(ctx, &Observability{Logger: log})
}
