package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"friday/pkg/api"
)

// InvocationEvent describes one finished capability invocation.
type InvocationEvent struct {
	ID         string
	Timestamp  time.Time
	Capability string
	Effect     api.EffectClass
	OK         bool
	Kind       api.FailureKind // Empty on success
	Message    string
	Attempts   int
	Duration   time.Duration
}

// Monitor receives invocation events. Implementations must be safe for
// concurrent use.
type Monitor interface {
	Start() error
	Stop() error
	OnInvocation(ev InvocationEvent)
}

type invocationKey struct{}

// WithInvocationID tags ctx with a fresh invocation ID unless it already
// carries one. Log lines written with the returned context include it.
func WithInvocationID(ctx context.Context) (context.Context, string) {
	if id := InvocationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()[:8]
	return context.WithValue(ctx, invocationKey{}, id), id
}

// InvocationID returns the ID stored by WithInvocationID, or "".
func InvocationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(invocationKey{}).(string)
	return id
}

// Nop discards every event.
type Nop struct{}

func (Nop) Start() error                 { return nil }
func (Nop) Stop() error                  { return nil }
func (Nop) OnInvocation(InvocationEvent) {}
