// Package executor runs capabilities under a uniform contract: validated
// arguments, bounded time, classified failures.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"friday/pkg/api"
	"friday/pkg/config"
	"friday/pkg/monitor"
)

// Lookup resolves capabilities by name. The registry satisfies it.
type Lookup interface {
	Get(name string) (api.Capability, bool)
}

// Policy holds the tunables the executor reads on every invocation.
type Policy struct {
	Timeouts   map[api.EffectClass]time.Duration
	RetryDelay time.Duration
}

// PolicyFromConfig derives a Policy from system.json settings.
func PolicyFromConfig(sys *config.SystemConfig) Policy {
	p := Policy{
		Timeouts:   make(map[api.EffectClass]time.Duration),
		RetryDelay: sys.RetryDelay(),
	}
	for _, effect := range []api.EffectClass{api.EffectRead, api.EffectLocalMutation, api.EffectOSAutomation, api.EffectNetwork} {
		p.Timeouts[effect] = sys.Timeout(effect)
	}
	return p
}

// Executor is the failure boundary of the system. Execute never panics and
// never returns an error: every problem becomes a Failure outcome.
type Executor struct {
	lookup  Lookup
	monitor monitor.Monitor

	// automation serializes OS_AUTOMATION handlers system-wide.
	automation *semaphore.Weighted

	mu     sync.RWMutex
	policy Policy
}

// Option customizes an Executor.
type Option func(*Executor)

// WithMonitor reports every invocation to m.
func WithMonitor(m monitor.Monitor) Option {
	return func(e *Executor) { e.monitor = m }
}

// New creates an executor.
func New(lookup Lookup, policy Policy, opts ...Option) *Executor {
	e := &Executor{
		lookup:     lookup,
		monitor:    monitor.Nop{},
		automation: semaphore.NewWeighted(1),
		policy:     policy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPolicy replaces the policy for subsequent invocations.
func (e *Executor) SetPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

func (e *Executor) currentPolicy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// Execute validates args, runs the named capability and classifies the
// result. A zero timeout selects the capability or effect class default.
func (e *Executor) Execute(ctx context.Context, name string, args api.Args, timeout time.Duration) api.Outcome {
	ctx, id := monitor.WithInvocationID(ctx)
	start := time.Now()

	var out api.Outcome
	var effect api.EffectClass

	c, ok := e.lookup.Get(name)
	switch {
	case !ok:
		out = api.Fail(name, api.KindNotFound, "unknown capability %q", name)
	default:
		effect = c.Effect
		normalized, err := Validate(c, args)
		if err != nil {
			out = api.FailWith(name, api.Classify(err))
			break
		}
		out = e.run(ctx, c, normalized, timeout)
	}

	out.Capability = name
	out.Duration = time.Since(start)
	e.report(ctx, id, effect, out)
	return out
}

func (e *Executor) run(ctx context.Context, c api.Capability, args api.Args, timeout time.Duration) api.Outcome {
	policy := e.currentPolicy()
	if timeout <= 0 {
		timeout = c.Timeout
	}
	if timeout <= 0 {
		timeout = policy.Timeouts[c.Effect]
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	out := e.attempt(ctx, c, args, timeout)
	if out.OK || c.Effect != api.EffectNetwork || !out.Failure.Retryable {
		return out
	}

	slog.WarnContext(ctx, "Retrying network capability once", "capability", c.Name, "kind", out.Failure.Kind, "error", out.Failure.Message)
	select {
	case <-ctx.Done():
		return out
	case <-time.After(policy.RetryDelay):
	}

	retried := e.attempt(ctx, c, args, timeout)
	retried.Attempts = 2
	return retried
}

type handlerResult struct {
	res api.Result
	err error
}

// attempt runs the handler once. For OS_AUTOMATION the automation lock is
// held until the handler returns, even when the caller has already been
// answered with a timeout.
func (e *Executor) attempt(ctx context.Context, c api.Capability, args api.Args, timeout time.Duration) api.Outcome {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked := c.Effect == api.EffectOSAutomation
	if locked {
		if err := e.automation.Acquire(callCtx, 1); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return api.Fail(c.Name, api.KindTimeout, "timed out after %s waiting for another automation to finish", timeout)
			}
			return api.FailWith(c.Name, api.Classify(err))
		}
	}

	done := make(chan handlerResult, 1)
	go func() {
		if locked {
			defer e.automation.Release(1)
		}
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(callCtx, "Capability handler panicked",
					"capability", c.Name, "panic", r, "stack", string(debug.Stack()))
				done <- handlerResult{err: fmt.Errorf("internal error in %s: %v", c.Name, r)}
			}
		}()
		res, err := c.Handler(callCtx, args)
		done <- handlerResult{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return api.Succeed(c.Name, r.res)
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return timedOut(c.Name, timeout)
		}
		return api.FailWith(c.Name, api.Classify(r.err))
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return api.FailWith(c.Name, api.Classify(ctx.Err()))
		}
		slog.WarnContext(ctx, "Capability timed out, leaving it to finish in the background", "capability", c.Name, "timeout", timeout)
		return timedOut(c.Name, timeout)
	}
}

func timedOut(name string, timeout time.Duration) api.Outcome {
	return api.Fail(name, api.KindTimeout, "%s did not finish within %s", name, timeout)
}

func (e *Executor) report(ctx context.Context, id string, effect api.EffectClass, out api.Outcome) {
	ev := monitor.InvocationEvent{
		ID:         id,
		Timestamp:  time.Now(),
		Capability: out.Capability,
		Effect:     effect,
		OK:         out.OK,
		Attempts:   out.Attempts,
		Duration:   out.Duration,
	}
	if out.OK {
		slog.InfoContext(ctx, "Capability succeeded", "capability", out.Capability, "attempts", out.Attempts, "duration", out.Duration)
	} else {
		ev.Kind = out.Failure.Kind
		ev.Message = out.Failure.Message
		slog.WarnContext(ctx, "Capability failed", "capability", out.Capability, "kind", out.Failure.Kind, "error", out.Failure.Message, "attempts", out.Attempts)
	}
	e.monitor.OnInvocation(ev)
}
