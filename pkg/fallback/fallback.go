// Package fallback runs an ordered family of interchangeable capabilities
// and returns the first success.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"friday/pkg/api"
)

// Lookup resolves capabilities by name. The registry satisfies it.
type Lookup interface {
	Get(name string) (api.Capability, bool)
}

// Executor runs a single capability. The action executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, name string, args api.Args, timeout time.Duration) api.Outcome
}

// Chain is an ordered list of providers that share one input schema.
type Chain struct {
	Family      string
	Description string
	Providers   []string
	// Params is the schema every provider declares.
	Params []api.Param
	Effect api.EffectClass
}

// NewChain builds a chain and verifies that every provider exists and
// declares the same schema as the first one.
func NewChain(lookup Lookup, family, description string, providers ...string) (Chain, error) {
	if family == "" {
		return Chain{}, fmt.Errorf("fallback family name is empty")
	}
	if len(providers) == 0 {
		return Chain{}, fmt.Errorf("fallback family %q has no providers", family)
	}

	var first api.Capability
	for i, name := range providers {
		c, ok := lookup.Get(name)
		if !ok {
			return Chain{}, fmt.Errorf("fallback family %q: provider %q is not registered", family, name)
		}
		if i == 0 {
			first = c
			continue
		}
		if !api.SameSchema(first.Params, c.Params) {
			return Chain{}, fmt.Errorf("fallback family %q: provider %q schema differs from %q", family, name, first.Name)
		}
	}

	return Chain{
		Family:      family,
		Description: description,
		Providers:   append([]string(nil), providers...),
		Params:      api.CloneParams(first.Params),
		Effect:      first.Effect,
	}, nil
}

// Descriptor describes the family for discovery.
func (c Chain) Descriptor() api.Descriptor {
	return api.Descriptor{
		Name:        c.Family,
		Description: c.Description,
		Params:      api.CloneParams(c.Params),
		Effect:      c.Effect,
		Providers:   slices.Clone(c.Providers),
	}
}

// Resolver tries the providers of a chain in order.
type Resolver struct {
	exec Executor
}

func NewResolver(exec Executor) *Resolver {
	return &Resolver{exec: exec}
}

// Resolve returns the first provider success. It moves on only when a
// provider is unavailable or timed out; any other failure is returned as is.
// When every provider fails the result is ExternalUnavailable listing each
// provider's reason.
func (r *Resolver) Resolve(ctx context.Context, chain Chain, args api.Args) api.Outcome {
	start := time.Now()
	var reasons []string
	attempts := 0

	for i, name := range chain.Providers {
		if i > 0 {
			slog.Info("Previous provider failed, trying fallback", "family", chain.Family, "provider", name, "position", i+1)
		}

		out := r.exec.Execute(ctx, name, args.Clone(), 0)
		attempts += out.Attempts
		if out.OK {
			out.Attempts = attempts
			out.Duration = time.Since(start)
			return out
		}

		switch out.Kind() {
		case api.KindExternalUnavailable, api.KindTimeout:
			slog.Warn("Provider unavailable", "family", chain.Family, "provider", name, "kind", out.Kind(), "error", out.Failure.Message)
			reasons = append(reasons, fmt.Sprintf("%s: %s", name, out.Failure.Message))
		default:
			out.Attempts = attempts
			out.Duration = time.Since(start)
			return out
		}

		if ctx.Err() != nil {
			reasons = append(reasons, fmt.Sprintf("stopped: %v", ctx.Err()))
			break
		}
	}

	out := api.Fail(chain.Family, api.KindExternalUnavailable, "all %s providers failed: %s", chain.Family, strings.Join(reasons, "; "))
	out.Attempts = attempts
	out.Duration = time.Since(start)
	return out
}
