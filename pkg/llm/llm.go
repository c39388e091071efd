// Package llm provides one-shot question answering over several AI
// providers. Each configured provider becomes its own ask_ai capability;
// failover between them is handled by the ask_ai fallback family.
package llm

import (
	"context"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
)

// json is used for JSON handling inside package llm
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultSystemPrompt is sent with every question unless the provider
// group overrides it.
const DefaultSystemPrompt = "You are a helpful desktop assistant. Answer concisely in plain text without markdown."

// Completer answers a single question with no conversation history.
type Completer interface {
	// Provider returns the provider type, e.g. "openai" or "gemini".
	Provider() string
	Model() string
	Complete(ctx context.Context, system, question string) (string, error)

	// IsTransientError reports whether err is worth retrying (e.g. 503,
	// rate limits).
	IsTransientError(err error) bool
}

// Provider is a named completer, as exposed in the capability catalog.
type Provider struct {
	Name   string
	System string
	Completer
}

// Ask sends question with the provider's system prompt and maps failures
// onto the capability failure taxonomy.
func (p Provider) Ask(ctx context.Context, question string) (string, error) {
	system := p.System
	if system == "" {
		system = DefaultSystemPrompt
	}
	answer, err := p.Complete(ctx, system, question)
	if err != nil {
		return "", ClassifyError(p.Name, p.Completer, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", api.Errorf(api.KindExternalUnavailable, "%s returned an empty answer", p.Name)
	}
	return answer, nil
}

// ClassifyError turns a provider error into an *api.Error. Every provider
// failure is ExternalUnavailable so the ask_ai family moves on to the next
// provider; only transient ones are retried.
func ClassifyError(name string, c Completer, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if c.IsTransientError(err) {
		return api.Wrap(api.KindExternalUnavailable, err, "%s is temporarily unavailable", name)
	}

	e := api.Wrap(api.KindExternalUnavailable, err, "%s request failed", name).AsPermanent()
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") {
		e = e.WithRemediation("Check the API key for " + name + " in config.json.")
	}
	return e
}
