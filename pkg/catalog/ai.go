package catalog

import (
	"context"

	"friday/pkg/api"
	"friday/pkg/llm"
)

func askAIName(p llm.Provider) string {
	return "ask_ai_" + p.Name
}

// aiCapabilities exposes each provider as its own capability. All of them
// share one schema so they can form the ask_ai family.
func aiCapabilities(providers []llm.Provider) []api.Capability {
	caps := make([]api.Capability, 0, len(providers))
	for _, p := range providers {
		caps = append(caps, api.Capability{
			Name:        askAIName(p),
			Description: "Ask " + p.Provider() + " (" + p.Model() + ") a question and return its answer.",
			Params:      []api.Param{stringParam("question", "The question to ask")},
			Effect:      api.EffectNetwork,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				answer, err := p.Ask(ctx, args.String("question"))
				if err != nil {
					return api.Result{}, err
				}
				return api.Result{Text: answer}, nil
			},
		})
	}
	return caps
}
