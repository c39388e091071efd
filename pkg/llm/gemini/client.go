package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient Google Gemini API client
type GeminiClient struct {
	client  *genai.Client
	model   string
	options map[string]any
}

// NewGeminiClient creates a Gemini client with a single model and API key
func NewGeminiClient(ctx context.Context, apiKey string, model string, options map[string]any) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		options: options,
	}, nil
}

func (g *GeminiClient) Provider() string {
	return "gemini"
}

func (g *GeminiClient) Model() string {
	return g.model
}

// config builds the generation config from the system prompt and the
// unified options.
func (g *GeminiClient) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if t, ok := g.options["temperature"].(float64); ok {
		temp := float32(t)
		cfg.Temperature = &temp
	}
	if maxTok, ok := g.options["max_tokens"].(float64); ok {
		cfg.MaxOutputTokens = int32(maxTok)
	}
	return cfg
}

func (g *GeminiClient) Complete(ctx context.Context, system, question string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(question, genai.RoleUser),
	}

	slog.DebugContext(ctx, "Gemini request", "model", g.model)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config(system))
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" && len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		return "", fmt.Errorf("no text in response (finish reason %s)", resp.Candidates[0].FinishReason)
	}
	if text == "" {
		return "", errors.New("no text in response")
	}
	return text, nil
}

// IsTransientError implements the llm.Completer interface
func (g *GeminiClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())

	// 1. Google API common 503 Service Unavailable / Overloaded
	if strings.Contains(errMsg, "503") || strings.Contains(errMsg, "overloaded") {
		return true
	}

	// 2. 429 Too Many Requests (Rate Limit)
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "resource exhausted") {
		return true
	}

	// 3. 500 Internal Error (Occasional Google Gemini crashes)
	if strings.Contains(errMsg, "500") || strings.Contains(errMsg, "internal error") {
		return true
	}

	return false
}
