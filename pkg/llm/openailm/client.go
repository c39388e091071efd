package openailm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// API selects which OpenAI endpoint is used. OpenAI-compatible vendors
// such as DeepSeek only implement chat completions.
type API string

const (
	APIResponses API = "responses"
	APIChat      API = "chat"
)

// Client is a wrapper around the official OpenAI Go SDK
type Client struct {
	client   *openai.Client
	provider string
	model    string
	api      API
	options  map[string]any
}

// NewClient creates a new OpenAI client. Without an explicit "api" option,
// a custom base URL selects chat completions.
func NewClient(provider string, apiKey string, model string, baseURL string, options map[string]any) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("missing API key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	endpoint := APIResponses
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		endpoint = APIChat
	}
	if s, ok := options["api"].(string); ok && s != "" {
		endpoint = API(s)
	}

	client := openai.NewClient(opts...)

	return &Client{
		client:   &client,
		provider: provider,
		model:    model,
		api:      endpoint,
		options:  options,
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	// Transient: network-level issues
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") {
		return true
	}

	// Transient: server-side temporary failures and rate limits
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "500 internal") ||
		strings.Contains(msg, "502 bad gateway") ||
		strings.Contains(msg, "503 service unavailable") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	// Everything else (400 Bad Request, 401 Unauthorized, etc.) is non-transient
	return false
}

func (c *Client) Complete(ctx context.Context, system, question string) (string, error) {
	if c.api == APIChat {
		return c.completeChat(ctx, system, question)
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(question),
		},
	}
	if system != "" {
		params.Instructions = openai.String(system)
	}

	// Handle unified "thinking_effort" option
	if effortStr, ok := c.options["thinking_effort"].(string); ok && effortStr != "" && effortStr != "off" {
		var effort shared.ReasoningEffort
		switch effortStr {
		case "low":
			effort = shared.ReasoningEffortLow
		case "high":
			effort = shared.ReasoningEffortHigh
		default:
			effort = shared.ReasoningEffortMedium
		}
		params.Reasoning = shared.ReasoningParam{
			Effort: effort,
		}
	}

	resp, err := c.client.Responses.New(ctx, params, c.requestOptions("max_output_tokens")...)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

func (c *Client) completeChat(ctx context.Context, system, question string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(question))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}, c.requestOptions("max_tokens")...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// requestOptions maps the unified sampling options onto request fields.
func (c *Client) requestOptions(maxTokensField string) []option.RequestOption {
	var opts []option.RequestOption
	if t, ok := c.options["temperature"].(float64); ok {
		opts = append(opts, option.WithJSONSet("temperature", t))
	}
	if p, ok := c.options["top_p"].(float64); ok {
		opts = append(opts, option.WithJSONSet("top_p", p))
	}
	if maxTok, ok := c.options["max_tokens"].(float64); ok {
		opts = append(opts, option.WithJSONSet(maxTokensField, int(maxTok)))
	}
	return opts
}
