package openailm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/llm"
)

func TestComplete_Chat(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":0,"model":"deepseek-chat",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Paris"}}]}`)
	}))
	defer srv.Close()

	c, err := NewClient("deepseek", "key", "deepseek-chat", srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, APIChat, c.api)

	answer, err := c.Complete(context.Background(), "Be brief.", "Capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", answer)
	assert.Contains(t, body, `"Capital of France?"`)
	assert.Contains(t, body, `"system"`)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("openai", "", "gpt-4o-mini", "", nil)
	assert.Error(t, err)

	c, err := NewClient("openai", "key", "gpt-4o-mini", "", nil)
	require.NoError(t, err)
	assert.Equal(t, APIResponses, c.api)

	c, err = NewClient("openai", "key", "gpt-4o-mini", "http://localhost:1", map[string]any{"api": "responses"})
	require.NoError(t, err)
	assert.Equal(t, APIResponses, c.api)
}

func TestFactory(t *testing.T) {
	f, ok := llm.GetProviderFactory("deepseek")
	require.True(t, ok)

	clients, err := f.Create(llm.ProviderGroupConfig{Type: "deepseek", APIKeys: []string{"k"}, Models: []string{"deepseek-chat"}}, nil)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "deepseek", clients[0].Provider())

	clients, err = f.Create(llm.ProviderGroupConfig{Type: "deepseek", Models: []string{"deepseek-chat"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestIsTransientError(t *testing.T) {
	c := &Client{}
	assert.True(t, c.IsTransientError(errors.New("POST: 503 Service Unavailable")))
	assert.True(t, c.IsTransientError(errors.New("429 Too Many Requests")))
	assert.False(t, c.IsTransientError(errors.New("401 Unauthorized")))
}
