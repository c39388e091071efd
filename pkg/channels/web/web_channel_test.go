package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/api"
	"friday/pkg/executor"
	"friday/pkg/handler"
	"friday/pkg/registry"
	"friday/pkg/supervisor"
)

func newCore(t *testing.T) *handler.Dispatcher {
	t.Helper()
	reg := registry.New()
	reg.Register(api.Capability{
		Name:        "say",
		Description: "Repeat text",
		Params:      []api.Param{{Name: "text", Type: api.ParamString, Required: true}},
		Effect:      api.EffectRead,
		Handler: func(_ context.Context, args api.Args) (api.Result, error) {
			return api.Textf("%s", args.String("text")), nil
		},
	})
	reg.Seal()
	exec := executor.New(reg, executor.Policy{Timeouts: map[api.EffectClass]time.Duration{}, RetryDelay: time.Millisecond})
	return handler.New(reg, exec)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, frame string) Reply {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var r Reply
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func TestWebSocketFrames(t *testing.T) {
	c := NewWebChannel(WebConfig{}, nil)
	srv := httptest.NewServer(c.Handler(newCore(t)))
	t.Cleanup(srv.Close)
	conn := dial(t, srv)

	r := roundTrip(t, conn, `{"type":"invoke","id":"1","capability":"say","arguments":{"text":"hi"}}`)
	assert.Equal(t, "result", r.Type)
	assert.Equal(t, "1", r.ID)
	assert.Equal(t, "hi", r.Text)
	require.NotNil(t, r.Outcome)
	assert.True(t, r.Outcome.OK)

	r = roundTrip(t, conn, `{"type":"invoke","capability":"fly"}`)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, `Error (NotFound): unknown capability "fly"`, r.Text)

	r = roundTrip(t, conn, `{"type":"list"}`)
	assert.Equal(t, "catalog", r.Type)
	require.Len(t, r.Catalog, 1)
	assert.Equal(t, "say", r.Catalog[0].Name)

	r = roundTrip(t, conn, `{"type":"workflow","name":"greet","steps":[{"capability":"say","arguments":{"text":"a"}}]}`)
	assert.Equal(t, "report", r.Type)
	assert.Equal(t, "Workflow \"greet\": 1/1 steps succeeded\n1. say: OK - a", r.Text)

	r = roundTrip(t, conn, `/say hello there`)
	assert.Equal(t, "hello there", r.Text)

	r = roundTrip(t, conn, `hello`)
	assert.Equal(t, "error", r.Type)

	r = roundTrip(t, conn, `{"type":"dance"}`)
	assert.Equal(t, "error", r.Type)
	assert.Contains(t, r.Text, `"dance"`)
}

func TestWebSocket_OriginCheck(t *testing.T) {
	c := NewWebChannel(WebConfig{AllowedOrigins: []string{"http://localhost:5173/"}}, nil)
	srv := httptest.NewServer(c.Handler(newCore(t)))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	connect := func(origin string) (*http.Response, error) {
		conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
		if err == nil {
			conn.Close()
		}
		return resp, err
	}

	resp, err := connect("https://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = connect(srv.URL)
	assert.NoError(t, err)

	_, err = connect("http://LOCALHOST:5173")
	assert.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/agent/stop", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	stopResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stopResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, stopResp.StatusCode)
}

func TestAgentEndpoints_NoSupervisor(t *testing.T) {
	c := NewWebChannel(WebConfig{}, nil)
	srv := httptest.NewServer(c.Handler(newCore(t)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/agent/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body agentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
}

type fakeAgent struct {
	running bool
}

func (f *fakeAgent) Start() error {
	if f.running {
		return supervisor.ErrRunning
	}
	f.running = true
	return nil
}

func (f *fakeAgent) Stop(context.Context) error {
	if !f.running {
		return supervisor.ErrNotRunning
	}
	f.running = false
	return nil
}

func (f *fakeAgent) Status() supervisor.Status {
	return supervisor.Status{Running: f.running, PID: 99}
}

func TestAgentEndpoints(t *testing.T) {
	c := NewWebChannel(WebConfig{}, &fakeAgent{})
	srv := httptest.NewServer(c.Handler(newCore(t)))
	t.Cleanup(srv.Close)

	post := func(path string) (int, agentResponse) {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body agentResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, body := post("/agent/start")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body.Status)
	require.NotNil(t, body.Agent)
	assert.True(t, body.Agent.Running)

	code, body = post("/agent/start")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", body.Status)

	code, _ = post("/agent/stop")
	assert.Equal(t, http.StatusOK, code)
	code, _ = post("/agent/stop")
	assert.Equal(t, http.StatusConflict, code)

	resp, err := http.Get(srv.URL + "/agent/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	c := NewWebChannel(WebConfig{Host: "127.0.0.1", Port: 0}, nil)
	require.NoError(t, c.Start(newCore(t)))
	require.NotNil(t, c.Addr())

	resp, err := http.Get("http://" + c.Addr().String() + "/agent/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, c.Stop())
}
