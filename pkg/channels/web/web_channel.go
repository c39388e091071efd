// Package web exposes the capability catalog over a websocket, plus HTTP
// endpoints for the agent supervisor.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
	"friday/pkg/handler"
	"friday/pkg/supervisor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 9453
)

type WebConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"` // Default: 9453
	// AllowedOrigins lists extra browser origins, e.g. "http://localhost:5173",
	// that may connect besides the server's own host.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// AgentControl is the supervisor surface the /agent endpoints use.
type AgentControl interface {
	Start() error
	Stop(ctx context.Context) error
	Status() supervisor.Status
}

// Frame is one websocket request.
type Frame struct {
	Type string `json:"type"` // invoke, list, workflow, command
	ID   string `json:"id,omitempty"`

	Capability string   `json:"capability,omitempty"`
	Arguments  api.Args `json:"arguments,omitempty"`

	Name  string             `json:"name,omitempty"`
	Steps []api.WorkflowStep `json:"steps,omitempty"`

	Text string `json:"text,omitempty"`
}

// Reply is one websocket response. ID echoes the request.
type Reply struct {
	Type    string           `json:"type"` // result, catalog, report, error
	ID      string           `json:"id"`
	Text    string           `json:"text,omitempty"`
	Outcome *api.Outcome     `json:"outcome,omitempty"`
	Catalog []api.Descriptor `json:"catalog,omitempty"`
}

type WebChannel struct {
	config WebConfig
	agent  AgentControl
	server   *http.Server
	addr     net.Addr
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWebChannel creates the channel. agent may be nil, in which case the
// /agent endpoints answer 503.
func NewWebChannel(cfg WebConfig, agent AgentControl) *WebChannel {
	c := &WebChannel{
		config: cfg,
		agent:  agent,
		conns:  make(map[*websocket.Conn]struct{}),
	}
	c.upgrader = websocket.Upgrader{CheckOrigin: c.checkOrigin}
	return c
}

// checkOrigin admits non-browser clients, which send no Origin, pages
// served from this host, and the configured origins.
func (c *WebChannel) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	origin = strings.TrimSuffix(origin, "/")
	for _, allowed := range c.config.AllowedOrigins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

func (c *WebChannel) sameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.checkOrigin(r) {
			slog.Warn("Rejected cross-origin request", "origin", r.Header.Get("Origin"), "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, agentResponse{Status: "error", Message: "origin not allowed"})
			return
		}
		next(w, r)
	}
}

func (c *WebChannel) ID() string {
	return "web"
}

// Handler returns the HTTP routes served for core.
func (c *WebChannel) Handler(core api.ChannelContext) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, core)
	})
	mux.HandleFunc("POST /agent/start", c.sameOrigin(c.handleAgentStart))
	mux.HandleFunc("POST /agent/stop", c.sameOrigin(c.handleAgentStop))
	mux.HandleFunc("GET /agent/status", c.sameOrigin(c.handleAgentStatus))
	return mux
}

// Start listens synchronously so a busy port fails the start, then serves
// in the background.
func (c *WebChannel) Start(core api.ChannelContext) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(c.config.Host, fmt.Sprint(c.config.Port)))
	if err != nil {
		return fmt.Errorf("web channel cannot listen: %w", err)
	}
	c.addr = ln.Addr()
	c.server = &http.Server{
		Handler:           c.Handler(core),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Web API listening", "addr", c.addr.String())

	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web API server error", "error", err)
		}
	}()
	return nil
}

// Addr is the bound address once started.
func (c *WebChannel) Addr() net.Addr {
	return c.addr
}

func (c *WebChannel) Stop() error {
	if c.server == nil {
		return nil
	}
	c.mu.Lock()
	for conn := range c.conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"), time.Now().Add(time.Second))
		conn.Close()
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.server.Shutdown(ctx)
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, core api.ChannelContext) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	c.mu.Lock()
	c.conns[conn] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.conns, conn)
		c.mu.Unlock()
		conn.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	slog.Info("Web client connected", "remote", r.RemoteAddr)

	// Requests on one connection are handled one at a time.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Web client read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}

		reply := Serve(ctx, core, data)
		out, err := json.Marshal(reply)
		if err != nil {
			slog.Error("Failed to marshal reply", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			slog.Warn("Web client write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// Serve answers one raw frame. Non-JSON text is treated as a slash command.
func Serve(ctx context.Context, core api.ChannelContext, data []byte) Reply {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		text := strings.TrimSpace(string(data))
		if !handler.IsCommand(text) {
			return Reply{Type: "error", ID: uuid.NewString(), Text: "frames are JSON objects or slash commands like /help"}
		}
		f = Frame{Type: "command", Text: text}
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	switch f.Type {
	case "invoke":
		if f.Capability == "" {
			return Reply{Type: "error", ID: f.ID, Text: "invoke frames need a capability"}
		}
		out := core.Invoke(ctx, f.Capability, f.Arguments)
		return Reply{Type: "result", ID: f.ID, Text: out.Render(), Outcome: &out}
	case "list":
		return Reply{Type: "catalog", ID: f.ID, Text: core.Describe(), Catalog: core.Catalog()}
	case "workflow":
		name := f.Name
		if name == "" {
			name = "web"
		}
		return Reply{Type: "report", ID: f.ID, Text: core.RunWorkflow(ctx, name, f.Steps)}
	case "command":
		cmd, ok := core.(interface {
			HandleCommand(ctx context.Context, text string) string
		})
		if !ok {
			return Reply{Type: "error", ID: f.ID, Text: "slash commands are not supported"}
		}
		return Reply{Type: "result", ID: f.ID, Text: cmd.HandleCommand(ctx, f.Text)}
	default:
		return Reply{Type: "error", ID: f.ID, Text: fmt.Sprintf("unknown frame type %q", f.Type)}
	}
}

type agentResponse struct {
	Status  string             `json:"status"` // success or error
	Message string             `json:"message,omitempty"`
	Agent   *supervisor.Status `json:"agent,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func (c *WebChannel) noAgent(w http.ResponseWriter) bool {
	if c.agent != nil {
		return false
	}
	writeJSON(w, http.StatusServiceUnavailable, agentResponse{Status: "error", Message: "no agent command configured"})
	return true
}

func (c *WebChannel) handleAgentStart(w http.ResponseWriter, r *http.Request) {
	if c.noAgent(w) {
		return
	}
	if err := c.agent.Start(); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, supervisor.ErrRunning) {
			code = http.StatusConflict
		}
		writeJSON(w, code, agentResponse{Status: "error", Message: err.Error()})
		return
	}
	st := c.agent.Status()
	writeJSON(w, http.StatusOK, agentResponse{Status: "success", Message: "Agent started successfully", Agent: &st})
}

func (c *WebChannel) handleAgentStop(w http.ResponseWriter, r *http.Request) {
	if c.noAgent(w) {
		return
	}
	if err := c.agent.Stop(r.Context()); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, supervisor.ErrNotRunning) {
			code = http.StatusConflict
		}
		writeJSON(w, code, agentResponse{Status: "error", Message: err.Error()})
		return
	}
	st := c.agent.Status()
	writeJSON(w, http.StatusOK, agentResponse{Status: "success", Message: "Agent stopped successfully", Agent: &st})
}

func (c *WebChannel) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	if c.noAgent(w) {
		return
	}
	st := c.agent.Status()
	writeJSON(w, http.StatusOK, agentResponse{Status: "success", Agent: &st})
}
