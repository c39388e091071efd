package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ResponseDebugger appends question/answer pairs to a per-provider log
// under debug/responses when debug_responses is enabled.
type ResponseDebugger struct {
	mu      sync.Mutex
	file    *os.File
	enabled bool
}

// NewResponseDebugger opens debug/responses/<provider>/<date>.log under dir.
func NewResponseDebugger(dir, provider string) *ResponseDebugger {
	debugDir := filepath.Join(dir, "debug", "responses", provider)
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		slog.Error("Failed to create debug directory", "dir", debugDir, "error", err)
		return &ResponseDebugger{}
	}

	filename := filepath.Join(debugDir, time.Now().Format("20060102")+".log")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open debug file", "file", filename, "error", err)
		return &ResponseDebugger{}
	}

	slog.Debug("Debug mode ON", "provider", provider, "file", filename)
	return &ResponseDebugger{file: f, enabled: true}
}

type debugEntry struct {
	Time     time.Time `json:"time"`
	Model    string    `json:"model"`
	Question string    `json:"question"`
	Answer   string    `json:"answer,omitempty"`
	Error    string    `json:"error,omitempty"`
	Took     string    `json:"took"`
}

// Record writes one JSON line.
func (d *ResponseDebugger) Record(model, question, answer string, err error, took time.Duration) {
	if !d.enabled {
		return
	}
	entry := debugEntry{Time: time.Now(), Model: model, Question: question, Answer: answer, Took: took.String()}
	if err != nil {
		entry.Error = err.Error()
	}
	data, mErr := json.Marshal(entry)
	if mErr != nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, wErr := fmt.Fprintf(d.file, "%s\n", data); wErr != nil {
		slog.Warn("Failed to write to debug file", "error", wErr)
	}
}

// Close closes the debug file.
func (d *ResponseDebugger) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		d.file.Close()
		d.file = nil
		d.enabled = false
	}
}

// debugCompleter records every exchange of the wrapped completer.
type debugCompleter struct {
	Completer
	debugger *ResponseDebugger
}

func newDebugCompleter(c Completer) *debugCompleter {
	return &debugCompleter{Completer: c, debugger: NewResponseDebugger(".", c.Provider())}
}

func (d *debugCompleter) Complete(ctx context.Context, system, question string) (string, error) {
	start := time.Now()
	answer, err := d.Completer.Complete(ctx, system, question)
	d.debugger.Record(d.Model(), question, answer, err, time.Since(start))
	return answer, err
}
