package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/api"
)

func TestCustomHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelDebug})).With("component", "executor")

	ctx, id := WithInvocationID(context.Background())
	logger.InfoContext(ctx, "Capability finished", "capability", "set_volume", "attempts", 1)

	line := buf.String()
	assert.Contains(t, line, "[INFO] ["+id+"] Capability finished")
	assert.Contains(t, line, `component="executor"`)
	assert.Contains(t, line, `capability="set_volume"`)
	assert.Contains(t, line, "attempts=1")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestCustomHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{})).
		WithGroup("agent").With("pid", 42)

	logger.Info("Agent output", slog.Group("exit", "code", 3), "took", 1500*time.Millisecond)

	_, rest, ok := strings.Cut(buf.String(), "[INFO]")
	require.True(t, ok)
	assert.Equal(t, " Agent output agent.pid=42 agent.exit.code=3 agent.took=1.5s\n", rest)
}

func TestCustomHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: ParseLevel("warn")}))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithInvocationID_KeepsExisting(t *testing.T) {
	ctx, id := WithInvocationID(context.Background())
	require.NotEmpty(t, id)

	again, id2 := WithInvocationID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, id, InvocationID(again))
	assert.Empty(t, InvocationID(context.Background()))
}

func TestCLIMonitor(t *testing.T) {
	var buf bytes.Buffer
	m := NewCLIMonitorTo(&buf)
	require.NoError(t, m.Start())

	m.OnInvocation(InvocationEvent{
		ID:         "abc12345",
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Capability: "open_app",
		Effect:     api.EffectOSAutomation,
		Kind:       api.KindPermissionDenied,
		Message:    "not allowed assistive access",
		Attempts:   1,
		Duration:   1500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "[abc12345] open_app (OS_AUTOMATION) PermissionDenied: not allowed assistive access attempts=1 took=1.5s")
}
