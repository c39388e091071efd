package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/api"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "config.json", `{
		"ai": [{"type": "openai", "models": ["gpt-4o-mini"], "api_keys": ["k"]}],
		"messaging": {"contacts": {"Mom": {"phone": "+911234567890", "telegram_chat_id": 42}}},
		"channels": {"web": {"port": 9000}}
	}`)
	sys := writeFile(t, dir, "system.json", `{"network_timeout_ms": 5000, "log_level": "debug"}`)

	cfg, sysCfg, err := Load(app, sys)
	require.NoError(t, err)

	assert.Contains(t, string(cfg.AI), "gpt-4o-mini")
	assert.Contains(t, cfg.Channels, "web")
	assert.Equal(t, 5*time.Second, sysCfg.Timeout(api.EffectNetwork))
	assert.Equal(t, "debug", sysCfg.LogLevel)
	// Fields absent from system.json keep their defaults.
	assert.Equal(t, 10*time.Second, sysCfg.Timeout(api.EffectLocalMutation))
	assert.Equal(t, []string{"eng", "hin"}, sysCfg.OCRLanguages)

	contact, ok := cfg.Messaging.Lookup("mom")
	require.True(t, ok)
	assert.Equal(t, int64(42), contact.TelegramChatID)
}

func TestLoad_MissingAppConfig(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Error(t, err)
}

func TestLoad_InvalidContact(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "config.json", `{"messaging": {"contacts": {"ghost": {}}}}`)

	_, _, err := Load(app, filepath.Join(dir, "system.json"))
	assert.ErrorContains(t, err, "ghost")
}

func TestLoadSystemConfig_Defaults(t *testing.T) {
	dir := t.TempDir()

	missing := LoadSystemConfig(filepath.Join(dir, "missing.json"))
	assert.Equal(t, DefaultSystemConfig(), missing)

	corrupt := LoadSystemConfig(writeFile(t, dir, "system.json", `{not json`))
	assert.Equal(t, DefaultSystemConfig(), corrupt)
}

func TestDefaultTimeouts(t *testing.T) {
	sys := DefaultSystemConfig()
	assert.Equal(t, 30*time.Second, sys.Timeout(api.EffectRead))
	assert.Equal(t, 10*time.Second, sys.Timeout(api.EffectLocalMutation))
	assert.Equal(t, 30*time.Second, sys.Timeout(api.EffectOSAutomation))
	assert.Equal(t, 30*time.Second, sys.Timeout(api.EffectNetwork))
	assert.Equal(t, 500*time.Millisecond, sys.RetryDelay())
}

func TestWatchConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "system.json", `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := WatchConfig(ctx, path)
	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "system.json", `{"log_level": "warn"}`)
	writeFile(t, dir, "unrelated.json", `{}`)

	select {
	case _, ok := <-ch:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload signal after config change")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
