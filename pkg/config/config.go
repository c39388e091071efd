package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config defines the application configuration stored in config.json:
// credentials, contacts and transport settings.
type Config struct {
	// Channels maps a transport identifier ("web", "mcp") to its raw
	// configuration payload.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// AI holds the ordered list of AI provider groups. The order is the
	// fallback order of the ask_ai family.
	AI jsoniter.RawMessage `json:"ai"`
	// Messaging holds contacts and messaging credentials.
	Messaging MessagingConfig `json:"messaging"`
	// Agent describes the external agent process the supervisor manages.
	Agent AgentConfig `json:"agent"`
}

// MessagingConfig configures the send_message family.
type MessagingConfig struct {
	TelegramToken string             `json:"telegram_token,omitempty"`
	Contacts      map[string]Contact `json:"contacts,omitempty"`
}

// Contact is an address book entry. Lookups are case-insensitive.
type Contact struct {
	Phone          string `json:"phone,omitempty"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// Lookup finds a contact by name, ignoring case.
func (m MessagingConfig) Lookup(name string) (Contact, bool) {
	for k, c := range m.Contacts {
		if strings.EqualFold(k, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return Contact{}, false
}

// AgentConfig describes the supervised agent process.
type AgentConfig struct {
	Command []string `json:"command,omitempty"`
	Dir     string   `json:"dir,omitempty"`
	// StopGraceMs is how long Stop waits after the terminate signal before
	// killing the process.
	StopGraceMs int `json:"stop_grace_ms,omitempty"`
}

// Validate checks the fields that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	for name, contact := range c.Messaging.Contacts {
		if contact.Phone == "" && contact.TelegramChatID == 0 {
			return fmt.Errorf("contact %q has neither a phone number nor a telegram chat id", name)
		}
	}
	if c.Agent.StopGraceMs < 0 {
		return fmt.Errorf("agent.stop_grace_ms must not be negative")
	}
	return nil
}

// SystemConfig defines engine-level parameters stored in system.json.
// Every field has a safe default, so the file is optional.
type SystemConfig struct {
	// ReadTimeoutMs bounds READ capabilities.
	ReadTimeoutMs int `json:"read_timeout_ms"`
	// MutationTimeoutMs bounds LOCAL_MUTATION capabilities.
	MutationTimeoutMs int `json:"mutation_timeout_ms"`
	// AutomationTimeoutMs bounds OS_AUTOMATION capabilities that do not
	// declare their own timeout.
	AutomationTimeoutMs int `json:"automation_timeout_ms"`
	// NetworkTimeoutMs bounds each attempt of a NETWORK capability.
	NetworkTimeoutMs int `json:"network_timeout_ms"`
	// RetryDelayMs is the pause before the single NETWORK retry.
	RetryDelayMs int `json:"retry_delay_ms"`
	// OCRLanguages are the tesseract language packs used together.
	OCRLanguages []string `json:"ocr_languages"`
	// TesseractPath is the OCR binary to run.
	TesseractPath string `json:"tesseract_path"`
	// OllamaDefaultURL is used by ollama providers without a base_url.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// DebugResponses saves raw AI provider responses under debug/.
	DebugResponses bool `json:"debug_responses"`
	// LogLevel accepts "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
}

// DefaultSystemConfig returns the hardcoded defaults used when system.json
// is missing or corrupt.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		ReadTimeoutMs:       30000,
		MutationTimeoutMs:   10000,
		AutomationTimeoutMs: 30000,
		NetworkTimeoutMs:    30000,
		RetryDelayMs:        500,
		OCRLanguages:        []string{"eng", "hin"},
		TesseractPath:       "tesseract",
		OllamaDefaultURL:    "http://localhost:11434",
		LogLevel:            "info",
	}
}

// Timeout returns the default timeout of an effect class.
func (s *SystemConfig) Timeout(effect api.EffectClass) time.Duration {
	var ms int
	switch effect {
	case api.EffectRead:
		ms = s.ReadTimeoutMs
	case api.EffectLocalMutation:
		ms = s.MutationTimeoutMs
	case api.EffectOSAutomation:
		ms = s.AutomationTimeoutMs
	case api.EffectNetwork:
		ms = s.NetworkTimeoutMs
	}
	if ms <= 0 {
		return 30 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// RetryDelay returns the pause before a NETWORK retry.
func (s *SystemConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

// Load reads the application config from appPath and the system config
// from systemPath. A missing or invalid application config is an error;
// the system config falls back to defaults.
func Load(appPath, systemPath string) (*Config, *SystemConfig, error) {
	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file %s: %w", appPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file %s: %w", appPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, LoadSystemConfig(systemPath), nil
}

// LoadSystemConfig attempts to load system settings and returns defaults
// for anything missing.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return DefaultSystemConfig()
	}
	if len(cfg.OCRLanguages) == 0 {
		cfg.OCRLanguages = DefaultSystemConfig().OCRLanguages
	}

	return cfg
}
