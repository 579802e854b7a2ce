// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/neuron/internal/util"
)

// CurrentVersion is the config file format version.
const CurrentVersion = "1"

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the complete neuron configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	API        APIConfig        `toml:"api" json:"api"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Chat       ChatConfig       `toml:"chat" json:"chat"`
	Network    NetworkConfig    `toml:"network" json:"network"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	UI         UIConfig         `toml:"ui" json:"ui"`
}

// APIConfig holds provider connection settings.
type APIConfig struct {
	// Key is the provider API key, plain or "ENC:"-prefixed when encrypted
	Key string `toml:"key" json:"key"`

	// Organization is sent as the OpenAI-Organization header when set
	Organization string `toml:"organization" json:"organization"`

	// BaseURL is the chat-completions API root
	BaseURL string `toml:"base_url" json:"base_url"`

	// ValidateTimeoutSecs bounds the credential probe
	ValidateTimeoutSecs int `toml:"validate_timeout_secs" json:"validate_timeout_secs"`

	// EncryptKey stores Key encrypted at rest
	EncryptKey bool `toml:"encrypt_key" json:"encrypt_key"`
}

// GenerationConfig holds request parameters.
type GenerationConfig struct {
	Model            string  `toml:"model" json:"model"`
	MaxTokens        int     `toml:"max_tokens" json:"max_tokens"`
	Temperature      float64 `toml:"temperature" json:"temperature"`
	TopP             float64 `toml:"top_p" json:"top_p"`
	PresencePenalty  float64 `toml:"presence_penalty" json:"presence_penalty"`
	FrequencyPenalty float64 `toml:"frequency_penalty" json:"frequency_penalty"`
	SystemPrompt     string  `toml:"system_prompt" json:"system_prompt"`
}

// ChatConfig holds conversation behaviour.
type ChatConfig struct {
	// TitleWords is how many words of the first message become the title
	TitleWords int `toml:"title_words" json:"title_words"`

	// CostPer1K is the estimated price per 1000 tokens
	CostPer1K float64 `toml:"cost_per_1k" json:"cost_per_1k"`

	// AutoSave persists after every reply
	AutoSave bool `toml:"auto_save" json:"auto_save"`

	// MinWordCount hides shorter sessions from the list
	MinWordCount int `toml:"min_word_count" json:"min_word_count"`
}

// NetworkConfig holds connectivity settings.
type NetworkConfig struct {
	OfflineMode       bool `toml:"offline_mode" json:"offline_mode"`
	ProbeIntervalSecs int  `toml:"probe_interval_secs" json:"probe_interval_secs"`
	RequestsPerMinute int  `toml:"requests_per_minute" json:"requests_per_minute"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// DataDir holds the session database; empty means ~/.neuron
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// UIConfig holds terminal display settings.
type UIConfig struct {
	// Theme is the glamour style: auto, dark, light, or notty
	Theme string `toml:"theme" json:"theme"`

	// Markdown renders replies as formatted markdown
	Markdown bool `toml:"markdown" json:"markdown"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:             "https://api.openai.com/v1",
			ValidateTimeoutSecs: 10,
		},
		Generation: GenerationConfig{
			Model:       "gpt-3.5-turbo",
			MaxTokens:   1000,
			Temperature: 0.7,
		},
		Chat: ChatConfig{
			TitleWords: 5,
			CostPer1K:  0.0015,
			AutoSave:   true,
		},
		Network: NetworkConfig{
			ProbeIntervalSecs: 30,
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the neuron configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".neuron"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataDir returns the directory for the session database.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return expandHome(c.Storage.DataDir)
	}
	return ConfigDir()
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ensureSecurePermissions tightens a config file to 0600; it holds the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.neuron. TOML is tried first, then JSON,
// then built-in defaults. Environment overrides are applied last. When a
// file exists but cannot be parsed, the defaults are returned together with
// the parse error.
func Load() (*Config, error) {
	var loadErr error

	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := LoadFromPath(path)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := LoadFromPath(path)
			if err == nil {
				return cfg, nil
			}
			if loadErr == nil {
				loadErr = err
			}
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads a specific file; the format follows the extension,
// defaulting to TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies env overrides, migration, defaults, and validation.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	if err := c.Migrate(); err != nil {
		return fmt.Errorf("config migration failed: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# neuron configuration file\n")
	sb.WriteString("# Generated by neuron - edit with care\n")
	sb.WriteString("\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg to path as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// DEFAULTS AND MIGRATION
// =============================================================================

// SetDefaults fills zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.ValidateTimeoutSecs == 0 {
		c.API.ValidateTimeoutSecs = d.API.ValidateTimeoutSecs
	}
	if c.Generation.Model == "" {
		c.Generation.Model = d.Generation.Model
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = d.Generation.MaxTokens
	}
	if c.Chat.TitleWords == 0 {
		c.Chat.TitleWords = d.Chat.TitleWords
	}
	if c.Chat.CostPer1K == 0 {
		c.Chat.CostPer1K = d.Chat.CostPer1K
	}
	if c.Network.ProbeIntervalSecs == 0 {
		c.Network.ProbeIntervalSecs = d.Network.ProbeIntervalSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// Migrate rewrites settings from older formats.
func (c *Config) Migrate() error {
	c.API.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.API.BaseURL), "/")
	c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))

	// Early releases stored the bare host without the /v1 suffix.
	if c.API.BaseURL == "https://api.openai.com" {
		c.API.BaseURL = "https://api.openai.com/v1"
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - NEURON_API_KEY: overrides api.key (OPENAI_API_KEY is used when unset)
//   - NEURON_ORG: overrides api.organization
//   - NEURON_BASE_URL: overrides api.base_url
//   - NEURON_MODEL: overrides generation.model
//   - NEURON_OFFLINE: "1" or "true" enables offline mode
//   - NEURON_DATA_DIR: overrides storage.data_dir
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("NEURON_API_KEY"); key != "" {
		c.API.Key = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.API.Key == "" {
		c.API.Key = key
	}

	if org := os.Getenv("NEURON_ORG"); org != "" {
		c.API.Organization = org
	}
	if url := os.Getenv("NEURON_BASE_URL"); url != "" {
		c.API.BaseURL = url
	}
	if model := os.Getenv("NEURON_MODEL"); model != "" {
		c.Generation.Model = model
	}
	if off := os.Getenv("NEURON_OFFLINE"); off != "" {
		c.Network.OfflineMode = parseBool(off)
	}
	if dir := os.Getenv("NEURON_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// CLONE / STRING
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Key != "" {
		safe.API.Key = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// HOLDER
// =============================================================================

// Holder is a concurrency-safe reference to the active configuration.
type Holder struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewHolder wraps cfg.
func NewHolder(cfg *Config) *Holder {
	return &Holder{cfg: cfg}
}

// Get returns the current configuration. Callers must not modify it.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Set replaces the current configuration.
func (h *Holder) Set(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}
