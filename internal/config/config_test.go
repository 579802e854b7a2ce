// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears every override variable.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{
		"NEURON_API_KEY", "OPENAI_API_KEY", "NEURON_ORG", "NEURON_BASE_URL",
		"NEURON_MODEL", "NEURON_OFFLINE", "NEURON_DATA_DIR",
	} {
		t.Setenv(name, "")
	}
	return home
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "gpt-3.5-turbo", cfg.Generation.Model)
	assert.Equal(t, 1000, cfg.Generation.MaxTokens)
	assert.Equal(t, 0.7, cfg.Generation.Temperature)
	assert.Equal(t, 5, cfg.Chat.TitleWords)
	assert.Equal(t, 0.0015, cfg.Chat.CostPer1K)
	assert.Equal(t, 10, cfg.API.ValidateTimeoutSecs)
	assert.True(t, cfg.Chat.AutoSave)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad base url", func(c *Config) { c.API.BaseURL = "ftp://example.com" }, "api.base_url"},
		{"zero validate timeout", func(c *Config) { c.API.ValidateTimeoutSecs = 0 }, "api.validate_timeout_secs"},
		{"empty model", func(c *Config) { c.Generation.Model = " " }, "generation.model"},
		{"temperature high", func(c *Config) { c.Generation.Temperature = 1.5 }, "generation.temperature"},
		{"top_p negative", func(c *Config) { c.Generation.TopP = -0.1 }, "generation.top_p"},
		{"presence penalty", func(c *Config) { c.Generation.PresencePenalty = 3 }, "generation.presence_penalty"},
		{"frequency penalty", func(c *Config) { c.Generation.FrequencyPenalty = -3 }, "generation.frequency_penalty"},
		{"title words", func(c *Config) { c.Chat.TitleWords = 0 }, "chat.title_words"},
		{"negative cost", func(c *Config) { c.Chat.CostPer1K = -1 }, "chat.cost_per_1k"},
		{"negative rpm", func(c *Config) { c.Network.RequestsPerMinute = -1 }, "network.requests_per_minute"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Generation.Temperature = 2
	cfg.UI.Theme = "neon"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "generation.temperature")
	assert.Contains(t, err.Error(), "ui.theme")
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("generation.model", "gpt-4"))
	require.NoError(t, cfg.Set("generation.max_tokens", "256"))
	require.NoError(t, cfg.Set("generation.temperature", "0.2"))
	require.NoError(t, cfg.Set("chat.auto_save", "false"))
	require.NoError(t, cfg.Set("chat.cost_per_1k", 0.01))
	require.NoError(t, cfg.Set("api.base_url", "http://localhost:8080/v1"))

	assert.Equal(t, "gpt-4", cfg.Generation.Model)
	assert.Equal(t, 256, cfg.Generation.MaxTokens)
	assert.Equal(t, 0.2, cfg.Generation.Temperature)
	assert.False(t, cfg.Chat.AutoSave)
	assert.Equal(t, 0.01, cfg.Chat.CostPer1K)

	v, err := cfg.Get("api.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", v)

	_, err = cfg.Get("generation.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("generation", "x"))
	assert.Error(t, cfg.Set("generation.max_tokens", "many"))
	assert.Error(t, cfg.Set("", "x"))
}

func TestConfig_AllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestConfig_CloneAndString(t *testing.T) {
	cfg := Default()
	cfg.API.Key = "sk-secret-value"

	clone := cfg.Clone()
	clone.Generation.Model = "gpt-4"
	assert.Equal(t, "gpt-3.5-turbo", cfg.Generation.Model)

	s := cfg.String()
	assert.NotContains(t, s, "sk-secret-value")
	assert.Contains(t, s, "[REDACTED]")
}

func TestConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("NEURON_MODEL", "gpt-4o")
	t.Setenv("NEURON_OFFLINE", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "sk-openai", cfg.API.Key)
	assert.Equal(t, "gpt-4o", cfg.Generation.Model)
	assert.True(t, cfg.Network.OfflineMode)

	t.Setenv("NEURON_API_KEY", "sk-neuron")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "sk-neuron", cfg.API.Key)
}

func TestConfig_LoadDefaultsWhenMissing(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Generation.Model, cfg.Generation.Model)
}

func TestConfig_SaveAndLoadTOML(t *testing.T) {
	home := isolate(t)

	cfg := Default()
	cfg.API.Key = "sk-test"
	cfg.Generation.Model = "gpt-4"
	cfg.Chat.TitleWords = 3
	require.NoError(t, Save(cfg))

	path := filepath.Join(home, ".neuron", "config.toml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# neuron configuration file"))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", loaded.API.Key)
	assert.Equal(t, "gpt-4", loaded.Generation.Model)
	assert.Equal(t, 3, loaded.Chat.TitleWords)
}

func TestConfig_LoadJSONFallback(t *testing.T) {
	home := isolate(t)

	cfg := Default()
	cfg.UI.Theme = "dark"
	require.NoError(t, SaveJSON(cfg, filepath.Join(home, ".neuron", "config.json")))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dark", loaded.UI.Theme)
}

func TestConfig_LoadInvalidFileReturnsDefaults(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".neuron")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[generation\nmodel="), 0600))

	cfg, err := Load()
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default().Generation.Model, cfg.Generation.Model)
}

func TestConfig_MigrateBaseURL(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "https://api.openai.com/"
	cfg.UI.Theme = " Dark "
	require.NoError(t, cfg.Migrate())
	assert.Equal(t, "https://api.openai.com/v1", cfg.API.BaseURL)
	assert.Equal(t, "dark", cfg.UI.Theme)
}

func TestConfig_DataDir(t *testing.T) {
	home := isolate(t)

	cfg := Default()
	dir, err := cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".neuron"), dir)

	cfg.Storage.DataDir = "~/chats"
	dir, err = cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "chats"), dir)
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	h := NewHolder(Default())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.Generation.Model = "gpt-4"
			h.Set(c)
		}()
		go func() {
			defer wg.Done()
			if h.Get() == nil {
				t.Error("Get() returned nil")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, "gpt-4", h.Get().Generation.Model)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changes := make(chan *Config, 4)
	stop, err := Watch(path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	require.NoError(t, err)
	defer stop()

	updated := Default()
	updated.Generation.Model = "gpt-4o"
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-changes:
		assert.Equal(t, "gpt-4o", cfg.Generation.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config write")
	}

	require.NoError(t, stop())
	assert.NoError(t, stop())
}
