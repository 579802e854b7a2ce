// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/neuron/internal/cloud"
	"github.com/jeranaias/neuron/internal/config"
	"github.com/jeranaias/neuron/internal/offline"
	"github.com/jeranaias/neuron/internal/security"
	"github.com/jeranaias/neuron/internal/session"
	"github.com/jeranaias/neuron/internal/storage"
	"github.com/jeranaias/neuron/internal/telemetry"
)

// PassphraseEnv supplies the vault password for password-protected keys
// when no terminal is available.
const PassphraseEnv = "NEURON_PASSPHRASE"

// =============================================================================
// APP
// =============================================================================

// App is the wired runtime shared by every command.
type App struct {
	Args Args

	In  io.Reader
	Out io.Writer
	Err io.Writer

	Config     *config.Holder
	ConfigPath string

	Client  *cloud.Client
	Monitor *offline.Monitor
	Usage   *telemetry.UsageCounter
	Vault   *security.Vault
	Logger  *log.Logger

	storeMu sync.Mutex
	store   *storage.Store

	keyMu  sync.Mutex
	keyRaw string
	keyDec string
}

// NewApp loads configuration and builds the client stack.
func NewApp(args Args) (*App, error) {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}

	return newApp(args, path, cfg), nil
}

// loadConfig reads the config file. A broken default config file is
// reported as a warning and defaults are used; a broken --config file is an
// error.
func loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		if _, err := os.Stat(args.ConfigPath); errors.Is(err, os.ErrNotExist) {
			cfg := config.Default()
			cfg.ApplyEnvOverrides()
			cfg.SetDefaults()
			return applyArgOverrides(cfg, args), cfg.Validate()
		}
		cfg, err := config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, err
		}
		return applyArgOverrides(cfg, args), nil
	}

	cfg, err := config.Load()
	if cfg == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("[WARN]"), err)
	}
	return applyArgOverrides(cfg, args), nil
}

func applyArgOverrides(cfg *config.Config, args Args) *config.Config {
	if args.Model != "" {
		cfg.Generation.Model = args.Model
	}
	if args.Offline {
		cfg.Network.OfflineMode = true
	}
	return cfg
}

func newApp(args Args, path string, cfg *config.Config) *App {
	logger := log.New(io.Discard, "neuron: ", log.LstdFlags)
	if args.Verbose {
		logger.SetOutput(os.Stderr)
	}

	usage := telemetry.NewUsageCounter(cfg.Chat.CostPer1K)

	monitor := offline.NewMonitor(cfg.API.BaseURL, time.Duration(cfg.Network.ProbeIntervalSecs)*time.Second)
	monitor.SetLogger(logger)
	monitor.SetOfflineMode(cfg.Network.OfflineMode)

	client := cloud.NewClient(
		cloud.WithBaseURL(cfg.API.BaseURL),
		cloud.WithOrganization(cfg.API.Organization),
		cloud.WithConnectivity(monitor),
		cloud.WithUsage(usage),
		cloud.WithRateLimit(cfg.Network.RequestsPerMinute),
		cloud.WithLogger(logger),
		cloud.WithValidateTimeout(time.Duration(cfg.API.ValidateTimeoutSecs)*time.Second),
		cloud.WithValidateModel(cfg.Generation.Model),
	)

	return &App{
		Args:       args,
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		Config:     config.NewHolder(cfg),
		ConfigPath: path,
		Client:     client,
		Monitor:    monitor,
		Usage:      usage,
		Vault:      security.NewVault(filepath.Join(filepath.Dir(path), "master.key")),
		Logger:     logger,
	}
}

// Close releases the store.
func (a *App) Close() error {
	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// Store opens the session database on first use.
func (a *App) Store() (*storage.Store, error) {
	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	if a.store != nil {
		return a.store, nil
	}

	dir, err := a.Config.Get().DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := storage.Open(filepath.Join(dir, storage.DefaultFileName))
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// =============================================================================
// CREDENTIAL
// =============================================================================

// APIKey returns the configured key, decrypting it when stored encrypted.
// A key that cannot be decrypted yields "" and the client reports it as
// missing.
func (a *App) APIKey() string {
	key, err := a.resolveKey()
	if err != nil {
		a.Logger.Printf("api key: %v", err)
		return ""
	}
	return key
}

func (a *App) resolveKey() (string, error) {
	raw := a.Config.Get().API.Key

	a.keyMu.Lock()
	defer a.keyMu.Unlock()

	if raw == a.keyRaw && a.keyDec != "" {
		return a.keyDec, nil
	}
	if !security.IsEncrypted(raw) {
		a.keyRaw, a.keyDec = raw, raw
		return raw, nil
	}

	if err := a.unlockVault(); err != nil {
		return "", err
	}
	dec, err := a.Vault.DecryptField(raw)
	if err != nil {
		return "", err
	}
	a.keyRaw, a.keyDec = raw, dec
	return dec, nil
}

func (a *App) unlockVault() error {
	if a.Vault.IsInitialized() {
		return nil
	}
	if a.Vault.HasKey() {
		return a.Vault.Unlock()
	}
	if !a.Vault.HasSalt() {
		return security.ErrNoKey
	}
	pass := os.Getenv(PassphraseEnv)
	if pass == "" {
		p, err := ReadSecret("Passphrase: ")
		if err != nil {
			return err
		}
		pass = p
	}
	return a.Vault.UnlockWithPassword(pass)
}

// =============================================================================
// SESSION WIRING
// =============================================================================

// SessionConfig builds the conversation settings from cfg.
func (a *App) SessionConfig(cfg *config.Config) session.Config {
	sc := session.DefaultConfig()
	sc.APIKey = a.APIKey
	sc.Params = cloud.Params{
		Model:            cfg.Generation.Model,
		MaxTokens:        cfg.Generation.MaxTokens,
		Temperature:      cfg.Generation.Temperature,
		TopP:             cfg.Generation.TopP,
		PresencePenalty:  cfg.Generation.PresencePenalty,
		FrequencyPenalty: cfg.Generation.FrequencyPenalty,
	}
	sc.SystemPrompt = cfg.Generation.SystemPrompt
	sc.TitleWords = cfg.Chat.TitleWords
	sc.AutoSave = cfg.Chat.AutoSave
	return sc
}

// SaveConfig writes cfg to the app's config path and makes it current.
func (a *App) SaveConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, a.ConfigPath); err != nil {
		return err
	}
	a.Config.Set(cfg)
	return nil
}

// probe refreshes the reachability signal before a one-shot request. In
// offline mode remote targets are never dialed.
func (a *App) probe(ctx context.Context) {
	if a.Monitor.OfflineMode() && !offline.IsLocalhost(a.Monitor.Target()) {
		return
	}
	a.Monitor.Probe(ctx)
}

// requestContext bounds a one-shot request by the HTTP client timeout.
func requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cloud.DefaultTimeout+5*time.Second)
}
