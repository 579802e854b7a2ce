// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration command for neuron CLI.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Print the configuration (API key redacted)
//   get KEY             Print one value (dot notation, e.g. generation.model)
//   set KEY VALUE       Change one value and save
//   keys                List every key
//   path                Print the config file path

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/neuron/internal/cloud"
	"github.com/jeranaias/neuron/internal/config"
)

// RunConfig handles "neuron config".
func (a *App) RunConfig(ctx context.Context) error {
	p := NewArgParser(a.Args.Raw)
	cfg := a.Config.Get()

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "show":
		fmt.Fprintln(a.Out, cfg.String())
		return nil

	case "path":
		fmt.Fprintln(a.Out, a.ConfigPath)
		return nil

	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(a.Out, k)
		}
		return nil

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "neuron config get generation.model")
		}
		v, err := cfg.Get(key)
		if err != nil {
			return ErrInvalidValue("key", key, err.Error())
		}
		if isKeyField(key) {
			v = cloud.MaskKey(fmt.Sprint(v))
		}
		if a.Args.JSON {
			return writeJSON(a.Out, map[string]interface{}{key: v})
		}
		fmt.Fprintln(a.Out, v)
		return nil

	case "set":
		key, value := p.Positional(1), JoinPositionalArgs(p, 2)
		if key == "" || p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "neuron config set generation.temperature 0.3")
		}
		return a.setConfigValue(key, value)

	default:
		return ErrInvalidValue("subcommand", sub, "expected show, get, set, keys, or path")
	}
}

func isKeyField(key string) bool {
	return strings.EqualFold(strings.TrimSpace(key), "api.key")
}

// setConfigValue changes one key on a copy, validates, and saves. A new API
// key is encrypted when api.encrypt_key is on.
func (a *App) setConfigValue(key, value string) error {
	cfg := a.Config.Get().Clone()
	if err := cfg.Set(key, value); err != nil {
		return ErrInvalidValue("key", key, err.Error())
	}

	if isKeyField(key) && cfg.API.EncryptKey {
		enc, err := a.encryptKey(cfg.API.Key)
		if err != nil {
			return err
		}
		cfg.API.Key = enc
	}

	if err := a.SaveConfig(cfg); err != nil {
		return err
	}
	if !a.Args.Quiet {
		shown := value
		if isKeyField(key) {
			shown = cloud.MaskKey(value)
		}
		fmt.Fprintf(a.Out, "%s %s = %s\n", RenderStatus("ok"), key, shown)
	}
	return nil
}

// encryptKey seals key with the vault, creating a master key on first use.
func (a *App) encryptKey(key string) (string, error) {
	if !a.Vault.IsInitialized() {
		if a.Vault.HasSalt() && !a.Vault.HasKey() {
			if err := a.unlockVault(); err != nil {
				return "", err
			}
		} else if err := a.Vault.LoadOrInitialize(); err != nil {
			return "", err
		}
	}
	return a.Vault.EncryptField(key)
}
