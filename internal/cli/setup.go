// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run configuration for neuron CLI.
//
// Command: setup
// Short:   Store an API key and pick a default model
//
// Examples:
//   neuron setup                         Prompt for the key
//   neuron setup --encrypt               Encrypt the key with a key file
//   neuron setup --password              Encrypt the key with a passphrase
//   echo "$KEY" | neuron setup --skip-validate
//
// Flags:
//   --key KEY          Use KEY instead of prompting
//   --encrypt          Store the key encrypted (ENC: prefix)
//   --password         Derive the encryption key from a passphrase
//   --skip-validate    Do not probe the provider before saving

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/neuron/internal/cloud"
	"github.com/jeranaias/neuron/internal/model"
)

// RunSetup handles "neuron setup".
func (a *App) RunSetup(ctx context.Context) error {
	p := NewArgParser(a.Args.Raw, "encrypt", "password", "skip-validate")
	reader := bufio.NewReader(a.In)
	interactive := a.In == os.Stdin && IsTTY()

	key := strings.TrimSpace(p.Flag("key"))
	if key == "" {
		var err error
		if interactive {
			key, err = ReadSecret("API key: ")
			if err != nil {
				return err
			}
		} else {
			key = promptLine(a.Err, reader, "")
		}
	}
	if key == "" {
		return ErrMissingArgument("key", "neuron setup --key sk-...")
	}

	cfg := a.Config.Get().Clone()

	if !p.BoolFlag("skip-validate") && !cfg.Network.OfflineMode {
		a.probe(ctx)
		vctx, cancel := requestContext(ctx)
		err := a.Client.ValidateDetailed(vctx, key)
		cancel()
		if err != nil {
			fmt.Fprintf(a.Err, "%s %s\n", RenderStatus("fail"), FriendlyError(err))
			return err
		}
		if !a.Args.Quiet {
			fmt.Fprintf(a.Out, "%s API key accepted (%s)\n", RenderStatus("ok"), cloud.MaskKey(key))
		}
	}

	if a.Args.Model == "" && interactive {
		fmt.Fprintln(a.Out)
		for _, d := range model.All() {
			fmt.Fprintf(a.Out, "  %-24s %s\n", d.ID, DimStyle.Render(d.Name))
		}
		choice := promptLine(a.Out, reader, fmt.Sprintf("Default model [%s]: ", cfg.Generation.Model))
		if choice != "" {
			cfg.Generation.Model = choice
		}
	}

	encrypt := p.BoolFlag("encrypt") || p.BoolFlag("password")
	if encrypt {
		if err := a.initVault(p.BoolFlag("password")); err != nil {
			return NewCommandError("setup", "encrypt", "could not prepare the key vault", err)
		}
		enc, err := a.Vault.EncryptField(key)
		if err != nil {
			return NewCommandError("setup", "encrypt", "could not encrypt the key", err)
		}
		key = enc
	}
	cfg.API.Key = key
	cfg.API.EncryptKey = encrypt

	if err := a.SaveConfig(cfg); err != nil {
		return err
	}

	if a.Args.JSON {
		return writeJSON(a.Out, map[string]interface{}{
			"config":    a.ConfigPath,
			"model":     cfg.Generation.Model,
			"encrypted": encrypt,
		})
	}
	if !a.Args.Quiet {
		fmt.Fprintf(a.Out, "%s saved %s\n", RenderStatus("ok"), a.ConfigPath)
		fmt.Fprintln(a.Out, RenderKV("Model", cfg.Generation.Model))
		if encrypt {
			fmt.Fprintln(a.Out, RenderKV("Key file", a.Vault.KeyPath()))
		}
	}
	return nil
}

// initVault prepares the vault for encrypting a new key. With password the
// master key is derived from a passphrase read from NEURON_PASSPHRASE or the
// terminal; otherwise a random key file is created or reused.
func (a *App) initVault(password bool) error {
	if !password {
		return a.Vault.LoadOrInitialize()
	}

	pass := os.Getenv(PassphraseEnv)
	if pass == "" {
		first, err := ReadSecret("Passphrase: ")
		if err != nil {
			return err
		}
		second, err := ReadSecret("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if first != second {
			return ErrInvalidValue("passphrase", "", "passphrases do not match")
		}
		pass = first
	}
	if pass == "" {
		return ErrInvalidValue("passphrase", "", "must not be empty")
	}
	if a.Vault.HasKey() {
		// A key file takes precedence over the salt on unlock.
		if err := os.Remove(a.Vault.KeyPath()); err != nil {
			return err
		}
	}
	return a.Vault.InitializeWithPassword(pass)
}
