// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for neuron.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: all settings, grouped into api, generation, chat, network,
//     storage, and ui sections
//   - Holder: concurrency-safe reference to the current Config, swapped on
//     reload
//   - ValidateErrors: every problem Validate found
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NEURON_*, OPENAI_API_KEY)
//   - ~/.neuron/config.toml
//   - ~/.neuron/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	params := cfg.Generation.Model
//
// Watch for edits while a chat is open:
//
//	stop, err := config.Watch(path, func(cfg *config.Config, err error) { ... })
//	defer stop()
package config
