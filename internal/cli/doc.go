// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for neuron.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - App: the wired runtime (config, store, client, connectivity, usage)
//   - ArgParser: flag and positional parsing shared by subcommands
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	os.Exit(cli.Run(ctx, cmd, args))
//
// # Commands Overview
//
//   - chat: interactive conversation with line editing and history
//   - ask: single question, reply on stdout
//   - validate: check the API key against the provider
//   - models: list known and available models
//   - session: list, show, rename, archive, export, delete saved chats
//   - preset: manage saved generation presets
//   - config: show, get, and set configuration values
//   - import: load chats exported by the previous app
//   - setup: first-run wizard
package cli
