// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across neuron packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writes (temp file, fsync, rename)
//   - NewID: random identifiers for sessions, turns and presets
//   - TruncateRunes, PadRight: display helpers that respect multi-byte text
//
// # Usage
//
//	id := util.NewID()
//	err := util.AtomicWriteFile(path, data, 0600)
//	label := util.PadRight(util.TruncateRunes(title, 30), 30)
package util
