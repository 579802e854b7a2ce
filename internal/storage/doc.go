// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat sessions and presets in a local SQLite
// database.
//
// Each session is one row holding a versioned JSON payload and its list
// position, so saving one session never rewrites the others. A small
// key-value table holds the remaining slots (presets, import markers).
//
// # Key Types
//
//   - Store: database handle; LoadAll, SaveAll, Upsert, Delete, Get
//   - PresetStore: saved generation presets in the "presets" slot
//   - DecodeError: rows skipped during load, reported next to the good rows
//
// # Usage
//
//	store, err := storage.Open(filepath.Join(dataDir, storage.DefaultFileName))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	sessions, err := store.LoadAll(ctx)
//	var derr *storage.DecodeError
//	if errors.As(err, &derr) {
//	    // sessions still holds every readable row
//	}
//
// # Storage Location
//
// The database lives at ~/.neuron/neuron.db unless storage.data_dir is set.
package storage
