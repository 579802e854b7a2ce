// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the database layout for migrations.
	SchemaVersion = 1

	// RecordVersion is the payload format written for each session row.
	// Version 1 rows hold the legacy export shape and are migrated on load.
	RecordVersion = 2
)

// Schema creates the tables on first open.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per session; position orders the list, lowest first
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    version INTEGER NOT NULL,
    data BLOB NOT NULL,
    updated_at INTEGER NOT NULL -- Unix timestamp
);

CREATE INDEX IF NOT EXISTS idx_sessions_position ON sessions(position);

-- Named slots for everything that is not a session
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL
) WITHOUT ROWID;
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`

// KV slot names.
const (
	slotPresets        = "presets"
	slotLegacyImported = "legacy_imported_at"
)
