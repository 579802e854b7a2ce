// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface functionality.
// This file contains shared helper functions used across multiple CLI commands.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// formatDuration formats a time.Duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// writeJSON writes data as indented JSON.
func writeJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// promptLine prints prompt and reads one line from r.
func promptLine(w io.Writer, r *bufio.Reader, prompt string) string {
	fmt.Fprint(w, prompt)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// confirm asks a yes/no question; empty input selects def.
func confirm(w io.Writer, r *bufio.Reader, prompt string, def bool) bool {
	hint := " [y/N] "
	if def {
		hint = " [Y/n] "
	}
	answer := promptLine(w, r, prompt+hint)
	if answer == "" {
		return def
	}
	ok, err := ParseBoolString(answer)
	if err != nil {
		return def
	}
	return ok
}

// ValidateOutputPath cleans an export destination and rejects directories.
func ValidateOutputPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrMissingArgument("output", "--output chat.md")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", ErrInvalidValue("output", path, "is a directory")
	}
	return abs, nil
}
