// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strings"

	"github.com/jeranaias/neuron/internal/offline"
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validThemes = map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}

// Validate checks every section and returns ValidateErrors when anything is
// out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// ==========================================================================
	// API
	// ==========================================================================

	if err := offline.ValidateURL(c.API.BaseURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: err.Error(),
		})
	}
	if c.API.ValidateTimeoutSecs < 1 || c.API.ValidateTimeoutSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "api.validate_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 300, got %d", c.API.ValidateTimeoutSecs),
		})
	}

	// ==========================================================================
	// Generation
	// ==========================================================================

	if strings.TrimSpace(c.Generation.Model) == "" {
		errs = append(errs, ValidationError{
			Field:   "generation.model",
			Message: "cannot be empty",
		})
	}
	if c.Generation.MaxTokens < 1 || c.Generation.MaxTokens > 128000 {
		errs = append(errs, ValidationError{
			Field:   "generation.max_tokens",
			Message: fmt.Sprintf("must be between 1 and 128000, got %d", c.Generation.MaxTokens),
		})
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		errs = append(errs, ValidationError{
			Field:   "generation.temperature",
			Message: fmt.Sprintf("must be between 0 and 1, got %g", c.Generation.Temperature),
		})
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		errs = append(errs, ValidationError{
			Field:   "generation.top_p",
			Message: fmt.Sprintf("must be between 0 and 1, got %g", c.Generation.TopP),
		})
	}
	if c.Generation.PresencePenalty < -2 || c.Generation.PresencePenalty > 2 {
		errs = append(errs, ValidationError{
			Field:   "generation.presence_penalty",
			Message: fmt.Sprintf("must be between -2 and 2, got %g", c.Generation.PresencePenalty),
		})
	}
	if c.Generation.FrequencyPenalty < -2 || c.Generation.FrequencyPenalty > 2 {
		errs = append(errs, ValidationError{
			Field:   "generation.frequency_penalty",
			Message: fmt.Sprintf("must be between -2 and 2, got %g", c.Generation.FrequencyPenalty),
		})
	}

	// ==========================================================================
	// Chat
	// ==========================================================================

	if c.Chat.TitleWords < 1 || c.Chat.TitleWords > 50 {
		errs = append(errs, ValidationError{
			Field:   "chat.title_words",
			Message: fmt.Sprintf("must be between 1 and 50, got %d", c.Chat.TitleWords),
		})
	}
	if c.Chat.CostPer1K < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.cost_per_1k",
			Message: "cannot be negative",
		})
	}
	if c.Chat.MinWordCount < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.min_word_count",
			Message: "cannot be negative",
		})
	}

	// ==========================================================================
	// Network
	// ==========================================================================

	if c.Network.ProbeIntervalSecs < 1 || c.Network.ProbeIntervalSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "network.probe_interval_secs",
			Message: fmt.Sprintf("must be between 1 and 3600, got %d", c.Network.ProbeIntervalSecs),
		})
	}
	if c.Network.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "network.requests_per_minute",
			Message: "cannot be negative (0 disables the limit)",
		})
	}

	// ==========================================================================
	// UI
	// ==========================================================================

	if !validThemes[c.UI.Theme] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
