// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/neuron/internal/util"
)

// presetsVersion is the envelope format of the presets slot.
const presetsVersion = 1

// Preset is a saved set of generation parameters with an optional opening
// prompt.
type Preset struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Model            string  `json:"model"`
	MaxTokens        int     `json:"max_tokens"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	PresencePenalty  float64 `json:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	InitialPrompt    string  `json:"initial_prompt,omitempty"`
}

// Validate checks the preset's ranges.
func (p *Preset) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("preset title is required")
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", p.MaxTokens)
	}
	if p.Temperature < 0 || p.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", p.Temperature)
	}
	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1, got %g", p.TopP)
	}
	if p.PresencePenalty < -2 || p.PresencePenalty > 2 {
		return fmt.Errorf("presence_penalty must be between -2 and 2, got %g", p.PresencePenalty)
	}
	if p.FrequencyPenalty < -2 || p.FrequencyPenalty > 2 {
		return fmt.Errorf("frequency_penalty must be between -2 and 2, got %g", p.FrequencyPenalty)
	}
	return nil
}

type presetEnvelope struct {
	Version int      `json:"version"`
	Presets []Preset `json:"presets"`
}

// PresetStore keeps presets in the store's "presets" slot.
type PresetStore struct {
	store *Store
}

// Presets returns the preset store backed by s.
func (s *Store) Presets() *PresetStore {
	return &PresetStore{store: s}
}

// List returns every preset in insertion order.
func (p *PresetStore) List(ctx context.Context) ([]Preset, error) {
	raw, ok, err := p.store.GetValue(ctx, slotPresets)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Preset{}, nil
	}

	var env presetEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode presets: %w", err)
	}
	if env.Version > presetsVersion {
		return nil, fmt.Errorf("presets version %d is newer than supported %d", env.Version, presetsVersion)
	}
	if env.Presets == nil {
		env.Presets = []Preset{}
	}
	return env.Presets, nil
}

// Find returns the preset whose id or title (case-insensitive) matches.
func (p *PresetStore) Find(ctx context.Context, idOrTitle string) (*Preset, error) {
	presets, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range presets {
		if presets[i].ID == idOrTitle || strings.EqualFold(presets[i].Title, idOrTitle) {
			return &presets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, idOrTitle)
}

// Save adds or replaces a preset by id. A preset without an id gets one.
func (p *PresetStore) Save(ctx context.Context, preset *Preset) error {
	if err := preset.Validate(); err != nil {
		return err
	}
	if preset.ID == "" {
		preset.ID = util.NewID()
	}

	presets, err := p.List(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range presets {
		if presets[i].ID == preset.ID {
			presets[i] = *preset
			replaced = true
			break
		}
	}
	if !replaced {
		presets = append(presets, *preset)
	}
	return p.write(ctx, presets)
}

// Delete removes the preset with id.
func (p *PresetStore) Delete(ctx context.Context, id string) error {
	presets, err := p.List(ctx)
	if err != nil {
		return err
	}

	out := presets[:0]
	for _, pr := range presets {
		if pr.ID != id {
			out = append(out, pr)
		}
	}
	if len(out) == len(presets) {
		return fmt.Errorf("%w: %s", ErrPresetNotFound, id)
	}
	return p.write(ctx, out)
}

func (p *PresetStore) write(ctx context.Context, presets []Preset) error {
	raw, err := json.Marshal(presetEnvelope{Version: presetsVersion, Presets: presets})
	if err != nil {
		return fmt.Errorf("failed to encode presets: %w", err)
	}
	return p.store.PutValue(ctx, slotPresets, raw)
}
