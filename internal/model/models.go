// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// MODEL DESCRIPTOR TYPE
// =============================================================================

// Category groups models by price and capability.
type Category string

const (
	CategoryStandard Category = "standard"
	CategoryPremium  Category = "premium"
)

// ModelDescriptor is static metadata about a selectable model.
type ModelDescriptor struct {
	// ID is the identifier sent to the provider
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// ContextSize is the context window in tokens
	ContextSize int `json:"context_size"`

	// PricePer1K is the list price per 1000 tokens in dollars
	PricePer1K float64 `json:"price_per_1k"`

	// Vision reports whether the model accepts image input
	Vision bool `json:"vision"`

	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// DefaultModelID is the descriptor Lookup falls back to.
const DefaultModelID = "gpt-3.5-turbo"

var registry = map[string]ModelDescriptor{
	"gpt-3.5-turbo": {
		ID:          "gpt-3.5-turbo",
		Name:        "GPT-3.5 Turbo",
		ContextSize: 4096,
		PricePer1K:  0.002,
		Category:    CategoryStandard,
		Description: "Fast and inexpensive for everyday chat",
	},
	"gpt-4": {
		ID:          "gpt-4",
		Name:        "GPT-4",
		ContextSize: 8192,
		PricePer1K:  0.06,
		Category:    CategoryPremium,
		Description: "Stronger reasoning for complex prompts",
	},
	"gpt-4-turbo": {
		ID:          "gpt-4-turbo",
		Name:        "GPT-4 Turbo",
		ContextSize: 128000,
		PricePer1K:  0.01,
		Vision:      true,
		Category:    CategoryPremium,
		Description: "Long context GPT-4 with image input",
	},
	"gpt-4-vision-preview": {
		ID:          "gpt-4-vision-preview",
		Name:        "GPT-4 Vision",
		ContextSize: 128000,
		PricePer1K:  0.01,
		Vision:      true,
		Category:    CategoryPremium,
		Description: "Preview model with image understanding",
	},
	"gpt-4o": {
		ID:          "gpt-4o",
		Name:        "GPT-4o",
		ContextSize: 128000,
		PricePer1K:  0.0025,
		Vision:      true,
		Category:    CategoryPremium,
		Description: "Fast multimodal model with vision",
	},
	"gpt-4o-mini": {
		ID:          "gpt-4o-mini",
		Name:        "GPT-4o Mini",
		ContextSize: 128000,
		PricePer1K:  0.00015,
		Vision:      true,
		Category:    CategoryStandard,
		Description: "Cost-effective for simple tasks",
	},
}

// FallbackIDs is used when the provider's model list cannot be fetched.
var FallbackIDs = []string{
	"gpt-3.5-turbo",
	"gpt-4",
	"gpt-4-turbo",
	"gpt-4o",
	"gpt-4o-mini",
}

// Lookup returns the descriptor for id. Unknown ids resolve to the default
// descriptor; use Known to tell the two apart.
func Lookup(id string) ModelDescriptor {
	if d, ok := registry[strings.TrimSpace(id)]; ok {
		return d
	}
	return registry[DefaultModelID]
}

// Known reports whether id is in the registry.
func Known(id string) bool {
	_, ok := registry[strings.TrimSpace(id)]
	return ok
}

// All returns every registered descriptor sorted by id.
func All() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory returns the registered descriptors in category c, sorted by id.
func ByCategory(c Category) []ModelDescriptor {
	var out []ModelDescriptor
	for _, d := range All() {
		if d.Category == c {
			out = append(out, d)
		}
	}
	return out
}

// =============================================================================
// DESCRIPTOR METHODS
// =============================================================================

// CostString returns a formatted cost string.
func (d ModelDescriptor) CostString() string {
	if d.PricePer1K == 0 {
		return "Free"
	}
	if d.PricePer1K < 0.001 {
		return fmt.Sprintf("$%.5f/1K", d.PricePer1K)
	}
	return fmt.Sprintf("$%.4f/1K", d.PricePer1K)
}

// ContextString returns a formatted context window string.
func (d ModelDescriptor) ContextString() string {
	if d.ContextSize >= 1000000 {
		return fmt.Sprintf("%.1fM tokens", float64(d.ContextSize)/1000000)
	}
	if d.ContextSize >= 1000 {
		return fmt.Sprintf("%dK tokens", d.ContextSize/1000)
	}
	return fmt.Sprintf("%d tokens", d.ContextSize)
}

// CapabilitiesString returns a comma-separated list of capabilities inferred
// from the descriptor.
func (d ModelDescriptor) CapabilitiesString() string {
	caps := []string{}

	if d.ContextSize >= 100000 {
		caps = append(caps, "Long context")
	} else if d.ContextSize >= 32000 {
		caps = append(caps, "Extended context")
	}
	if d.Vision {
		caps = append(caps, "Vision")
	}
	if d.PricePer1K > 0 && d.PricePer1K < 0.001 {
		caps = append(caps, "Low cost")
	}
	if d.Category == CategoryPremium {
		caps = append(caps, "Complex reasoning")
	}

	if len(caps) == 0 {
		return "General purpose"
	}
	return strings.Join(caps, ", ")
}
