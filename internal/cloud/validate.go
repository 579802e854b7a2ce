// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"net/http"
)

// probePrompt is the trivial prompt sent when validating a credential.
const probePrompt = "Hello"

// Validate reports whether key is accepted by the provider. Every failure,
// whether a precondition, transport problem, or non-200 status, folds to false.
func (c *Client) Validate(ctx context.Context, key string) bool {
	return c.ValidateDetailed(ctx, key) == nil
}

// ValidateDetailed probes the provider with key and returns why the probe
// failed, or nil when the status is exactly 200. The probe asks for a single
// token and is bounded by the validate timeout. Usage is not recorded.
func (c *Client) ValidateDetailed(ctx context.Context, key string) error {
	if err := c.checkPreconditions(key); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.validateTimeout)
	defer cancel()

	reqBody := chatRequest{
		Model:       c.validateModel,
		Messages:    []chatMessage{{Role: "user", Content: probePrompt}},
		MaxTokens:   1,
		Temperature: DefaultTemperature,
	}

	status, body, err := c.post(ctx, "/chat/completions", key, reqBody)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return handleErrorResponse(status, body)
	}
	return nil
}
