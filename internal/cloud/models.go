// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jeranaias/neuron/internal/model"
)

// ModelFamily is the substring a model id must contain to be listed.
const ModelFamily = "gpt"

type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// ListModels fetches the provider's catalogue and returns the ids that
// belong to ModelFamily, sorted alphabetically.
func (c *Client) ListModels(ctx context.Context, key string) ([]string, error) {
	if err := c.checkPreconditions(key); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	status, body, err := c.do(ctx, req, key)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, handleErrorResponse(status, body)
	}

	var resp modelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		if strings.Contains(m.ID, ModelFamily) {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// AvailableModels returns the remote list, or a copy of model.FallbackIDs
// when the list cannot be fetched or is empty.
func (c *Client) AvailableModels(ctx context.Context, key string) []string {
	ids, err := c.ListModels(ctx, key)
	if err != nil || len(ids) == 0 {
		if err != nil {
			c.logger.Printf("model list unavailable, using fallback: %v", err)
		}
		return append([]string(nil), model.FallbackIDs...)
	}
	return ids
}
