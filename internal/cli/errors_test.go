// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/neuron/internal/cloud"
	"github.com/jeranaias/neuron/internal/config"
	"github.com/jeranaias/neuron/internal/security"
	"github.com/jeranaias/neuron/internal/session"
	"github.com/jeranaias/neuron/internal/storage"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"missing argument", ErrMissingArgument("question", "neuron ask hi"), ExitUsageError},
		{"not found", &NotFoundError{Resource: "session", ID: "abcd"}, ExitNotFoundError},
		{"session not found", fmt.Errorf("get: %w", storage.ErrSessionNotFound), ExitNotFoundError},
		{"preset not found", storage.ErrPresetNotFound, ExitNotFoundError},
		{"bad config", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}, ExitConfigError},
		{"decrypt", security.ErrDecryptionFailed, ExitConfigError},
		{"missing key", cloud.ErrMissingCredential, ExitAuthError},
		{"rejected key", fmt.Errorf("%w: nope", cloud.ErrInvalidCredential), ExitAuthError},
		{"timeout", context.DeadlineExceeded, ExitTimeoutError},
		{"offline", cloud.ErrNoConnectivity, ExitNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestFriendlyError(t *testing.T) {
	assert.Empty(t, FriendlyError(nil))
	assert.Contains(t, FriendlyError(cloud.ErrMissingCredential), "neuron setup")
	assert.Contains(t, FriendlyError(fmt.Errorf("%w: Incorrect API key", cloud.ErrInvalidCredential)), "rejected")
	assert.Contains(t, FriendlyError(cloud.ErrRateLimited), "/retry")
	assert.Contains(t, FriendlyError(session.ErrBusy), "previous reply")
	assert.Contains(t, FriendlyError(&cloud.ProviderError{Status: 500, Message: "overloaded"}), "overloaded")
	assert.Equal(t, "plain failure", FriendlyError(errors.New("plain failure")))
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewCommandError("session", "export", "could not write file", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "session export failed: could not write file: disk full", err.Error())
}

func TestDisplayError_JSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, &NotFoundError{Resource: "preset", ID: "terse"}, true)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "not_found_error", out["error_type"])
	assert.Equal(t, "preset", out["resource"])
	assert.Equal(t, false, out["success"])
}

func TestDisplayError_Human(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, cloud.ErrNoConnectivity, false)
	assert.Contains(t, buf.String(), "No connection to the provider")

	buf.Reset()
	DisplayError(&buf, nil, false)
	assert.Empty(t, buf.String())
}
