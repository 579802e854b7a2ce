// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Precondition failures. No request is sent when one of these is returned.
var (
	// ErrEmptyHistory indicates Complete was called with no turns.
	ErrEmptyHistory = errors.New("conversation has no turns")

	// ErrMissingCredential indicates the API key is blank.
	ErrMissingCredential = errors.New("API key not configured")

	// ErrNoConnectivity indicates the connectivity signal reports offline.
	ErrNoConnectivity = errors.New("no network connection")
)

// Provider failures mapped from HTTP status codes.
var (
	// ErrInvalidCredential indicates HTTP 401.
	ErrInvalidCredential = errors.New("invalid API key")

	// ErrAccessDenied indicates HTTP 403.
	ErrAccessDenied = errors.New("access denied")

	// ErrRateLimited indicates HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedResponse indicates a 200 response without the expected
	// choices[0].message.content structure.
	ErrMalformedResponse = errors.New("malformed response")
)

// ProviderError is any non-200 status without a dedicated sentinel.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("provider error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// TransportError wraps a failure below HTTP: DNS, TLS, timeout, refused
// connection, or a body that could not be read.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// apiErrorResponse is the provider's error envelope.
type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Type    string          `json:"type"`
		Message string          `json:"message"`
	} `json:"error"`
}

// handleErrorResponse maps a non-200 status to an error value.
func handleErrorResponse(statusCode int, body []byte) error {
	var code, message string

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		message = apiErr.Error.Message
		code = strings.Trim(string(apiErr.Error.Code), `"`)
		if code == "" || code == "null" {
			code = apiErr.Error.Type
		}
	}

	var sentinel error
	switch statusCode {
	case http.StatusUnauthorized:
		sentinel = ErrInvalidCredential
	case http.StatusForbidden:
		sentinel = ErrAccessDenied
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	default:
		return &ProviderError{Status: statusCode, Code: code, Message: message}
	}

	if message != "" {
		return fmt.Errorf("%w: %s", sentinel, message)
	}
	return sentinel
}
