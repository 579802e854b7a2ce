// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all CLI commands in neuron.
//
// Commands always return errors; Run decides how to display them and which
// exit code to use.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/neuron/internal/cloud"
	"github.com/jeranaias/neuron/internal/config"
	"github.com/jeranaias/neuron/internal/security"
	"github.com/jeranaias/neuron/internal/session"
	"github.com/jeranaias/neuron/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected API key
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "session", "preset")
	Action  string // Action being performed (e.g., "rename", "delete")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "session", "preset")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrInvalidValue creates an error for a malformed argument.
func ErrInvalidValue(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// =============================================================================
// FRIENDLY MESSAGES
// =============================================================================

// FriendlyError returns the message shown to the user for err. Known
// failures get a hint about what to do next.
func FriendlyError(err error) string {
	var provider *cloud.ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, cloud.ErrMissingCredential):
		return "No API key configured. Run 'neuron setup' or set NEURON_API_KEY."
	case errors.Is(err, cloud.ErrInvalidCredential):
		return "The API key was rejected. Check it with 'neuron validate'."
	case errors.Is(err, cloud.ErrAccessDenied):
		return "The API key does not have access to this model."
	case errors.Is(err, cloud.ErrRateLimited):
		return "Rate limited by the provider. Wait a moment and /retry."
	case errors.Is(err, cloud.ErrNoConnectivity):
		return "No connection to the provider. Check your network or disable offline mode."
	case errors.Is(err, cloud.ErrEmptyHistory), errors.Is(err, session.ErrEmptyInput):
		return "Nothing to send."
	case errors.Is(err, cloud.ErrMalformedResponse):
		return "The provider sent a response neuron could not read."
	case errors.Is(err, session.ErrBusy):
		return "Still waiting for the previous reply."
	case errors.Is(err, session.ErrNothingToRetry):
		return "Nothing to retry: the last message already has a reply."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	case errors.As(err, &provider):
		return fmt.Sprintf("The provider returned an error: %s", provider.Message)
	}
	return err.Error()
}

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// DisplayError writes err in the human or JSON format.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		displayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), FriendlyError(err))
}

func displayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":   FriendlyError(err),
		"detail":  err.Error(),
		"success": false,
	}

	var (
		cmdErr   *CommandError
		valErr   *ValidationError
		notFound *NotFoundError
	)
	switch {
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	case errors.As(err, &valErr):
		output["error_type"] = "validation_error"
		output["field"] = valErr.Field
	case errors.As(err, &notFound):
		output["error_type"] = "not_found_error"
		output["resource"] = notFound.Resource
		output["id"] = notFound.ID
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output)
}

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		valErr    *ValidationError
		notFound  *NotFoundError
		cfgErrs   config.ValidateErrors
		transport *cloud.TransportError
	)
	switch {
	case errors.As(err, &valErr):
		return ExitUsageError
	case errors.As(err, &notFound),
		errors.Is(err, storage.ErrSessionNotFound),
		errors.Is(err, storage.ErrPresetNotFound):
		return ExitNotFoundError
	case errors.As(err, &cfgErrs), errors.Is(err, security.ErrDecryptionFailed):
		return ExitConfigError
	case errors.Is(err, cloud.ErrMissingCredential),
		errors.Is(err, cloud.ErrInvalidCredential),
		errors.Is(err, cloud.ErrAccessDenied):
		return ExitAuthError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, cloud.ErrNoConnectivity), errors.As(err, &transport):
		return ExitNetworkError
	}
	return ExitGeneralError
}
