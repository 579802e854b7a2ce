// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to an OpenAI-compatible chat-completions API.
//
// A Client performs three operations: Complete sends a conversation and
// returns the assistant reply, Validate probes whether a credential is
// accepted, and ListModels fetches the provider's model catalogue.
//
// # Key Types
//
//   - Client: HTTP client, constructed with NewClient and functional options
//   - Params: generation parameters (model, max tokens, temperature, penalties)
//   - Reply: assistant text plus token usage and estimated cost
//   - ProviderError: non-200 status that is not one of the named failures
//   - TransportError: DNS, TLS, timeout, or connection failure
//
// # Usage
//
//	client := cloud.NewClient(
//	    cloud.WithConnectivity(monitor),
//	    cloud.WithUsage(usage),
//	)
//	reply, err := client.Complete(ctx, session.Turns, apiKey, cloud.Params{Model: "gpt-4"})
//	switch {
//	case errors.Is(err, cloud.ErrInvalidCredential):
//	    // ask for a new key
//	case err != nil:
//	    // show err
//	}
//
// # Security
//
// API keys are never logged. Request logging records only method, path,
// status, and duration. Response bodies are capped at MaxResponseSize.
//
// Failures are terminal: the client never retries on its own.
package cloud
