// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry tracks token usage and estimated spend for neuron.
//
// # Key Types
//
//   - UsageCounter: process-lifetime token and cost totals
//   - Snapshot: point-in-time copy of the counter for display
//
// # Usage
//
//	usage := telemetry.NewUsageCounter(telemetry.DefaultRatePer1K)
//	delta := usage.Record(reply.TotalTokens)
//	fmt.Printf("This reply: $%.4f, total: $%.4f\n", delta, usage.Cost())
//
// # Privacy
//
// Totals live in memory only. Prompt and reply content is never recorded.
package telemetry
