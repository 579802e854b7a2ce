// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline provides the reachability signal consulted before every
// provider request, plus the user-selected offline mode.
//
// # Key Types
//
//   - Connectivity: anything that can answer "is the network up"
//   - Monitor: live signal fed by a periodic TCP dial probe
//   - Static: fixed answer, for tests and one-shot commands
//
// # Usage
//
//	mon := offline.NewMonitor(cfg.API.BaseURL, 30*time.Second)
//	mon.SetOfflineMode(cfg.Network.OfflineMode)
//	go mon.Start(ctx)
//
//	client := cloud.NewClient(cloud.WithConnectivity(mon))
//
// In offline mode only loopback providers are considered reachable, so a
// locally hosted OpenAI-compatible server keeps working.
package offline
