// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and turns,
// and the static registry of selectable models.
//
// # Key Types
//
//   - Session: a persisted conversation (ordered turns plus title, flags, folder)
//   - Turn: one message attributed to the user, the assistant, or the system
//   - Role: turn role enumeration (user, assistant, system)
//   - ModelDescriptor: static metadata for a model (context size, price, vision)
//
// # Usage
//
//	s := model.NewSession("gpt-4o-mini")
//	s.Append(model.NewTurn(model.RoleUser, "Explain quantum computing"))
//	if s.HasDefaultTitle() {
//	    s.Title = s.DeriveTitle(model.DefaultTitleWords)
//	}
//
// Unknown model ids resolve to the default descriptor instead of failing:
//
//	d := model.Lookup("some-new-model")
//	fmt.Println(d.Name, d.CostString())
package model
