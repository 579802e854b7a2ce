// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates one open chat: it owns the in-memory session,
// sends turns through a Completer, and persists through a Store.
//
// # Key Types
//
//   - Conversation: the open chat and its Idle / AwaitingReply / Error state
//   - Completer: anything that turns a history into a reply (cloud.Client)
//   - Store: where sessions are saved (storage.Store)
//   - PersistenceError: a save that failed after an in-memory change
//
// # Usage
//
//	conv := session.New(sess, client, store, session.DefaultConfig())
//	defer conv.Close(context.Background())
//
//	turn, err := conv.Send(ctx, "Explain quantum computing")
//	if errors.Is(err, session.ErrBusy) {
//	    // a reply is still pending
//	}
//
// # Ordering
//
// Only one send per conversation may be in flight. A second Send while a
// reply is pending returns ErrBusy, so turns always alternate in the order
// they were issued. Close cancels a pending request and waits for it.
package session
