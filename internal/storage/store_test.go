// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/neuron/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(id, title string, turns ...string) *model.Session {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := &model.Session{
		ID:        id,
		CreatedAt: at,
		UpdatedAt: at,
		Title:     title,
		Turns:     []model.Turn{},
		ModelID:   "gpt-4",
	}
	for i, text := range turns {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		s.Turns = append(s.Turns, model.Turn{ID: id + "-" + string(rune('a'+i)), Role: role, Content: text, CreatedAt: at})
	}
	return s
}

func ids(sessions []model.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

// =============================================================================
// SESSION STORE TESTS
// =============================================================================

func TestLoadAll_Empty(t *testing.T) {
	s := openTestStore(t)

	sessions, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestUpsert_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := testSession("s1", "Quantum", "hello", "hi there")
	in.Pinned = true
	in.Folder = "physics"
	require.NoError(t, s.Upsert(ctx, in))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, *in, *got)
}

func TestUpsert_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := testSession("s1", "One", "hello")
	require.NoError(t, s.Upsert(ctx, sess))
	first, err := s.LoadAll(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, sess))
	second, err := s.LoadAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsert_InsertsAtFrontAndKeepsPosition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testSession("a", "A")))
	require.NoError(t, s.Upsert(ctx, testSession("b", "B")))
	require.NoError(t, s.Upsert(ctx, testSession("c", "C")))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))

	// Replacing an existing session keeps its slot.
	require.NoError(t, s.Upsert(ctx, testSession("a", "A renamed")))
	all, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))
	assert.Equal(t, "A renamed", all[2].Title)
}

func TestUpsert_RejectsMissingID(t *testing.T) {
	s := openTestStore(t)
	err := s.Upsert(context.Background(), testSession("", "x"))
	assert.Error(t, err)
}

func TestSaveAll_ReplacesSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testSession("old", "Old")))
	set := []model.Session{*testSession("x", "X"), *testSession("y", "Y")}
	require.NoError(t, s.SaveAll(ctx, set))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids(all))
	assert.Equal(t, set, all)
}

// rawRows returns the stored rows in list order.
func rawRows(t *testing.T, s *Store) []rawRecord {
	t.Helper()
	rows, err := s.db.Query("SELECT id, version, data FROM sessions ORDER BY position ASC, id ASC")
	require.NoError(t, err)
	defer rows.Close()

	var out []rawRecord
	for rows.Next() {
		var r rawRecord
		require.NoError(t, rows.Scan(&r.id, &r.version, &r.data))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestSaveAll_OfLoadAllIsNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testSession("a", "A", "hello", "hi")
	a.Pinned = true
	require.NoError(t, s.Upsert(ctx, a))
	b := testSession("b", "B", "question")
	b.Folder = "work"
	require.NoError(t, s.Upsert(ctx, b))

	legacy := `{"id":"L1","title":"Old chat","messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}],"isArchived":true}`
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, position, version, data, updated_at) VALUES (?, ?, ?, ?, ?)",
		"L1", 5, 1, []byte(legacy), 0)
	require.NoError(t, err)

	first, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "L1"}, ids(first))

	again, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again, "loading a legacy row twice must give the same session")

	require.NoError(t, s.SaveAll(ctx, first))
	second, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored := rawRows(t, s)
	require.NoError(t, s.SaveAll(ctx, second))
	assert.Equal(t, stored, rawRows(t, s))
}

func TestLegacyTurnIDsAreStable(t *testing.T) {
	lc := legacyChat{ID: "L1"}
	lc.Messages = append(lc.Messages, struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{"user", "hi"})

	x, err := lc.toSession(referenceDate)
	require.NoError(t, err)
	y, err := lc.toSession(referenceDate)
	require.NoError(t, err)
	assert.Equal(t, x, y)
	assert.Equal(t, "L1-0", x.Turns[0].ID)
	assert.True(t, x.CreatedAt.Equal(referenceDate))
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testSession("a", "A")))
	require.NoError(t, s.Upsert(ctx, testSession("b", "B")))
	require.NoError(t, s.Delete(ctx, "a"))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(all))

	assert.NoError(t, s.Delete(ctx, "missing"), "deleting an unknown id is a no-op")

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLoadAll_SkipsUndecodableRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testSession("good", "Good", "hello")))
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, position, version, data, updated_at) VALUES (?, ?, ?, ?, ?)",
		"garbled", 10, RecordVersion, []byte("{not json"), 0)
	require.NoError(t, err)
	_, err = s.db.Exec(
		"INSERT INTO sessions (id, position, version, data, updated_at) VALUES (?, ?, ?, ?, ?)",
		"future", 11, RecordVersion+1, []byte(`{"id":"future"}`), 0)
	require.NoError(t, err)

	all, err := s.LoadAll(ctx)
	assert.Equal(t, []string{"good"}, ids(all))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	require.Len(t, derr.Skipped, 2)
	assert.Equal(t, "garbled", derr.Skipped[0].ID)
	assert.Equal(t, "future", derr.Skipped[1].ID)
}

func TestLoadAll_MigratesLegacyRecord(t *testing.T) {
	s := openTestStore(t)

	legacy := `{"id":"L1","date":0,"title":"Old chat","messages":[{"role":"user","content":"hi"}],"isArchived":true,"folder":"misc"}`
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, position, version, data, updated_at) VALUES (?, ?, ?, ?, ?)",
		"L1", 0, 1, []byte(legacy), 0)
	require.NoError(t, err)

	all, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Old chat", all[0].Title)
	assert.True(t, all[0].Archived)
	assert.Equal(t, "misc", all[0].Folder)
	assert.True(t, all[0].CreatedAt.Equal(referenceDate))
	require.Len(t, all[0].Turns, 1)
	assert.Equal(t, model.RoleUser, all[0].Turns[0].Role)
}

func TestUpsert_ConcurrentWritersDoNotLoseSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "s" + string(rune('A'+i))
			assert.NoError(t, s.Upsert(ctx, testSession(id, id)))
		}(i)
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, testSession("keep", "Keep", "hello")))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "Keep", got.Title)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("UPDATE metadata SET value = '99' WHERE key = 'schema_version'")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Upsert(context.Background(), testSession("a", "A")), ErrClosed)
	assert.NoError(t, s.Close(), "double close is harmless")
}

// =============================================================================
// KV AND PRESET TESTS
// =============================================================================

func TestKV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutValue(ctx, "k", []byte("v1")))
	require.NoError(t, s.PutValue(ctx, "k", []byte("v2")))
	v, ok, err := s.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, s.DeleteValue(ctx, "k"))
	_, ok, err = s.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPresets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	presets := s.Presets()

	list, err := presets.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	p := &Preset{Title: "Poet", Model: "gpt-4", MaxTokens: 200, Temperature: 0.9, InitialPrompt: "Write a haiku"}
	require.NoError(t, presets.Save(ctx, p))
	require.NotEmpty(t, p.ID)

	p.Temperature = 0.5
	require.NoError(t, presets.Save(ctx, p))

	list, err = presets.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0.5, list[0].Temperature)

	found, err := presets.Find(ctx, "poet")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	require.NoError(t, presets.Delete(ctx, p.ID))
	assert.ErrorIs(t, presets.Delete(ctx, p.ID), ErrPresetNotFound)
}

func TestPreset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		preset  Preset
		wantErr bool
	}{
		{"valid", Preset{Title: "ok", Temperature: 0.7}, false},
		{"no title", Preset{}, true},
		{"temperature too high", Preset{Title: "x", Temperature: 1.5}, true},
		{"top_p negative", Preset{Title: "x", TopP: -0.1}, true},
		{"penalty out of range", Preset{Title: "x", PresencePenalty: 3}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.preset.Validate()
			assert.Equal(t, tc.wantErr, err != nil, "Validate() = %v", err)
		})
	}
}

// =============================================================================
// LEGACY IMPORT TESTS
// =============================================================================

const legacyBlob = `[
	{"id": "A", "date": 700000000, "title": "First", "messages": [{"role": "user", "content": "hello"}, {"role": "assistant", "content": "hi"}], "isArchived": false, "folder": null},
	{"id": "B", "date": "2024-01-02T03:04:05Z", "title": "Second", "messages": [], "isArchived": true, "folder": "work"},
	{"id": "C", "date": 0, "title": "Broken", "messages": [{"role": "robot", "content": "beep"}]}
]`

func TestImportLegacy(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.ImportLegacy(ctx, []byte(legacyBlob))
	assert.Equal(t, 2, n)

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	require.Len(t, derr.Skipped, 1)
	assert.Equal(t, "C", derr.Skipped[0].ID)

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(all))
	assert.Len(t, all[0].Turns, 2)
	assert.True(t, all[1].Archived)
	assert.Equal(t, "work", all[1].Folder)
	assert.Equal(t, 2024, all[1].CreatedAt.Year())

	at, err := s.LegacyImportedAt(ctx)
	require.NoError(t, err)
	assert.False(t, at.IsZero())
}

func TestImportLegacy_NotArray(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ImportLegacy(context.Background(), []byte(`{"id": "x"}`))
	assert.Error(t, err)

	n, err := s.ImportLegacy(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestFilter_Apply(t *testing.T) {
	a := *testSession("a", "Quantum physics", "explain qubits to me please")
	b := *testSession("b", "Cooking", "pasta")
	c := *testSession("c", "Archived notes", "old stuff here")
	c.Archived = true
	d := *testSession("d", "Pinned", "something pinned for later")
	d.Pinned = true
	d.Folder = "work"
	all := []model.Session{a, b, c, d}

	assert.Equal(t, []string{"a", "b", "d"}, ids(Filter{}.Apply(all)))
	assert.Equal(t, []string{"c"}, ids(Filter{Archived: true}.Apply(all)))
	assert.Equal(t, []string{"a"}, ids(Filter{Query: "QUBITS"}.Apply(all)))
	assert.Equal(t, []string{"a", "d"}, ids(Filter{MinWords: 3}.Apply(all)))
	assert.Equal(t, []string{"d"}, ids(Filter{Folder: "WORK"}.Apply(all)))
	assert.Equal(t, []string{"d", "a", "b"}, ids(Filter{PinnedFirst: true}.Apply(all)))
	assert.Equal(t, []string{"work"}, Folders(all))
}

func TestFormatSessionList(t *testing.T) {
	assert.Equal(t, "No sessions found.", FormatSessionList(nil))

	out := FormatSessionList([]model.Session{*testSession("0123456789", "Hello world", "hi")})
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "Hello world")
	assert.True(t, strings.HasPrefix(out, "#"))
}

func TestDecodeError_Message(t *testing.T) {
	d := &DecodeError{}
	assert.NoError(t, d.orNil())

	d.add("x", 2, errors.New("bad"))
	assert.Contains(t, d.Error(), "skipped session x")
	d.add("y", 3, errors.New("worse"))
	assert.Contains(t, d.Error(), "skipped 2 unreadable sessions")
}
