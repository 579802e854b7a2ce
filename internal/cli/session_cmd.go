// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Saved chat management for neuron CLI.
//
// Command: session [subcommand]
// Aliases: sessions, s
//
// Subcommands:
//   list (default)          List chats
//   show REF                Print a chat transcript
//   rename REF TITLE        Rename a chat
//   pin REF                 Toggle pinned
//   archive REF [--undo]    Move a chat to (or out of) the archive
//   folder REF [NAME]       Set or clear the folder label
//   folders                 List folder labels in use
//   export REF [--format md|json|html] [--output PATH]
//   delete REF [--yes]      Delete a chat
//
// REF is a session id or a unique prefix of one (at least 4 characters).
//
// List flags:
//   --query TEXT       Match title or message text
//   --archived         Show archived chats
//   --folder NAME      Only chats in this folder
//   --min-words N      Hide chats shorter than N words (default chat.min_word_count)

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/neuron/internal/export"
	"github.com/jeranaias/neuron/internal/model"
	"github.com/jeranaias/neuron/internal/session"
	"github.com/jeranaias/neuron/internal/storage"
	"github.com/jeranaias/neuron/internal/util"
)

// minRefPrefix is the shortest id prefix accepted as a session reference.
const minRefPrefix = 4

// RunSession handles "neuron session".
func (a *App) RunSession(ctx context.Context) error {
	p := NewArgParser(a.Args.Raw, "archived", "undo", "yes", "y")

	st, err := a.Store()
	if err != nil {
		return err
	}

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "list", "ls":
		return a.sessionList(ctx, st, p)
	case "folders":
		return a.sessionFolders(ctx, st)
	case "show", "view":
		return a.sessionShow(ctx, st, p)
	case "export":
		return a.sessionExport(ctx, st, p)
	case "rename", "pin", "archive", "folder", "delete", "rm":
		return a.sessionMutate(ctx, st, sub, p)
	default:
		return ErrInvalidValue("subcommand", sub, "expected list, show, rename, pin, archive, folder, folders, export, or delete")
	}
}

// loadSessions loads every session, warning about records that could not
// be decoded.
func (a *App) loadSessions(ctx context.Context, st *storage.Store) ([]model.Session, error) {
	sessions, err := st.LoadAll(ctx)
	var derr *storage.DecodeError
	if errors.As(err, &derr) {
		fmt.Fprintf(a.Err, "%s %v\n", WarningStyle.Render("[WARN]"), derr)
		return sessions, nil
	}
	return sessions, err
}

// resolveSession finds the session named by ref: an exact id or a unique
// id prefix.
func (a *App) resolveSession(ctx context.Context, st *storage.Store, ref string) (*model.Session, error) {
	if ref == "" {
		return nil, ErrMissingArgument("session", "neuron session show 3f2a")
	}
	if sess, err := st.Get(ctx, ref); err == nil {
		return sess, nil
	} else if !errors.Is(err, storage.ErrSessionNotFound) {
		return nil, err
	}

	if len(ref) < minRefPrefix {
		return nil, &NotFoundError{Resource: "session", ID: ref}
	}
	sessions, err := a.loadSessions(ctx, st)
	if err != nil {
		return nil, err
	}

	var found *model.Session
	for i := range sessions {
		if strings.HasPrefix(sessions[i].ID, ref) {
			if found != nil {
				return nil, ErrInvalidValue("session", ref, "prefix matches more than one session")
			}
			found = &sessions[i]
		}
	}
	if found == nil {
		return nil, &NotFoundError{Resource: "session", ID: ref}
	}
	return found, nil
}

func (a *App) sessionList(ctx context.Context, st *storage.Store, p *ArgParser) error {
	sessions, err := a.loadSessions(ctx, st)
	if err != nil {
		return err
	}

	f := storage.Filter{
		Query:       p.Flag("query"),
		Archived:    p.BoolFlag("archived"),
		Folder:      p.Flag("folder"),
		MinWords:    p.FlagIntOrDefault("min-words", a.Config.Get().Chat.MinWordCount),
		PinnedFirst: true,
	}
	shown := f.Apply(sessions)

	if a.Args.JSON {
		type row struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Turns     int    `json:"turns"`
			Words     int    `json:"words"`
			UpdatedAt string `json:"updated_at"`
			Pinned    bool   `json:"pinned,omitempty"`
			Folder    string `json:"folder,omitempty"`
			Preview   string `json:"preview,omitempty"`
		}
		rows := make([]row, 0, len(shown))
		for i := range shown {
			s := &shown[i]
			rows = append(rows, row{
				ID: s.ID, Title: s.Title, Turns: len(s.Turns), Words: s.WordCount(),
				UpdatedAt: s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
				Pinned:    s.Pinned, Folder: s.Folder, Preview: s.LastPreview(80),
			})
		}
		return writeJSON(a.Out, rows)
	}

	fmt.Fprint(a.Out, storage.FormatSessionList(shown))
	if len(shown) > 0 {
		fmt.Fprintln(a.Out)
	}
	if hidden := len(sessions) - len(shown); hidden > 0 && !a.Args.Quiet {
		fmt.Fprintln(a.Out, DimStyle.Render(fmt.Sprintf("%d more not shown (archived, filtered, or short)", hidden)))
	}
	return nil
}

func (a *App) sessionFolders(ctx context.Context, st *storage.Store) error {
	sessions, err := a.loadSessions(ctx, st)
	if err != nil {
		return err
	}
	folders := storage.Folders(sessions)
	if a.Args.JSON {
		if folders == nil {
			folders = []string{}
		}
		return writeJSON(a.Out, folders)
	}
	for _, f := range folders {
		fmt.Fprintln(a.Out, f)
	}
	return nil
}

func (a *App) sessionShow(ctx context.Context, st *storage.Store, p *ArgParser) error {
	sess, err := a.resolveSession(ctx, st, p.Positional(1))
	if err != nil {
		return err
	}
	if a.Args.JSON {
		data, err := sess.ExportJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.Out, string(data))
		return err
	}

	cfg := a.Config.Get()
	renderer := NewRenderer(cfg.UI.Theme, cfg.UI.Markdown)

	fmt.Fprintln(a.Out, TitleStyle.Render(sess.Title))
	fmt.Fprintln(a.Out, RenderKV("ID", sess.ID))
	fmt.Fprintln(a.Out, RenderKV("Model", model.Lookup(sess.ModelID).Name))
	fmt.Fprintln(a.Out, RenderKV("Created", sess.CreatedAt.Local().Format("2006-01-02 15:04")))
	if sess.Folder != "" {
		fmt.Fprintln(a.Out, RenderKV("Folder", sess.Folder))
	}
	fmt.Fprintln(a.Out, RenderKV("Words", fmt.Sprintf("%d (~%d tokens)", sess.WordCount(), sess.EstimateTokens())))
	fmt.Fprintln(a.Out, RenderSeparatorAdaptive())

	for _, t := range sess.Turns {
		label := UserStyle.Render(t.Role.DisplayName())
		if t.Role == model.RoleAssistant {
			label = AssistantStyle.Render(t.Role.DisplayName())
		}
		fmt.Fprintf(a.Out, "%s %s\n", label, DimStyle.Render(t.CreatedAt.Local().Format("15:04")))
		if t.Role == model.RoleAssistant {
			fmt.Fprint(a.Out, renderer.Render(t.Content))
		} else {
			fmt.Fprintln(a.Out, WrapText(t.Content, 0))
		}
		fmt.Fprintln(a.Out)
	}
	return nil
}

func (a *App) sessionExport(ctx context.Context, st *storage.Store, p *ArgParser) error {
	sess, err := a.resolveSession(ctx, st, p.Positional(1))
	if err != nil {
		return err
	}

	format := p.FlagOrDefault("format", "md")
	exp, err := export.ForFormat(format, a.exportOptions())
	if err != nil {
		return ErrInvalidValue("format", format, "expected md, json, or html")
	}
	data, err := exp.Export(sess)
	if err != nil {
		return NewCommandError("session", "export", "could not render chat", err)
	}

	out := p.Flag("output")
	if out == "" {
		_, err := a.Out.Write(data)
		return err
	}
	path, err := ValidateOutputPath(out)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return NewCommandError("session", "export", "could not write file", err)
	}
	if !a.Args.Quiet {
		fmt.Fprintf(a.Err, "%s exported to %s\n", RenderStatus("ok"), path)
	}
	return nil
}

// sessionMutate applies an edit through a conversation so titles, state,
// and persistence follow the same rules as in chat.
func (a *App) sessionMutate(ctx context.Context, st *storage.Store, sub string, p *ArgParser) error {
	sess, err := a.resolveSession(ctx, st, p.Positional(1))
	if err != nil {
		return err
	}

	conv := session.New(sess, a.Client, st, a.SessionConfig(a.Config.Get()))
	defer conv.Close(context.WithoutCancel(ctx))

	switch sub {
	case "rename":
		title := strings.TrimSpace(JoinPositionalArgs(p, 2))
		if title == "" {
			return ErrMissingArgument("title", `neuron session rename 3f2a "Trip planning"`)
		}
		err = conv.Rename(ctx, title)
	case "pin":
		var pinned bool
		pinned, err = conv.TogglePin(ctx)
		if err == nil && !a.Args.Quiet {
			fmt.Fprintf(a.Out, "pinned: %t\n", pinned)
		}
	case "archive":
		err = conv.SetArchived(ctx, !p.BoolFlag("undo"))
	case "folder":
		err = conv.SetFolder(ctx, JoinPositionalArgs(p, 2))
	case "delete", "rm":
		if !p.BoolFlag("yes") && !p.BoolFlag("y") {
			if err := RequiresTTY("confirm deletion"); err != nil {
				return ErrMissingArgument("yes", "neuron session delete 3f2a --yes")
			}
			r := bufio.NewReader(os.Stdin)
			if !confirm(a.Out, r, fmt.Sprintf("Delete %q?", sess.Title), false) {
				fmt.Fprintln(a.Out, "Cancelled.")
				return nil
			}
		}
		err = conv.Delete(ctx)
	}
	if err != nil {
		return err
	}
	if !a.Args.Quiet {
		fmt.Fprintf(a.Out, "%s %s %s\n", RenderStatus("ok"), sub, sess.ID)
	}
	return nil
}

// exportOptions maps the configured UI theme onto the HTML page theme.
func (a *App) exportOptions() *export.Options {
	opts := export.DefaultOptions()
	if a.Config.Get().UI.Theme == "light" {
		opts.Theme = "light"
	}
	return opts
}
