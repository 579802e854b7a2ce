// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single-question command for neuron CLI.
//
// Command: ask
// Short:   Ask one question and print the reply
//
// Examples:
//   neuron ask "What is a goroutine?"
//   neuron ask --preset terse "Summarise RFC 9110"
//   git diff | neuron ask "Review this diff"
//   neuron ask --save "Plan a trip to Lisbon"
//
// Flags:
//   --system TEXT    System prompt for this question
//   --preset NAME    Apply a saved preset
//   --save           Keep the exchange as a saved session
//   --raw            Print the reply without markdown rendering

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jeranaias/neuron/internal/config"
	"github.com/jeranaias/neuron/internal/model"
	"github.com/jeranaias/neuron/internal/session"
	"github.com/jeranaias/neuron/internal/storage"
)

// maxStdinInput caps piped input.
const maxStdinInput = 1 << 20

// discardStore satisfies session.Store for conversations that are never
// saved.
type discardStore struct{}

func (discardStore) Upsert(context.Context, *model.Session) error { return nil }
func (discardStore) Delete(context.Context, string) error         { return nil }

// RunAsk handles "neuron ask".
func (a *App) RunAsk(ctx context.Context) (err error) {
	p := NewArgParser(a.Args.Raw, "save", "raw")

	question := strings.TrimSpace(JoinPositionalArgs(p, 0))
	piped, err := a.readPiped()
	if err != nil {
		return err
	}
	switch {
	case question == "" && piped == "":
		return ErrMissingArgument("question", `neuron ask "What is a goroutine?"`)
	case question == "":
		question = piped
	case piped != "":
		question = question + "\n\n" + piped
	}

	cfg := a.Config.Get().Clone()
	if name := p.Flag("preset"); name != "" {
		opening, err := a.applyPreset(ctx, cfg, name)
		if err != nil {
			return err
		}
		if opening != "" {
			question = opening + "\n\n" + question
		}
	}
	if sys := p.Flag("system"); sys != "" {
		cfg.Generation.SystemPrompt = sys
	}

	var store session.Store = discardStore{}
	if p.BoolFlag("save") {
		st, err := a.Store()
		if err != nil {
			return err
		}
		store = st
	}

	sc := a.SessionConfig(cfg)
	sc.AutoSave = p.BoolFlag("save")
	conv := session.New(model.NewSession(cfg.Generation.Model), a.Client, store, sc)
	defer func() {
		cerr := conv.Close(context.WithoutCancel(ctx))
		switch {
		case cerr == nil:
		case err == nil:
			err = cerr
		default:
			fmt.Fprintf(a.Err, "%s %v\n", WarningStyle.Render("[WARN]"), cerr)
		}
	}()

	a.probe(ctx)
	before := a.Usage.Snapshot()

	reqCtx, cancel := requestContext(ctx)
	defer cancel()
	turn, err := conv.Send(reqCtx, question)
	if turn == nil {
		return err
	}

	if a.Args.JSON {
		after := a.Usage.Snapshot()
		return writeJSON(a.Out, map[string]interface{}{
			"session_id": conv.ID(),
			"model":      cfg.Generation.Model,
			"reply":      turn.Content,
			"tokens":     after.Tokens - before.Tokens,
			"cost":       after.Cost - before.Cost,
		})
	}

	renderer := NewRenderer(cfg.UI.Theme, cfg.UI.Markdown && !p.BoolFlag("raw"))
	fmt.Fprint(a.Out, renderer.Render(turn.Content))

	if !a.Args.Quiet {
		after := a.Usage.Snapshot()
		fmt.Fprintln(a.Err, DimStyle.Render(fmt.Sprintf("%s  %d tokens  ~$%.4f",
			model.Lookup(cfg.Generation.Model).Name,
			after.Tokens-before.Tokens, after.Cost-before.Cost)))
	}
	// A failed save after a successful reply is still reported.
	return err
}

// readPiped returns stdin when it is not a terminal.
func (a *App) readPiped() (string, error) {
	if a.In == nil {
		return "", nil
	}
	if f, ok := a.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(a.In, maxStdinInput))
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// applyPreset copies a preset's generation parameters into cfg and returns
// its opening prompt.
func (a *App) applyPreset(ctx context.Context, cfg *config.Config, name string) (string, error) {
	st, err := a.Store()
	if err != nil {
		return "", err
	}
	preset, err := st.Presets().Find(ctx, name)
	if err != nil {
		return "", err
	}
	applyPresetParams(cfg, preset)
	return preset.InitialPrompt, nil
}

func applyPresetParams(cfg *config.Config, p *storage.Preset) {
	if p.Model != "" {
		cfg.Generation.Model = p.Model
	}
	if p.MaxTokens > 0 {
		cfg.Generation.MaxTokens = p.MaxTokens
	}
	cfg.Generation.Temperature = p.Temperature
	cfg.Generation.TopP = p.TopP
	cfg.Generation.PresencePenalty = p.PresencePenalty
	cfg.Generation.FrequencyPenalty = p.FrequencyPenalty
}
