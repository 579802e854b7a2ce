// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// preset_cmd.go - Generation preset management for neuron CLI.
//
// Command: preset [subcommand]
//
// Subcommands:
//   list (default)         List presets
//   show NAME              Show one preset
//   save TITLE [flags]     Create or update a preset
//   delete NAME            Delete a preset
//
// Save flags (unset flags start from the current configuration):
//   --model ID  --max-tokens N  --temperature T  --top-p P
//   --presence-penalty X  --frequency-penalty X  --prompt TEXT

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/neuron/internal/storage"
	"github.com/jeranaias/neuron/internal/util"
)

// RunPreset handles "neuron preset".
func (a *App) RunPreset(ctx context.Context) error {
	p := NewArgParser(a.Args.Raw)

	st, err := a.Store()
	if err != nil {
		return err
	}
	presets := st.Presets()

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "list", "ls":
		list, err := presets.List(ctx)
		if err != nil {
			return err
		}
		if a.Args.JSON {
			return writeJSON(a.Out, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(a.Out, "No presets saved.")
			return nil
		}
		for _, pr := range list {
			fmt.Fprintf(a.Out, "%s %s %s\n",
				util.PadRight(pr.Title, 24),
				util.PadRight(pr.Model, 16),
				DimStyle.Render(fmt.Sprintf("temp %.2f  max %d", pr.Temperature, pr.MaxTokens)))
		}
		return nil

	case "show":
		pr, err := a.findPreset(ctx, presets, JoinPositionalArgs(p, 1))
		if err != nil {
			return err
		}
		if a.Args.JSON {
			return writeJSON(a.Out, pr)
		}
		fmt.Fprintln(a.Out, TitleStyle.Render(pr.Title))
		fmt.Fprintln(a.Out, RenderKV("ID", pr.ID))
		fmt.Fprintln(a.Out, RenderKV("Model", pr.Model))
		fmt.Fprintln(a.Out, RenderKV("Max tokens", fmt.Sprint(pr.MaxTokens)))
		fmt.Fprintln(a.Out, RenderKV("Temperature", fmt.Sprint(pr.Temperature)))
		fmt.Fprintln(a.Out, RenderKV("Top P", fmt.Sprint(pr.TopP)))
		fmt.Fprintln(a.Out, RenderKV("Presence penalty", fmt.Sprint(pr.PresencePenalty)))
		fmt.Fprintln(a.Out, RenderKV("Frequency penalty", fmt.Sprint(pr.FrequencyPenalty)))
		if pr.InitialPrompt != "" {
			fmt.Fprintln(a.Out, RenderKV("Opening prompt", pr.InitialPrompt))
		}
		return nil

	case "save", "add":
		pr, err := a.presetFromFlags(ctx, presets, p)
		if err != nil {
			return err
		}
		if err := presets.Save(ctx, pr); err != nil {
			return err
		}
		if !a.Args.Quiet {
			fmt.Fprintf(a.Out, "%s saved preset %q (%s)\n", RenderStatus("ok"), pr.Title, pr.ID)
		}
		return nil

	case "delete", "rm":
		pr, err := a.findPreset(ctx, presets, JoinPositionalArgs(p, 1))
		if err != nil {
			return err
		}
		if err := presets.Delete(ctx, pr.ID); err != nil {
			return err
		}
		if !a.Args.Quiet {
			fmt.Fprintf(a.Out, "%s deleted preset %q\n", RenderStatus("ok"), pr.Title)
		}
		return nil

	default:
		return ErrInvalidValue("subcommand", sub, "expected list, show, save, or delete")
	}
}

func (a *App) findPreset(ctx context.Context, presets *storage.PresetStore, name string) (*storage.Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingArgument("preset", "neuron preset show terse")
	}
	pr, err := presets.Find(ctx, name)
	if errors.Is(err, storage.ErrPresetNotFound) {
		return nil, &NotFoundError{Resource: "preset", ID: name}
	}
	return pr, err
}

// presetFromFlags builds a preset from save flags. An existing preset with
// the same title is updated in place.
func (a *App) presetFromFlags(ctx context.Context, presets *storage.PresetStore, p *ArgParser) (*storage.Preset, error) {
	title := strings.TrimSpace(JoinPositionalArgs(p, 1))
	if title == "" {
		return nil, ErrMissingArgument("title", `neuron preset save terse --temperature 0.2`)
	}

	gen := a.Config.Get().Generation
	pr := &storage.Preset{
		Title:            title,
		Model:            gen.Model,
		MaxTokens:        gen.MaxTokens,
		Temperature:      gen.Temperature,
		TopP:             gen.TopP,
		PresencePenalty:  gen.PresencePenalty,
		FrequencyPenalty: gen.FrequencyPenalty,
	}
	if existing, err := presets.Find(ctx, title); err == nil {
		pr = existing
	} else if !errors.Is(err, storage.ErrPresetNotFound) {
		return nil, err
	}

	// --model is a global flag, so it usually arrives through Args.
	m := p.Flag("model")
	if m == "" {
		m = a.Args.Model
	}
	if m != "" {
		pr.Model = m
	}
	if p.Flag("max-tokens") != "" {
		n, err := ParseIntWithValidation(p.Flag("max-tokens"), "max-tokens")
		if err != nil {
			return nil, ErrInvalidValue("max-tokens", p.Flag("max-tokens"), err.Error())
		}
		pr.MaxTokens = n
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"temperature", &pr.Temperature},
		{"top-p", &pr.TopP},
		{"presence-penalty", &pr.PresencePenalty},
		{"frequency-penalty", &pr.FrequencyPenalty},
	} {
		v, set, err := p.FlagFloat(f.name)
		if err != nil {
			return nil, ErrInvalidValue(f.name, p.Flag(f.name), "must be a number")
		}
		if set {
			*f.dst = v
		}
	}
	if prompt := p.Flag("prompt"); prompt != "" {
		pr.InitialPrompt = prompt
	}

	if err := pr.Validate(); err != nil {
		return nil, ErrInvalidValue("preset", title, err.Error())
	}
	return pr, nil
}
