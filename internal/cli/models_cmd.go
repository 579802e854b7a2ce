// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/neuron/internal/model"
	"github.com/jeranaias/neuron/internal/util"
)

// RunModels handles "neuron models". The built-in registry is listed by
// default; --remote asks the provider which models the key can use.
func (a *App) RunModels(ctx context.Context) error {
	p := NewArgParser(a.Args.Raw, "remote")
	current := a.Config.Get().Generation.Model

	if p.BoolFlag("remote") {
		a.probe(ctx)
		ids := a.Client.AvailableModels(ctx, a.APIKey())
		if a.Args.JSON {
			return writeJSON(a.Out, ids)
		}
		for _, id := range ids {
			marker := "  "
			if id == current {
				marker = "* "
			}
			fmt.Fprintln(a.Out, marker+id)
		}
		return nil
	}

	if cat := p.Flag("category"); cat != "" {
		return a.printModels(model.ByCategory(model.Category(strings.ToLower(cat))), current)
	}
	return a.printModels(model.All(), current)
}

func (a *App) printModels(models []model.ModelDescriptor, current string) error {
	if a.Args.JSON {
		return writeJSON(a.Out, models)
	}
	if len(models) == 0 {
		fmt.Fprintln(a.Out, "No models found.")
		return nil
	}

	fmt.Fprintln(a.Out, "  "+util.PadRight("ID", 22)+" "+util.PadRight("Context", 12)+" "+
		util.PadRight("Price", 16)+" Capabilities")
	for _, m := range models {
		marker := "  "
		if m.ID == current {
			marker = "* "
		}
		fmt.Fprintln(a.Out, marker+util.PadRight(m.ID, 22)+" "+
			util.PadRight(m.ContextString(), 12)+" "+
			util.PadRight(m.CostString(), 16)+" "+
			m.CapabilitiesString())
	}
	return nil
}
