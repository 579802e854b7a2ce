// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/neuron/internal/storage"
)

// maxImportSize caps legacy export files.
const maxImportSize = 64 << 20

// RunImport handles "neuron import FILE". FILE is an unversioned chat array
// written by earlier releases; "-" reads stdin. Importing again requires
// --force.
func (a *App) RunImport(ctx context.Context) error {
	p := NewArgParser(a.Args.Raw, "force")

	path := p.Positional(0)
	if path == "" {
		return ErrMissingArgument("file", "neuron import chats.json")
	}

	st, err := a.Store()
	if err != nil {
		return err
	}

	if !p.BoolFlag("force") {
		at, err := st.LegacyImportedAt(ctx)
		if err != nil {
			return err
		}
		if !at.IsZero() {
			return NewCommandError("import", "run",
				fmt.Sprintf("chats were already imported on %s (use --force to import again)", at.Local().Format("2006-01-02 15:04")), nil)
		}
	}

	var r io.Reader = a.In
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return NewCommandError("import", "read", "could not open file", err)
		}
		defer f.Close()
		r = f
	}
	blob, err := io.ReadAll(io.LimitReader(r, maxImportSize))
	if err != nil {
		return NewCommandError("import", "read", "could not read file", err)
	}

	n, err := st.ImportLegacy(ctx, blob)
	var derr *storage.DecodeError
	if errors.As(err, &derr) {
		for _, s := range derr.Skipped {
			fmt.Fprintf(a.Err, "%s skipped %s: %v\n", WarningStyle.Render("[WARN]"), s.ID, s.Err)
		}
		err = nil
	}
	if err != nil {
		return err
	}

	if a.Args.JSON {
		skipped := 0
		if derr != nil {
			skipped = len(derr.Skipped)
		}
		return writeJSON(a.Out, map[string]int{"imported": n, "skipped": skipped})
	}
	fmt.Fprintf(a.Out, "%s imported %d chats\n", RenderStatus("ok"), n)
	return nil
}
