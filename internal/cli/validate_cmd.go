// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/neuron/internal/cloud"
)

// errKeyRejected is returned by "validate" when the probe fails without
// --verbose.
var errKeyRejected = errors.New("API key was not accepted")

// RunValidate handles "neuron validate [KEY]". Without KEY the configured
// key is checked. --verbose reports why a probe failed.
func (a *App) RunValidate(ctx context.Context) error {
	p := NewArgParser(a.Args.Raw)

	key := p.Positional(0)
	if key == "" {
		key = a.APIKey()
	}
	a.probe(ctx)

	if !a.Args.Verbose {
		ok := a.Client.Validate(ctx, key)
		if a.Args.JSON {
			return writeJSON(a.Out, map[string]interface{}{"valid": ok, "key": cloud.MaskKey(key)})
		}
		if !ok {
			fmt.Fprintf(a.Out, "%s %s\n", RenderStatus("fail"), cloud.MaskKey(key))
			return errKeyRejected
		}
		fmt.Fprintf(a.Out, "%s %s\n", RenderStatus("ok"), cloud.MaskKey(key))
		return nil
	}

	err := a.Client.ValidateDetailed(ctx, key)
	if a.Args.JSON {
		out := map[string]interface{}{"valid": err == nil, "key": cloud.MaskKey(key)}
		if err != nil {
			out["reason"] = FriendlyError(err)
			out["detail"] = err.Error()
		}
		if werr := writeJSON(a.Out, out); werr != nil {
			return werr
		}
		return err
	}

	fmt.Fprintln(a.Out, RenderKV("Endpoint", a.Client.BaseURL()))
	fmt.Fprintln(a.Out, RenderKV("Key", cloud.MaskKey(key)))
	fmt.Fprintln(a.Out, RenderKV("Fingerprint", cloud.KeyFingerprint(key)))
	fmt.Fprintln(a.Out, RenderKV("Connectivity", a.Monitor.Status()))
	if err != nil {
		fmt.Fprintf(a.Out, "%s %s\n", RenderStatus("fail"), FriendlyError(err))
		return err
	}
	fmt.Fprintf(a.Out, "%s API key accepted\n", RenderStatus("ok"))
	return nil
}
