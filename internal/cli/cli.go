// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for neuron.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdValidate
	CmdModels
	CmdSession
	CmdPreset
	CmdConfig
	CmdImport
	CmdSetup
	CmdVersion
	CmdHelp
	CmdUnknown
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	Offline    bool
	Model      string
	ConfigPath string

	// Name is the command word as typed, kept for error messages
	Name string

	// Raw args (remaining after global flag parsing)
	Raw []string
}

const usageText = `neuron - chat with OpenAI-compatible models from the terminal

Usage:
  neuron                         Start an interactive chat (default)
  neuron chat [--resume ID]      Interactive chat, optionally resuming a saved one
  neuron ask "question"          Ask a single question
  neuron validate [--verbose]    Check the configured API key
  neuron models [--remote]       List models
  neuron session <subcommand>    list, show, rename, pin, archive, folder, export, delete
  neuron preset <subcommand>     list, show, save, delete
  neuron config [show|get|set|keys|path]
  neuron import FILE             Import chats saved by earlier releases
  neuron setup [--encrypt]       First-run wizard
  neuron version

Global flags:
  -m, --model NAME    Use this model (overrides config)
  --offline           Offline mode: only loopback endpoints are reachable
  --config PATH       Use this config file
  --json              Machine-readable output where supported
  -v, --verbose       Log requests to stderr
  -q, --quiet         Minimal output

Version: %s
`

// PrintUsage writes the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "neuron version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments (without the program name) and
// returns the command and args.
func Parse(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdChat, parsed
	}

	cmd := strings.ToLower(remaining[0])
	parsed.Name = cmd
	parsed.Raw = remaining[1:]

	switch cmd {
	case "chat", "c":
		return CmdChat, parsed
	case "ask", "a":
		return CmdAsk, parsed
	case "validate", "check":
		return CmdValidate, parsed
	case "models", "model":
		return CmdModels, parsed
	case "session", "sessions", "s":
		return CmdSession, parsed
	case "preset", "presets":
		return CmdPreset, parsed
	case "config", "cfg":
		return CmdConfig, parsed
	case "import":
		return CmdImport, parsed
	case "setup", "init":
		return CmdSetup, parsed
	case "version", "--version":
		return CmdVersion, parsed
	case "help", "-h", "--help":
		return CmdHelp, parsed
	default:
		return CmdUnknown, parsed
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Global flags may appear anywhere on the line; everything after "--" is
// passed through untouched.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--":
			remaining = append(remaining, args[i:]...)
			return remaining, parsed
		case arg == "-q" || arg == "--quiet":
			parsed.Quiet = true
		case arg == "-v" || arg == "--verbose":
			parsed.Verbose = true
		case arg == "--json":
			parsed.JSON = true
		case arg == "--offline":
			parsed.Offline = true
		case arg == "-m" || arg == "--model":
			if i+1 < len(args) {
				i++
				parsed.Model = args[i]
			}
		case strings.HasPrefix(arg, "--model="):
			parsed.Model = strings.TrimPrefix(arg, "--model=")
		case arg == "--config":
			if i+1 < len(args) {
				i++
				parsed.ConfigPath = args[i]
			}
		case strings.HasPrefix(arg, "--config="):
			parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, parsed
}

// =============================================================================
// DISPATCH
// =============================================================================

// Signals returns the signals that should cancel cmd's context. The chat
// REPL handles Ctrl+C itself to cancel a single reply.
func Signals(cmd Command) []os.Signal {
	if cmd == CmdChat {
		return []os.Signal{syscall.SIGTERM}
	}
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

// Run executes cmd and returns the process exit code.
func Run(ctx context.Context, cmd Command, args Args) int {
	switch cmd {
	case CmdHelp:
		PrintUsage(os.Stdout)
		return ExitSuccess
	case CmdVersion:
		PrintVersion(os.Stdout)
		return ExitSuccess
	case CmdUnknown:
		DisplayError(os.Stderr, ErrInvalidValue("command", args.Name, "unknown command"), args.JSON)
		PrintUsage(os.Stderr)
		return ExitUsageError
	}

	app, err := NewApp(args)
	if err != nil {
		DisplayError(os.Stderr, err, args.JSON)
		return GetExitCode(err)
	}
	defer app.Close()

	if err := app.Dispatch(ctx, cmd); err != nil {
		DisplayError(os.Stderr, err, args.JSON)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// Dispatch runs one command against the app.
func (a *App) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd {
	case CmdChat:
		return a.RunChat(ctx)
	case CmdAsk:
		return a.RunAsk(ctx)
	case CmdValidate:
		return a.RunValidate(ctx)
	case CmdModels:
		return a.RunModels(ctx)
	case CmdSession:
		return a.RunSession(ctx)
	case CmdPreset:
		return a.RunPreset(ctx)
	case CmdConfig:
		return a.RunConfig(ctx)
	case CmdImport:
		return a.RunImport(ctx)
	case CmdSetup:
		return a.RunSetup(ctx)
	}
	return fmt.Errorf("unhandled command %d", cmd)
}
