// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"strings"
	"syscall"
	"testing"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"list", "--query", "golang"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("query") != "golang" {
					t.Errorf("Flag(query) = %q, want %q", p.Flag("query"), "golang")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"export", "3f2a", "--format=json"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("format") != "json" {
					t.Errorf("Flag(format) = %q, want %q", p.Flag("format"), "json")
				}
				if p.Positional(1) != "3f2a" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "3f2a")
				}
			},
		},
		{
			name:    "trailing boolean flag",
			args:    []string{"list", "--archived"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("archived") {
					t.Error("BoolFlag(archived) should be true")
				}
			},
		},
		{
			name:    "declared boolean does not consume the next arg",
			args:    []string{"--raw", "hello", "world"},
			bools:   []string{"raw"},
			wantSub: "hello",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("raw") {
					t.Error("BoolFlag(raw) should be true")
				}
				if got := JoinPositionalArgs(p, 0); got != "hello world" {
					t.Errorf("positional = %q, want %q", got, "hello world")
				}
			},
		},
		{
			name:    "undeclared flag consumes the next arg",
			args:    []string{"--raw", "hello"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("raw") != "hello" {
					t.Errorf("Flag(raw) = %q, want %q", p.Flag("raw"), "hello")
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"ask", "--", "--not-a-flag"},
			wantSub: "ask",
			validate: func(t *testing.T, p *ArgParser) {
				if p.HasFlag("not-a-flag") {
					t.Error("--not-a-flag should be positional after --")
				}
				if p.Positional(1) != "--not-a-flag" {
					t.Errorf("Positional(1) = %q", p.Positional(1))
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"rename", "3f2a", "Trip", "planning"},
			wantSub: "rename",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 4 {
					t.Errorf("PositionalCount() = %d, want 4", p.PositionalCount())
				}
				if got := strings.Join(p.PositionalFrom(2), " "); got != "Trip planning" {
					t.Errorf("PositionalFrom(2) = %q", got)
				}
			},
		},
		{
			name:    "explicit false",
			args:    []string{"list", "--archived=false"},
			bools:   []string{"archived"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("archived") {
					t.Error("BoolFlag(archived) should be false")
				}
				if !p.HasFlag("archived") {
					t.Error("HasFlag(archived) should be true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_Numbers(t *testing.T) {
	p := NewArgParser([]string{"save", "x", "--max-tokens", "500", "--temperature", "0.25", "--top-p", "abc"})

	if got := p.FlagIntOrDefault("max-tokens", 1); got != 500 {
		t.Errorf("FlagIntOrDefault(max-tokens) = %d, want 500", got)
	}
	if got := p.FlagIntOrDefault("missing", 7); got != 7 {
		t.Errorf("FlagIntOrDefault(missing) = %d, want 7", got)
	}

	v, set, err := p.FlagFloat("temperature")
	if err != nil || !set || v != 0.25 {
		t.Errorf("FlagFloat(temperature) = %v, %v, %v", v, set, err)
	}
	if _, set, err := p.FlagFloat("presence-penalty"); set || err != nil {
		t.Errorf("FlagFloat(absent) = set %v, err %v", set, err)
	}
	if _, set, err := p.FlagFloat("top-p"); !set || err == nil {
		t.Error("FlagFloat(top-p) should report a parse error")
	}

	neg := NewArgParser([]string{"--presence-penalty=-0.5"})
	if v, _, err := neg.FlagFloat("presence-penalty"); err != nil || v != -0.5 {
		t.Errorf("negative value = %v, %v", v, err)
	}
}

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"10", 10, false},
		{"", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIntWithValidation(tt.in, "n")
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIntWithValidation(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseIntWithValidation(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"true", "YES", "y", "1", "on"} {
		if v, err := ParseBoolString(s); err != nil || !v {
			t.Errorf("ParseBoolString(%q) = %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"false", "no", "N", "0", "off"} {
		if v, err := ParseBoolString(s); err != nil || v {
			t.Errorf("ParseBoolString(%q) = %v, %v", s, v, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("ParseBoolString(maybe) should fail")
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParse_Commands(t *testing.T) {
	tests := []struct {
		argv    []string
		want    Command
		wantRaw []string
	}{
		{nil, CmdChat, nil},
		{[]string{"chat", "--resume", "3f2a"}, CmdChat, []string{"--resume", "3f2a"}},
		{[]string{"ask", "hello", "there"}, CmdAsk, []string{"hello", "there"}},
		{[]string{"a", "hi"}, CmdAsk, []string{"hi"}},
		{[]string{"validate"}, CmdValidate, []string{}},
		{[]string{"check"}, CmdValidate, []string{}},
		{[]string{"models", "--remote"}, CmdModels, []string{"--remote"}},
		{[]string{"sessions"}, CmdSession, []string{}},
		{[]string{"preset", "list"}, CmdPreset, []string{"list"}},
		{[]string{"cfg", "path"}, CmdConfig, []string{"path"}},
		{[]string{"import", "chats.json"}, CmdImport, []string{"chats.json"}},
		{[]string{"init"}, CmdSetup, []string{}},
		{[]string{"version"}, CmdVersion, []string{}},
		{[]string{"--help"}, CmdHelp, []string{}},
		{[]string{"frobnicate"}, CmdUnknown, []string{}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			cmd, args := Parse(tt.argv)
			if cmd != tt.want {
				t.Errorf("Parse(%v) command = %v, want %v", tt.argv, cmd, tt.want)
			}
			if len(args.Raw) != len(tt.wantRaw) {
				t.Fatalf("Parse(%v) raw = %v, want %v", tt.argv, args.Raw, tt.wantRaw)
			}
			for i := range tt.wantRaw {
				if args.Raw[i] != tt.wantRaw[i] {
					t.Errorf("raw[%d] = %q, want %q", i, args.Raw[i], tt.wantRaw[i])
				}
			}
		})
	}
}

func TestParse_GlobalFlags(t *testing.T) {
	cmd, args := Parse([]string{"-q", "ask", "--model", "gpt-4o", "--offline", "--json", "hi", "--config=/tmp/n.toml", "-v"})

	if cmd != CmdAsk {
		t.Fatalf("command = %v, want CmdAsk", cmd)
	}
	if !args.Quiet || !args.Verbose || !args.JSON || !args.Offline {
		t.Errorf("bool globals not parsed: %+v", args)
	}
	if args.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", args.Model)
	}
	if args.ConfigPath != "/tmp/n.toml" {
		t.Errorf("ConfigPath = %q", args.ConfigPath)
	}
	if len(args.Raw) != 1 || args.Raw[0] != "hi" {
		t.Errorf("Raw = %v, want [hi]", args.Raw)
	}
}

func TestParse_DoubleDashPassthrough(t *testing.T) {
	_, args := Parse([]string{"ask", "--", "--json", "-v"})
	if args.JSON || args.Verbose {
		t.Errorf("flags after -- must not be global: %+v", args)
	}
	want := []string{"--", "--json", "-v"}
	if strings.Join(args.Raw, " ") != strings.Join(want, " ") {
		t.Errorf("Raw = %v, want %v", args.Raw, want)
	}
}

func TestSignals(t *testing.T) {
	for _, s := range Signals(CmdChat) {
		if s == os.Interrupt {
			t.Error("chat must handle Ctrl+C itself")
		}
	}
	found := false
	for _, s := range Signals(CmdAsk) {
		if s == os.Interrupt {
			found = true
		}
	}
	if !found {
		t.Error("one-shot commands should stop on Ctrl+C")
	}
	if Signals(CmdAsk)[1] != syscall.SIGTERM {
		t.Error("SIGTERM should always be handled")
	}
}
