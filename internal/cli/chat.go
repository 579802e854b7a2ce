// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for neuron CLI.
//
// Handles the "neuron chat" command (also the default when no command is
// given), a REPL over one saved conversation.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Examples:
//   neuron                          Start a new chat
//   neuron chat --resume 3f2a       Continue a saved chat
//   neuron chat --preset reviewer   Start from a saved preset
//   neuron -m gpt-4o chat           Use a specific model
//
// Flags:
//   --resume REF       Continue the saved chat REF (id or id prefix)
//   --preset NAME      Apply a preset and send its opening prompt
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /retry, /r          Re-send after a failed reply
//   /model [id]         Show or switch model
//   /models             List known models
//   /rename TITLE       Rename this chat
//   /pin                Toggle pinned
//   /archive            Archive this chat
//   /folder [NAME]      Set or clear the folder
//   /clear, /c          Drop every message
//   /delete             Delete this chat and exit
//   /export [PATH]      Write the chat as markdown (or .json, .html)
//   /copy               Copy the last reply to the clipboard
//   /status, /s         Show session statistics
//   /history            Show conversation history
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the pending reply
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/peterh/liner"

	"github.com/jeranaias/neuron/internal/config"
	"github.com/jeranaias/neuron/internal/export"
	"github.com/jeranaias/neuron/internal/model"
	"github.com/jeranaias/neuron/internal/session"
	"github.com/jeranaias/neuron/internal/storage"
	"github.com/jeranaias/neuron/internal/telemetry"
	"github.com/jeranaias/neuron/internal/util"
)

// historyPreviewRunes is how much of each turn /history prints.
const historyPreviewRunes = 100

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor whose history lives in historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes command history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// chatREPL holds the state of one interactive chat.
type chatREPL struct {
	app    *App
	conv   *session.Conversation
	render *Renderer
	out    io.Writer
	errOut io.Writer

	preset *storage.Preset

	start time.Time
	usage telemetry.Snapshot

	mu     sync.Mutex
	cancel context.CancelFunc
}

// newChatREPL wraps conv for interactive use.
func newChatREPL(a *App, conv *session.Conversation, preset *storage.Preset) *chatREPL {
	cfg := a.Config.Get()
	return &chatREPL{
		app:    a,
		conv:   conv,
		render: NewRenderer(cfg.UI.Theme, cfg.UI.Markdown),
		out:    a.Out,
		errOut: a.Err,
		preset: preset,
		start:  time.Now(),
		usage:  a.Usage.Snapshot(),
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// RunChat handles "neuron chat".
func (a *App) RunChat(ctx context.Context) error {
	p := NewArgParser(a.Args.Raw)

	st, err := a.Store()
	if err != nil {
		return err
	}

	cfg := a.Config.Get().Clone()

	var preset *storage.Preset
	if name := p.Flag("preset"); name != "" {
		preset, err = a.findPreset(ctx, st.Presets(), name)
		if err != nil {
			return err
		}
		applyPresetParams(cfg, preset)
		a.Config.Set(cfg)
	}

	var sess *model.Session
	if ref := p.Flag("resume"); ref != "" {
		sess, err = a.resolveSession(ctx, st, ref)
		if err != nil {
			return err
		}
	} else {
		sess = model.NewSession(cfg.Generation.Model)
	}

	conv := session.New(sess, a.Client, st, a.SessionConfig(cfg))
	defer func() {
		if err := conv.Close(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(a.Err, "%s %v\n", WarningStyle.Render("[WARN]"), err)
		}
	}()

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go a.Monitor.Start(monCtx)

	repl := newChatREPL(a, conv, preset)

	stopWatch, err := config.Watch(a.ConfigPath, repl.reload)
	if err != nil {
		a.Logger.Printf("config watch disabled: %v", err)
	} else {
		defer stopWatch()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if repl.interrupt() {
				fmt.Fprintln(a.Err, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	if !a.Args.Quiet {
		repl.printWelcome()
	}
	if len(sess.Turns) > 0 && !a.Args.Quiet {
		repl.printHistory()
	}
	if preset != nil && preset.InitialPrompt != "" && len(sess.Turns) == 0 {
		repl.send(ctx, preset.InitialPrompt)
	}

	historyFile := filepath.Join(filepath.Dir(a.ConfigPath), "chat_history")
	input := NewChatCLI(historyFile)
	defer input.Close()

	for {
		line, err := input.ReadInput(PromptStyle.Render("neuron> "))
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D both end the chat.
			fmt.Fprintln(a.Out)
			repl.printExitSummary()
			return nil
		}
		if repl.handleLine(ctx, line) {
			repl.printExitSummary()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// handleLine processes one line of input and reports whether the chat
// should end.
func (r *chatREPL) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, "/"):
		quit, err := r.handleSlashCommand(ctx, line)
		if err != nil {
			fmt.Fprintf(r.errOut, "%s %s\n", ErrorStyle.Render("[Error]"), FriendlyError(err))
		}
		return quit
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		return true
	}
	r.send(ctx, line)
	return false
}

// interrupt cancels the pending request, if any.
func (r *chatREPL) interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// reload applies a changed config file to the running chat.
func (r *chatREPL) reload(cfg *config.Config, err error) {
	if err != nil {
		fmt.Fprintf(r.errOut, "%s config not reloaded: %v\n", WarningStyle.Render("[WARN]"), err)
		return
	}
	cfg = applyArgOverrides(cfg, r.app.Args)
	if r.preset != nil {
		applyPresetParams(cfg, r.preset)
	}
	r.app.Config.Set(cfg)
	r.app.Monitor.SetOfflineMode(cfg.Network.OfflineMode)
	r.conv.SetConfig(r.app.SessionConfig(cfg))

	r.mu.Lock()
	r.render = NewRenderer(cfg.UI.Theme, cfg.UI.Markdown)
	r.mu.Unlock()
	r.app.Logger.Printf("config reloaded from %s", r.app.ConfigPath)
	if !r.app.Args.Quiet {
		fmt.Fprintln(r.errOut, DimStyle.Render("[config reloaded]"))
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// send submits text and prints the reply.
func (r *chatREPL) send(ctx context.Context, text string) {
	r.request(ctx, func(ctx context.Context) (*model.Turn, error) {
		return r.conv.Send(ctx, text)
	})
}

// request runs fn with a context that Ctrl+C cancels.
func (r *chatREPL) request(ctx context.Context, fn func(context.Context) (*model.Turn, error)) {
	reqCtx, cancel := requestContext(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	before := r.app.Usage.Snapshot()
	started := time.Now()
	turn, err := fn(reqCtx)

	if turn != nil {
		r.mu.Lock()
		render := r.render
		r.mu.Unlock()

		fmt.Fprintln(r.out)
		fmt.Fprint(r.out, render.Render(turn.Content))
		if !r.app.Args.Quiet {
			after := r.app.Usage.Snapshot()
			fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("%d tokens  ~$%.4f  %s",
				after.Tokens-before.Tokens, after.Cost-before.Cost, formatDuration(time.Since(started)))))
		}
		fmt.Fprintln(r.out)
	}

	var perr *session.PersistenceError
	switch {
	case err == nil:
	case errors.As(err, &perr):
		fmt.Fprintf(r.errOut, "%s %v\n", WarningStyle.Render("[WARN]"), err)
	case errors.Is(err, context.Canceled), errors.Is(err, session.ErrDiscarded):
		// The user cancelled; the unanswered turn can be retried.
	default:
		fmt.Fprintf(r.errOut, "%s %s\n", ErrorStyle.Render("[Error]"), FriendlyError(err))
		if r.conv.Notice() != "" {
			fmt.Fprintln(r.errOut, DimStyle.Render("Type /retry to send again."))
			r.conv.DismissNotice()
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands and reports whether the chat
// should end.
func (r *chatREPL) handleSlashCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}
	command := strings.ToLower(parts[0])
	rest := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()
	case "/quit", "/q", "/exit":
		return true, nil
	case "/retry", "/r":
		r.request(ctx, r.conv.Retry)
	case "/model", "/m":
		return false, r.handleModel(ctx, rest)
	case "/models":
		return false, r.app.printModels(model.All(), r.currentModel())
	case "/rename":
		if err := r.conv.Rename(ctx, rest); err != nil {
			return false, err
		}
		r.ok("Renamed to " + rest)
	case "/pin":
		pinned, err := r.conv.TogglePin(ctx)
		if err != nil {
			return false, err
		}
		if pinned {
			r.ok("Pinned")
		} else {
			r.ok("Unpinned")
		}
	case "/archive":
		archived := !r.conv.Snapshot().Archived
		if err := r.conv.SetArchived(ctx, archived); err != nil {
			return false, err
		}
		if archived {
			r.ok("Archived")
		} else {
			r.ok("Restored from archive")
		}
	case "/folder":
		if err := r.conv.SetFolder(ctx, rest); err != nil {
			return false, err
		}
		if rest == "" {
			r.ok("Removed from folder")
		} else {
			r.ok("Moved to " + rest)
		}
	case "/clear", "/c":
		if err := r.conv.Clear(ctx); err != nil {
			return false, err
		}
		r.ok("Conversation cleared")
	case "/delete":
		if err := r.conv.Delete(ctx); err != nil {
			return false, err
		}
		r.ok("Chat deleted")
		return true, nil
	case "/export":
		return false, r.export(rest)
	case "/copy":
		return false, r.copyLastReply()
	case "/status", "/s":
		r.printStatus()
	case "/history":
		r.printHistory()
	default:
		return false, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return false, nil
}

func (r *chatREPL) ok(msg string) {
	fmt.Fprintf(r.out, "%s %s\n", RenderStatus("ok"), msg)
}

func (r *chatREPL) currentModel() string {
	if id := r.conv.Snapshot().ModelID; id != "" {
		return id
	}
	return r.app.Config.Get().Generation.Model
}

// handleModel shows or switches the model.
func (r *chatREPL) handleModel(ctx context.Context, id string) error {
	if id == "" {
		current := r.currentModel()
		fmt.Fprintln(r.out, RenderKV("Model", fmt.Sprintf("%s (%s)", current, model.Lookup(current).Name)))
		return nil
	}
	if !model.Known(id) {
		fmt.Fprintf(r.errOut, "%s %q is not a known model, using it anyway\n", WarningStyle.Render("[WARN]"), id)
	}
	if err := r.conv.ChangeModel(ctx, id); err != nil {
		return err
	}
	r.ok("Switched to " + id)
	return nil
}

// export writes the chat to path, or <id>.md in the working directory.
func (r *chatREPL) export(path string) error {
	snap := r.conv.Snapshot()
	if path == "" {
		path = snap.ID + ".md"
	}
	path, err := ValidateOutputPath(path)
	if err != nil {
		return err
	}

	data, err := export.ForPath(path, r.app.exportOptions()).Export(snap)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return NewCommandError("export", "write", path, err)
	}
	r.ok("Exported to " + path)
	return nil
}

// copyLastReply puts the last assistant turn on the system clipboard.
func (r *chatREPL) copyLastReply() error {
	snap := r.conv.Snapshot()
	for i := len(snap.Turns) - 1; i >= 0; i-- {
		t := snap.Turns[i]
		if t.Role != model.RoleAssistant {
			continue
		}
		if err := clipboard.WriteAll(t.Content); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		r.ok(fmt.Sprintf("Copied reply to clipboard (%d characters)", len([]rune(t.Content))))
		return nil
	}
	return errors.New("no reply to copy yet")
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (r *chatREPL) printWelcome() {
	snap := r.conv.Snapshot()
	current := r.currentModel()

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("neuron interactive chat"))
	fmt.Fprintln(r.out, RenderSeparator(30))
	fmt.Fprintln(r.out, RenderKV("Model", fmt.Sprintf("%s (%s)", current, model.Lookup(current).Name)))
	fmt.Fprintln(r.out, RenderKV("Chat", snap.Title))
	if r.preset != nil {
		fmt.Fprintln(r.out, RenderKV("Preset", r.preset.Title))
	}
	if r.app.Monitor.OfflineMode() {
		fmt.Fprintln(r.out, RenderKV("Network", WarningStyle.Render("offline mode (loopback only)")))
	}
	if r.app.APIKey() == "" {
		fmt.Fprintln(r.out, RenderKV("API key", WarningStyle.Render("not set (run neuron setup)")))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/retry, /r", "Re-send after a failed reply"},
		{"/model [id]", "Show or switch model"},
		{"/models", "List known models"},
		{"/rename TITLE", "Rename this chat"},
		{"/pin", "Toggle pinned"},
		{"/archive", "Archive or restore this chat"},
		{"/folder [NAME]", "Set or clear the folder"},
		{"/clear, /c", "Drop every message"},
		{"/delete", "Delete this chat and exit"},
		{"/export [PATH]", "Write the chat to a file (.md, .json, or .html)"},
		{"/copy", "Copy the last reply to the clipboard"},
		{"/status, /s", "Show session statistics"},
		{"/history", "Show conversation history"},
		{"/quit, /q", "Exit chat"},
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, SectionStyle.Render("Available Commands"))
	fmt.Fprintln(r.out, RenderSeparator(20))
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n", LabelStyle.Render(fmt.Sprintf("%-16s", c.cmd)), c.desc)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Tip: Ctrl+C cancels the pending reply, Ctrl+D exits"))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printStatus() {
	snap := r.conv.Snapshot()
	usage := r.app.Usage.Snapshot()

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, SectionStyle.Render("Session Status"))
	fmt.Fprintln(r.out, RenderSeparator(20))
	fmt.Fprintln(r.out, RenderKV("Chat", snap.Title))
	fmt.Fprintln(r.out, RenderKV("Model", r.currentModel()))
	fmt.Fprintln(r.out, RenderKV("State", r.conv.State().String()))
	fmt.Fprintln(r.out, RenderKV("Messages", fmt.Sprintf("%d (~%d tokens of context)", len(snap.Turns), snap.EstimateTokens())))
	fmt.Fprintln(r.out, RenderKV("Network", r.app.Monitor.Status()))
	fmt.Fprintln(r.out, RenderKV("Usage", usage.String()))
	fmt.Fprintln(r.out, RenderKV("Duration", formatDuration(time.Since(r.start))))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printHistory() {
	snap := r.conv.Snapshot()
	if len(snap.Turns) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("[No messages yet]"))
		return
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, SectionStyle.Render("Conversation History"))
	fmt.Fprintln(r.out, RenderSeparator(25))
	for i, t := range snap.Turns {
		role := t.Role.DisplayName()
		switch t.Role {
		case model.RoleUser:
			role = UserStyle.Render(role)
		case model.RoleAssistant:
			role = AssistantStyle.Render(role)
		}
		content := []rune(t.Content)
		text := string(content)
		if len(content) > historyPreviewRunes {
			text = string(content[:historyPreviewRunes]) + "..."
		}
		text = strings.ReplaceAll(text, "\n", " ")
		fmt.Fprintf(r.out, "  %d. %s: %s\n", i+1, role, text)
	}
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printExitSummary() {
	usage := r.app.Usage.Snapshot()
	requests := usage.Requests - r.usage.Requests
	if requests == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("Goodbye!"))
		return
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, SectionStyle.Render("Session Summary"))
	fmt.Fprintln(r.out, RenderSeparator(15))
	fmt.Fprintln(r.out, RenderKV("Requests", fmt.Sprintf("%d", requests)))
	fmt.Fprintln(r.out, RenderKV("Tokens", fmt.Sprintf("%d", usage.Tokens-r.usage.Tokens)))
	fmt.Fprintln(r.out, RenderKV("Cost", fmt.Sprintf("~$%.4f", usage.Cost-r.usage.Cost)))
	fmt.Fprintln(r.out, RenderKV("Duration", formatDuration(time.Since(r.start))))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Goodbye!"))
}
