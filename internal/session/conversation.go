// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/neuron/internal/cloud"
	"github.com/jeranaias/neuron/internal/model"
	"github.com/jeranaias/neuron/internal/util"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Completer produces an assistant reply for a history.
type Completer interface {
	Complete(ctx context.Context, history []model.Turn, apiKey string, params cloud.Params) (*cloud.Reply, error)
}

// Store persists sessions.
type Store interface {
	Upsert(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id string) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the settings a conversation reads on every send.
type Config struct {
	// APIKey returns the current credential. It is called per send so a
	// key changed mid-session takes effect immediately.
	APIKey func() string

	// Params are the generation parameters. The session's model id, when
	// set, overrides Params.Model.
	Params cloud.Params

	// SystemPrompt is prepended to every request when non-empty. It is not
	// stored in the session.
	SystemPrompt string

	// TitleWords is how many words a derived title keeps.
	TitleWords int

	// AutoSave persists after every completed reply.
	AutoSave bool

	// Now is the clock used for turn and session timestamps.
	Now func() time.Time

	// OnStateChange, when set, is called on every transition while the
	// conversation lock is held. It must not call back into the conversation.
	OnStateChange func(from, to State)
}

// DefaultConfig returns the default conversation configuration.
func DefaultConfig() Config {
	return Config{
		APIKey:     func() string { return "" },
		TitleWords: model.DefaultTitleWords,
		AutoSave:   true,
		Now:        model.Now,
	}
}

// =============================================================================
// STATE
// =============================================================================

// State is the conversation's position in the send cycle.
type State int

const (
	// StateIdle accepts a new user turn.
	StateIdle State = iota

	// StateAwaitingReply has an unanswered user turn with a request pending
	// or about to start.
	StateAwaitingReply

	// StateError is passed through when a request fails, before returning
	// to StateIdle.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation owns one open session. All methods are safe for concurrent
// use.
type Conversation struct {
	mu sync.Mutex

	sess      *model.Session
	completer Completer
	store     Store
	cfg       Config

	state      State
	requesting bool
	notice     string

	// epoch increments on Clear and Delete; a reply for an older epoch is
	// dropped.
	epoch   int
	closed  bool
	deleted bool

	life     context.Context
	stopLife context.CancelFunc
	inflight sync.WaitGroup
}

// New opens sess for chatting. Zero-valued Config fields take their
// DefaultConfig values.
func New(sess *model.Session, completer Completer, store Store, cfg Config) *Conversation {
	def := DefaultConfig()
	if cfg.APIKey == nil {
		cfg.APIKey = def.APIKey
	}
	if cfg.TitleWords <= 0 {
		cfg.TitleWords = def.TitleWords
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if sess.Turns == nil {
		sess.Turns = []model.Turn{}
	}

	life, stop := context.WithCancel(context.Background())
	return &Conversation{
		sess:      sess,
		completer: completer,
		store:     store,
		cfg:       cfg,
		life:      life,
		stopLife:  stop,
	}
}

// ID returns the session id.
func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.ID
}

// State returns the current state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the session.
func (c *Conversation) Snapshot() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// Notice returns the last user-visible error message, or "".
func (c *Conversation) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// DismissNotice clears the notice.
func (c *Conversation) DismissNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = ""
}

// SetConfig replaces the configuration, for example after a config reload.
// It applies from the next send.
func (c *Conversation) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.APIKey == nil {
		cfg.APIKey = c.cfg.APIKey
	}
	if cfg.TitleWords <= 0 {
		cfg.TitleWords = c.cfg.TitleWords
	}
	if cfg.Now == nil {
		cfg.Now = c.cfg.Now
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = c.cfg.OnStateChange
	}
	c.cfg = cfg
}

func (c *Conversation) setState(to State) {
	from := c.state
	c.state = to
	if from != to && c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(from, to)
	}
}

func (c *Conversation) usable() error {
	if c.deleted {
		return ErrDeleted
	}
	if c.closed {
		return ErrClosed
	}
	return nil
}

// =============================================================================
// SENDING
// =============================================================================

// AppendUserTurn appends text as a user turn and moves to StateAwaitingReply.
// Blank text, a pending reply, or a closed conversation leave everything
// unchanged and return false. Call Reply to request the answer.
func (c *Conversation) AppendUserTurn(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.usable() != nil || c.state == StateAwaitingReply || c.requesting {
		return false
	}
	return c.appendUserLocked(text)
}

func (c *Conversation) appendUserLocked(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	now := c.cfg.Now()
	c.sess.Turns = append(c.sess.Turns, model.Turn{
		ID:        util.NewID(),
		Role:      model.RoleUser,
		Content:   text,
		CreatedAt: now,
	})
	c.sess.UpdatedAt = now
	if c.sess.HasDefaultTitle() {
		c.sess.Title = c.sess.DeriveTitle(c.cfg.TitleWords)
	}
	c.setState(StateAwaitingReply)
	return true
}

// Send appends text as a user turn and waits for the assistant reply.
//
// Only one send may be pending: a concurrent call returns ErrBusy without
// touching the session. On failure the user turn stays in place, the error
// is recorded as the notice, and the state returns to idle. When AutoSave is
// on and the save after a reply fails, both the reply turn and a
// *PersistenceError are returned.
func (c *Conversation) Send(ctx context.Context, text string) (*model.Turn, error) {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.state == StateAwaitingReply || c.requesting {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if !c.appendUserLocked(text) {
		c.mu.Unlock()
		return nil, ErrEmptyInput
	}
	return c.startLocked(ctx)
}

// Reply requests the answer to a user turn added with AppendUserTurn.
func (c *Conversation) Reply(ctx context.Context) (*model.Turn, error) {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.requesting {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.state != StateAwaitingReply {
		c.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	return c.startLocked(ctx)
}

// Retry re-sends the history when the last turn is an unanswered user turn,
// typically after a failed send. No new turn is appended.
func (c *Conversation) Retry(ctx context.Context) (*model.Turn, error) {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.state == StateAwaitingReply || c.requesting {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	n := len(c.sess.Turns)
	if n == 0 || c.sess.Turns[n-1].Role != model.RoleUser {
		c.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	c.setState(StateAwaitingReply)
	return c.startLocked(ctx)
}

// startLocked runs the request. It is entered with c.mu held and returns
// with it released.
func (c *Conversation) startLocked(ctx context.Context) (*model.Turn, error) {
	c.requesting = true
	c.inflight.Add(1)
	defer c.inflight.Done()

	epoch := c.epoch
	history := c.historyLocked()
	key := c.cfg.APIKey()
	params := c.cfg.Params
	if c.sess.ModelID != "" {
		params.Model = c.sess.ModelID
	}
	c.mu.Unlock()

	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	reply, err := c.completer.Complete(reqCtx, history, key, params)
	stop()
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requesting = false

	if c.closed || c.deleted || c.epoch != epoch {
		if c.state == StateAwaitingReply {
			c.setState(StateIdle)
		}
		return nil, ErrDiscarded
	}

	if err != nil {
		c.notice = err.Error()
		c.setState(StateError)
		c.setState(StateIdle)
		return nil, err
	}

	now := c.cfg.Now()
	turn := model.Turn{
		ID:        util.NewID(),
		Role:      model.RoleAssistant,
		Content:   reply.Text,
		CreatedAt: now,
	}
	c.sess.Turns = append(c.sess.Turns, turn)
	c.sess.UpdatedAt = now
	c.notice = ""
	c.setState(StateIdle)

	if c.cfg.AutoSave {
		if perr := c.persistLocked(ctx, "auto-save"); perr != nil {
			return &turn, perr
		}
	}
	return &turn, nil
}

// historyLocked returns the turns to send, with the system prompt first.
func (c *Conversation) historyLocked() []model.Turn {
	history := make([]model.Turn, 0, len(c.sess.Turns)+1)
	if prompt := strings.TrimSpace(c.cfg.SystemPrompt); prompt != "" {
		if len(c.sess.Turns) == 0 || c.sess.Turns[0].Role != model.RoleSystem {
			history = append(history, model.Turn{Role: model.RoleSystem, Content: prompt})
		}
	}
	return append(history, c.sess.Turns...)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Persist derives the title if it is still the default, then saves.
func (c *Conversation) Persist(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return ErrDeleted
	}
	return c.persistLocked(ctx, "save")
}

func (c *Conversation) persistLocked(ctx context.Context, op string) error {
	if c.sess.HasDefaultTitle() {
		if _, ok := c.sess.FirstUserTurn(); ok {
			c.sess.Title = c.sess.DeriveTitle(c.cfg.TitleWords)
		}
	}
	if err := c.store.Upsert(ctx, c.sess.Clone()); err != nil {
		perr := &PersistenceError{Op: op, Err: err}
		c.notice = perr.Error()
		return perr
	}
	return nil
}

// mutate applies fn and saves immediately.
func (c *Conversation) mutate(ctx context.Context, op string, fn func(s *model.Session) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	if err := fn(c.sess); err != nil {
		c.notice = err.Error()
		return err
	}
	c.sess.UpdatedAt = c.cfg.Now()
	return c.persistLocked(ctx, op)
}

// ChangeModel switches the model used for the next send.
func (c *Conversation) ChangeModel(ctx context.Context, id string) error {
	return c.mutate(ctx, "change model", func(s *model.Session) error {
		id = strings.TrimSpace(id)
		if id == "" {
			return ErrEmptyModel
		}
		s.ModelID = id
		return nil
	})
}

// TogglePin flips the pinned flag and returns the new value.
func (c *Conversation) TogglePin(ctx context.Context) (bool, error) {
	var pinned bool
	err := c.mutate(ctx, "toggle pin", func(s *model.Session) error {
		s.Pinned = !s.Pinned
		pinned = s.Pinned
		return nil
	})
	return pinned, err
}

// Rename sets the title.
func (c *Conversation) Rename(ctx context.Context, title string) error {
	return c.mutate(ctx, "rename", func(s *model.Session) error {
		title = strings.TrimSpace(title)
		if title == "" {
			return ErrEmptyTitle
		}
		s.Title = title
		return nil
	})
}

// SetArchived archives or restores the session.
func (c *Conversation) SetArchived(ctx context.Context, archived bool) error {
	return c.mutate(ctx, "archive", func(s *model.Session) error {
		s.Archived = archived
		return nil
	})
}

// SetFolder files the session under folder; "" removes it from any folder.
func (c *Conversation) SetFolder(ctx context.Context, folder string) error {
	return c.mutate(ctx, "move to folder", func(s *model.Session) error {
		s.Folder = strings.TrimSpace(folder)
		return nil
	})
}

// Clear drops every turn. A pending reply is discarded when it arrives.
func (c *Conversation) Clear(ctx context.Context) error {
	return c.mutate(ctx, "clear", func(s *model.Session) error {
		s.Clear()
		c.epoch++
		c.setState(StateIdle)
		return nil
	})
}

// Delete removes the session from the store. The conversation is unusable
// afterwards.
func (c *Conversation) Delete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.usable(); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, c.sess.ID); err != nil {
		perr := &PersistenceError{Op: "delete", Err: err}
		c.notice = perr.Error()
		return perr
	}
	c.deleted = true
	c.epoch++
	c.stopLife()
	c.setState(StateIdle)
	return nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Close cancels any pending request, waits for it to finish, and saves the
// session. A reply arriving after Close is dropped. Close is idempotent.
func (c *Conversation) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopLife()
	c.mu.Unlock()

	c.inflight.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted || len(c.sess.Turns) == 0 {
		return nil
	}
	return c.persistLocked(ctx, "close")
}
