// Package chat coordinates the timeline, attachments and session binding of
// the active chat and sends turns to the backend.
//
// All state of one chat identity lives in a single chatState value. Switching
// chats swaps that value under the lock, so a chat's messages, previews and
// session are always reset together. The lock is never held across a network
// call; results are applied only if the chatState they were issued for is
// still current.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/set-night/visionchat/internal/attachment"
	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/events"
	"github.com/set-night/visionchat/internal/session"
	"github.com/set-night/visionchat/internal/timeline"
	"github.com/set-night/visionchat/internal/tokens"
)

const (
	// AdvisoryImageRequired is shown when a session-bound chat gets a prompt
	// before its first image.
	AdvisoryImageRequired = "Please upload an image before sending a prompt."
	// FailurePrefix starts the assistant message that reports a failed turn.
	FailurePrefix = "Request failed: "
	// GenericFailure replaces errors that carry no server message.
	GenericFailure = "could not reach the server"

	publishTimeout = 5 * time.Second
)

// Backend is the part of the HTTP collaborator the orchestrator drives.
type Backend interface {
	History(ctx context.Context, roomID string) ([]domain.MessageRecord, error)
	SendRoomMessage(ctx context.Context, roomID string, turn backend.TurnRequest) (backend.RoomReply, error)
	Reason(ctx context.Context, turn backend.TurnRequest) (backend.ReasonReply, error)
	EndReasoning(ctx context.Context, sessionID string) error
}

type Options struct {
	Mode  domain.Mode
	Model string
	// ResolveModel maps a UI model name to the backend model. Nil keeps the
	// name as is.
	ResolveModel    func(string) string
	PreviewDir      string
	MaxImageBytes   int64
	MaxPromptTokens int
	Publisher       events.Publisher
	Logger          *slog.Logger
}

type chatState struct {
	id          domain.ChatIdentity
	binder      *session.Binder
	store       *timeline.Store
	attachments *attachment.Manager
	selected    *domain.ImageFile
	loading     bool
	lastError   string
}

// Orchestrator drives one active chat at a time. It is safe for concurrent
// use.
type Orchestrator struct {
	backend Backend
	opts    Options
	log     *slog.Logger

	mu     sync.Mutex
	state  *chatState
	model  string
	closed bool

	// inflight counts dispatched turns per identity. It outlives chatState
	// so leaving and re-entering a chat keeps its send gate closed.
	inflight map[domain.ChatIdentity]int
}

// New returns an orchestrator with no chat selected.
func New(b Backend, opts Options) *Orchestrator {
	if opts.Mode == "" {
		opts.Mode = domain.ModeRoom
	}
	if opts.ResolveModel == nil {
		opts.ResolveModel = func(s string) string { return s }
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	o := &Orchestrator{
		backend:  b,
		opts:     opts,
		log:      opts.Logger,
		model:    opts.Model,
		inflight: make(map[domain.ChatIdentity]int),
	}
	o.state = o.newState(domain.NoChat)
	return o
}

func (o *Orchestrator) newState(id domain.ChatIdentity) *chatState {
	return &chatState{
		id:          id,
		binder:      session.NewBinder(o.opts.Mode, id),
		store:       timeline.New(),
		attachments: attachment.NewManager(o.opts.PreviewDir, o.opts.MaxImageBytes),
	}
}

func (o *Orchestrator) Mode() domain.Mode {
	return o.opts.Mode
}

func (o *Orchestrator) Chat() domain.ChatIdentity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.id
}

func (o *Orchestrator) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

// SetModel changes the UI model name used by later turns.
func (o *Orchestrator) SetModel(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.model = strings.TrimSpace(name)
}

// SelectFile makes f the image of the next turn, replacing any previous
// selection.
func (o *Orchestrator) SelectFile(f domain.ImageFile) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.state
	switch {
	case o.closed:
		return domain.ErrClosed
	case st.loading:
		return domain.ErrRequestInFlight
	case !st.binder.AcceptsImage():
		return domain.ErrImageLocked
	}
	if err := st.attachments.Validate(&f); err != nil {
		return err
	}
	st.selected = &f
	st.binder.ImageSelected(true)
	return nil
}

// ClearFile drops the selected file, if any.
func (o *Orchestrator) ClearFile() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.selected = nil
	o.state.binder.ImageSelected(false)
}

// Turn is a send that passed local validation and was applied optimistically.
// Run dispatches it.
type Turn struct {
	o          *Orchestrator
	st         *chatState
	req        backend.TurnRequest
	image      *domain.ImageRef
	turnID     string
	started    time.Time
	prompt     string
	hadImage   bool
	dispatched bool
}

// Result is what a resolved turn added to the timeline.
type Result struct {
	Messages  []domain.Message
	SessionID string
	Failed    bool
}

// Send validates prompt, applies it optimistically and dispatches it.
func (o *Orchestrator) Send(ctx context.Context, prompt string) (Result, error) {
	turn, err := o.Prepare(prompt)
	if err != nil {
		return Result{}, err
	}
	return turn.Run(ctx)
}

// Prepare validates prompt without any network I/O. On success the user
// message is already on the timeline and the chat is loading until the
// returned Turn is run.
func (o *Orchestrator) Prepare(prompt string) (*Turn, error) {
	prompt = strings.TrimSpace(prompt)

	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.state
	switch {
	case o.closed:
		return nil, domain.ErrClosed
	case prompt == "":
		return nil, domain.ErrEmptyPrompt
	case st.loading, o.inflight[st.id] > 0:
		return nil, domain.ErrRequestInFlight
	}
	if err := tokens.Check(prompt, o.opts.MaxPromptTokens); err != nil {
		return nil, err
	}

	file := st.selected
	if file != nil && !st.binder.AcceptsImage() {
		file = nil
	}
	if err := st.binder.CheckSend(file != nil); err != nil {
		if errors.Is(err, domain.ErrImageRequired) {
			st.store.AppendOptimistic(st.store.NewMessage(domain.RoleAssistant, AdvisoryImageRequired, nil))
		}
		return nil, err
	}

	var ref *domain.ImageRef
	if file != nil {
		pending, err := st.attachments.Select(*file)
		if err != nil {
			return nil, err
		}
		r := st.attachments.Consume(pending)
		ref = &r
	}

	st.store.AppendOptimistic(st.store.NewMessage(domain.RoleUser, prompt, ref))
	st.store.SetError("")
	st.lastError = ""
	st.loading = true
	o.inflight[st.id]++

	req := backend.TurnRequest{
		Prompt: prompt,
		Model:  o.opts.ResolveModel(o.model),
	}
	if file != nil {
		req.Image = file
	} else if s, ok := st.binder.Session(); ok {
		req.SessionID = s.ID
	}

	return &Turn{
		o:        o,
		st:       st,
		req:      req,
		image:    ref,
		turnID:   uuid.NewString(),
		started:  time.Now(),
		prompt:   prompt,
		hadImage: file != nil,
	}, nil
}

// Run dispatches the turn and applies its outcome. A result for a chat that
// is no longer active is discarded and reported as ErrStaleChat. A failed
// request leaves an assistant message describing the failure on the
// timeline and returns the request error.
func (t *Turn) Run(ctx context.Context) (Result, error) {
	if t.dispatched {
		return Result{}, errors.New("turn already dispatched")
	}
	t.dispatched = true

	o := t.o
	var (
		roomReply   backend.RoomReply
		reasonReply backend.ReasonReply
		err         error
	)
	if o.opts.Mode == domain.ModeSession {
		reasonReply, err = o.backend.Reason(ctx, t.req)
	} else {
		roomReply, err = o.backend.SendRoomMessage(ctx, string(t.st.id), t.req)
	}

	o.mu.Lock()
	o.release(t.st.id)
	if o.closed || o.state != t.st {
		t.st.loading = false
		// The chat was left and entered again while this turn ran. The room
		// stored the turn, so the fresh timeline is reloaded to show it.
		current := o.state
		reload := err == nil && !o.closed && o.opts.Mode == domain.ModeRoom &&
			current.id == t.st.id && !current.loading
		if reload {
			current.loading = true
		}
		o.mu.Unlock()
		o.log.Info("discarding result for inactive chat", "chat_id", t.st.id.String(), "turn_id", t.turnID)
		if err == nil && t.hadImage && reasonReply.SessionID != "" {
			session.Teardown(context.WithoutCancel(ctx), o.backend, reasonReply.SessionID, o.log)
		}
		if reload {
			if loadErr := o.load(context.WithoutCancel(ctx), current); loadErr != nil {
				o.log.Warn("reload after re-entered chat", "chat_id", current.id.String(), "error", loadErr)
			}
		}
		return Result{}, domain.ErrStaleChat
	}

	var res Result
	if err != nil {
		res = t.fail(err)
	} else if o.opts.Mode == domain.ModeSession {
		res = t.applyReason(reasonReply)
	} else {
		res = t.applyRoom(roomReply)
	}
	t.st.loading = false
	data := t.eventData(res, err)
	o.mu.Unlock()

	if err != nil {
		o.log.Warn("turn failed", "chat_id", data.ChatID, "mode", data.Mode, "duration", time.Since(t.started), "error", err)
	} else {
		o.log.Info("turn completed", "chat_id", data.ChatID, "mode", data.Mode, "duration", time.Since(t.started))
	}
	o.publish(ctx, t.turnID, data)
	return res, err
}

// release closes the send gate of id once its turn resolved. Runs with
// o.mu held.
func (o *Orchestrator) release(id domain.ChatIdentity) {
	if o.inflight[id] <= 1 {
		delete(o.inflight, id)
		return
	}
	o.inflight[id]--
}

// fail and the apply methods run with o.mu held.
func (t *Turn) fail(err error) Result {
	st := t.st
	st.lastError = errorText(err)
	msg := st.store.NewMessage(domain.RoleAssistant, FailurePrefix+st.lastError, nil)
	st.store.AppendOptimistic(msg)
	return Result{Messages: []domain.Message{msg}, Failed: true}
}

// applyRoom appends the assistant reply. The server echo of the user turn is
// dropped because the optimistic copy is already shown.
func (t *Turn) applyRoom(reply backend.RoomReply) Result {
	st := t.st
	var records []domain.MessageRecord
	if reply.AssistantMessage != nil {
		records = append(records, *reply.AssistantMessage)
	}
	added := st.store.AppendConfirmed(records...)
	if t.hadImage {
		st.selected = nil
	}
	return Result{Messages: added}
}

func (t *Turn) applyReason(reply backend.ReasonReply) Result {
	st := t.st
	text := strings.TrimSpace(reply.LLMResponse)
	if text == "" {
		model := reply.Model
		if model == "" {
			model = t.req.Model
		}
		text = fmt.Sprintf("Analysis completed with %s.", model)
	}
	added := st.store.AppendConfirmed(domain.MessageRecord{
		Role:    string(domain.RoleAssistant),
		Content: text,
	})

	res := Result{Messages: added}
	if t.hadImage {
		if st.binder.Activate(reply.SessionID, *t.image) {
			res.SessionID = reply.SessionID
		}
		st.selected = nil
		st.binder.ImageSelected(false)
	}
	return res
}

func (t *Turn) eventData(res Result, err error) events.TurnData {
	data := events.TurnData{
		ChatID:      string(t.st.id),
		Mode:        string(t.o.opts.Mode),
		PromptChars: utf8.RuneCountInString(t.prompt),
		HadImage:    t.hadImage,
	}
	if s, ok := t.st.binder.Session(); ok {
		data.SessionID = s.ID
	}
	if err != nil {
		data.Error = errorText(err)
	}
	return data
}

func (o *Orchestrator) publish(ctx context.Context, turnID string, data events.TurnData) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	env := events.NewTurnEnvelope(turnID, data, time.Now())
	if err := o.opts.Publisher.Publish(ctx, env.Meta.Type, env); err != nil {
		o.log.Warn("publish turn event", "type", env.Meta.Type, "error", err)
	}
}

// SwitchChat makes id the active chat. The previous chat's session is ended,
// its previews removed and its timeline dropped before id's history is
// requested. Switching to the active chat is a no-op.
func (o *Orchestrator) SwitchChat(ctx context.Context, id domain.ChatIdentity) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domain.ErrClosed
	}
	if o.state.id == id {
		o.mu.Unlock()
		return nil
	}

	old := o.state
	ended, hadSession := old.binder.Detach()
	released := old.attachments.ReleaseAll()
	old.selected = nil

	next := o.newState(id)
	loadHistory := o.opts.Mode == domain.ModeRoom && !id.IsZero()
	next.loading = loadHistory
	o.state = next
	o.mu.Unlock()

	o.log.Debug("chat switched", "from", old.id.String(), "to", id.String(), "released_previews", released)
	if hadSession {
		session.Teardown(ctx, o.backend, ended.ID, o.log)
	}
	if !loadHistory {
		return nil
	}
	return o.load(ctx, next)
}

// Reload fetches the active room's history again.
func (o *Orchestrator) Reload(ctx context.Context) error {
	o.mu.Lock()
	st := o.state
	switch {
	case o.closed:
		o.mu.Unlock()
		return domain.ErrClosed
	case st.loading, o.inflight[st.id] > 0:
		o.mu.Unlock()
		return domain.ErrRequestInFlight
	case o.opts.Mode != domain.ModeRoom || st.id.IsZero():
		o.mu.Unlock()
		return nil
	}
	st.loading = true
	o.mu.Unlock()

	return o.load(ctx, st)
}

// load runs with st.loading set and clears it.
func (o *Orchestrator) load(ctx context.Context, st *chatState) error {
	records, err := o.backend.History(ctx, string(st.id))

	o.mu.Lock()
	defer o.mu.Unlock()

	st.loading = false
	if o.closed || o.state != st {
		return domain.ErrStaleChat
	}
	if err != nil {
		st.lastError = errorText(err)
		st.store.SetError(st.lastError)
		o.log.Warn("load history", "chat_id", st.id.String(), "error", err)
		return err
	}
	st.lastError = ""
	st.store.SetError("")
	st.store.Load(records)
	return nil
}

// Close ends the active session and removes all previews. Later calls
// return ErrClosed; Close itself is idempotent.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	st := o.state
	ended, hadSession := st.binder.Detach()
	st.attachments.ReleaseAll()
	st.selected = nil
	o.mu.Unlock()

	if hadSession {
		session.Teardown(ctx, o.backend, ended.ID, o.log)
	}
	return nil
}

// Snapshot is a consistent view of the active chat.
type Snapshot struct {
	Chat         domain.ChatIdentity
	Mode         domain.Mode
	State        session.State
	SessionID    string
	Model        string
	Messages     []domain.Message
	Loading      bool
	Error        string
	FileName     string
	HasFile      bool
	AcceptsImage bool
	Closed       bool
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.state
	snap := Snapshot{
		Chat:         st.id,
		Mode:         o.opts.Mode,
		State:        st.binder.State(),
		Model:        o.model,
		Messages:     st.store.Messages(),
		Loading:      st.loading || o.inflight[st.id] > 0,
		Error:        st.lastError,
		HasFile:      st.selected != nil,
		AcceptsImage: st.binder.AcceptsImage(),
		Closed:       o.closed,
	}
	if s, ok := st.binder.Session(); ok {
		snap.SessionID = s.ID
	}
	if st.selected != nil {
		snap.FileName = st.selected.Name
	}
	return snap
}

// Outstanding reports how many preview files the active chat holds.
func (o *Orchestrator) Outstanding() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.attachments.Outstanding()
}

// errorText is the user-facing text of a backend failure. Transport details
// only go to the log.
func errorText(err error) string {
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, domain.ErrNoCredential):
		return "no API token is set"
	case errors.Is(err, context.DeadlineExceeded):
		return "the server did not answer in time"
	default:
		return GenericFailure
	}
}
