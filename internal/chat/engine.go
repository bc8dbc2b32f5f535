// Package chat runs conversation turns against the proxy: submit the user's
// text, poll until the reply is ready, then hand it to the display and the
// speech device.
package chat

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"aisam/internal/extract"
	"aisam/internal/speech"
	"aisam/internal/translit"
	"aisam/internal/transport"
)

const (
	MaxTokenSize = 64
	MaxTextSize  = 960

	DefaultPollInterval = 6 * time.Second
	DefaultTimeout      = 90 * time.Second

	StatusComplete = "complete"

	maxIDSize     = 63
	maxStatusSize = 31
	maxErrorSize  = 255
)

type State int

const (
	Idle State = iota
	Submitting
	Polling
	Complete
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Polling:
		return "polling"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Transport interface {
	PostJSON(ctx context.Context, target string, body []byte) ([]byte, error)
	Get(ctx context.Context, target string, query url.Values) ([]byte, error)
}

type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
}

// Renderer shows reply text; render.Pager is the terminal implementation.
type Renderer interface {
	Render(text string) error
}

// Voice speaks reply text; speech.Speaker is the device implementation.
type Voice interface {
	Speak(text string) error
}

type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Config struct {
	SubmitURL    string
	CheckURL     string
	DefaultToken string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Turn is the outcome of one Ask. Warnings collect problems that did not
// fail the turn, such as a missing speech text.
type Turn struct {
	State    State
	Reply    Reply
	Polls    int
	Warnings []error
}

func (t *Turn) warn(err error) {
	t.Warnings = append(t.Warnings, err)
}

type Engine struct {
	cfg   Config
	tr    Transport
	store TokenStore
	clock Clock
	table translit.Table

	display Renderer
	voice   Voice

	mu    sync.Mutex
	token string
	state State
	speak bool
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithTable(t translit.Table) Option {
	return func(e *Engine) { e.table = t }
}

func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.display = r }
}

// WithVoice enables speech output through v.
func WithVoice(v Voice) Option {
	return func(e *Engine) {
		e.voice = v
		e.speak = v != nil
	}
}

func NewEngine(cfg Config, tr Transport, store TokenStore, opts ...Option) (*Engine, error) {
	if tr == nil {
		return nil, errors.New("chat: transport must not be nil")
	}
	if store == nil {
		return nil, errors.New("chat: token store must not be nil")
	}
	if strings.TrimSpace(cfg.SubmitURL) == "" || strings.TrimSpace(cfg.CheckURL) == "" {
		return nil, errors.New("chat: submit and check URLs must not be empty")
	}
	if cfg.DefaultToken == "" {
		return nil, errors.New("chat: default token must not be empty")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	e := &Engine{
		cfg:   cfg,
		tr:    tr,
		store: store,
		clock: wallClock{},
		table: translit.Default,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Token() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// State reports where the last turn ended, or where the current one is.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speak
}

// SetSpeaking turns speech output on or off. It stays off without a voice.
func (e *Engine) SetSpeaking(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speak = on && e.voice != nil
}

// Init loads the stored token, or asks the proxy for a new one when none is
// stored. A KindStorage error leaves the engine usable with the new token.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tok, err := e.store.LoadToken(ctx)
	if err == nil && tok != "" {
		e.token = tok
		log.Debug("Loaded token")
		return nil
	}
	log.Debug("No stored token, starting new session", "err", err)

	e.token = e.cfg.DefaultToken
	return e.newConversation(ctx)
}

// NewConversation replaces the token with a fresh one from the proxy. The
// previous token is kept on any exchange failure.
func (e *Engine) NewConversation(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.newConversation(ctx)
}

func (e *Engine) newConversation(ctx context.Context) error {
	const op = "new conversation"

	body, err := e.tr.PostJSON(ctx, e.cfg.SubmitURL, newConversationPayload(e.token, e.cfg.DefaultToken))
	if err != nil {
		return exchangeError(op, err)
	}
	blob := string(body)
	if err := serverError(op, blob); err != nil {
		return err
	}

	tok, err := extract.Field(blob, "token_id", MaxTokenSize)
	if errors.Is(err, extract.ErrNotFound) || tok == "" {
		return newError(KindParse, op, errors.New("response has no token_id"))
	}

	e.token = tok
	log.Info("Started new session")

	if err := e.store.SaveToken(ctx, tok); err != nil {
		return newError(KindStorage, op, err)
	}
	return nil
}

// Ask runs one turn. Submission failures end the turn as Failed; poll
// failures are retried until the reply completes or the timeout passes.
func (e *Engine) Ask(ctx context.Context, input string) (Turn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	turn := Turn{State: Submitting}
	e.state = Submitting

	handle, err := e.submit(ctx, Request{Token: e.token, Message: Escape(input)}, &turn)
	if err != nil {
		return e.finish(turn, Failed), err
	}

	e.state = Polling
	turn.State = Polling
	log.Debug("Submitted", "message_id", handle.MessageID, "status", handle.Status)

	reply, err := e.poll(ctx, handle, &turn)
	if err != nil {
		if IsKind(err, KindTimeout) {
			return e.finish(turn, TimedOut), err
		}
		return e.finish(turn, Failed), err
	}

	turn.Reply = reply
	e.deliver(reply, &turn)
	return e.finish(turn, Complete), nil
}

func (e *Engine) finish(turn Turn, s State) Turn {
	turn.State = s
	e.state = s
	return turn
}

func (e *Engine) submit(ctx context.Context, req Request, turn *Turn) (PollHandle, error) {
	const op = "submit"

	body, err := e.tr.PostJSON(ctx, e.cfg.SubmitURL, req.payload())
	if err != nil {
		return PollHandle{}, exchangeError(op, err)
	}
	blob := string(body)
	if err := serverError(op, blob); err != nil {
		return PollHandle{}, err
	}

	id, err := extract.Field(blob, "message_id", maxIDSize)
	if err != nil || id == "" {
		return PollHandle{}, newError(KindParse, op, errors.New("response has no message_id"))
	}
	status, _ := extract.Field(blob, "status", maxStatusSize)

	if tok, err := extract.Field(blob, "token_id", MaxTokenSize); err == nil && tok != "" && tok != e.token {
		e.token = tok
		if err := e.store.SaveToken(ctx, tok); err != nil {
			turn.warn(newError(KindStorage, op, err))
		}
	}

	return PollHandle{MessageID: id, Status: status}, nil
}

func (e *Engine) poll(ctx context.Context, h PollHandle, turn *Turn) (Reply, error) {
	query := url.Values{
		"token_id":   {e.token},
		"message_id": {h.MessageID},
	}
	start := e.clock.Now()
	deadline := start.Add(e.cfg.Timeout)
	timedOut := func() error {
		elapsed := e.clock.Now().Sub(start)
		return newError(KindTimeout, "poll", fmt.Errorf("no reply after %s", elapsed.Round(time.Second)))
	}

	for {
		if err := e.clock.Sleep(ctx, min(e.cfg.PollInterval, deadline.Sub(e.clock.Now()))); err != nil {
			return Reply{}, newError(KindTransport, "poll", err)
		}
		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		turn.Polls++

		// a stalled check may only use what is left of the timeout
		checkCtx, cancel := context.WithTimeout(ctx, remaining)
		reply, done, err := e.check(checkCtx, query)
		expired := checkCtx.Err() != nil && ctx.Err() == nil
		cancel()

		switch {
		case done:
			return reply, nil
		case expired:
			return Reply{}, timedOut()
		case err != nil:
			log.Warn("Poll failed, retrying", "attempt", turn.Polls, "err", err)
		default:
			log.Debug("Reply pending", "attempt", turn.Polls)
		}

		if !e.clock.Now().Before(deadline) {
			return Reply{}, timedOut()
		}
	}
}

func (e *Engine) check(ctx context.Context, query url.Values) (Reply, bool, error) {
	const op = "poll"

	body, err := e.tr.Get(ctx, e.cfg.CheckURL, query)
	if err != nil {
		return Reply{}, false, exchangeError(op, err)
	}
	blob := string(body)
	if err := serverError(op, blob); err != nil {
		return Reply{}, false, err
	}

	status, err := extract.Field(blob, "status", maxStatusSize)
	if err != nil {
		return Reply{}, false, newError(KindParse, op, errors.New("response has no status"))
	}
	if status != StatusComplete {
		return Reply{}, false, nil
	}

	display, err := extract.Field(blob, "text_display", MaxTextSize)
	if errors.Is(err, extract.ErrNotFound) {
		return Reply{}, false, newError(KindParse, op, errors.New("complete response has no text_display"))
	}
	sam, err := extract.Field(blob, "text_sam", MaxTextSize)
	if errors.Is(err, extract.ErrNotFound) {
		sam = ""
	}

	return Reply{
		Display: e.table.Transliterate(display),
		Speech:  e.table.Transliterate(sam),
	}, true, nil
}

func (e *Engine) deliver(r Reply, turn *Turn) {
	if r.Display == "" {
		turn.warn(ErrNoDisplayText)
	} else if e.display != nil {
		if err := e.display.Render(r.Display); err != nil {
			turn.warn(err)
		}
	}

	if !e.speak {
		return
	}
	if r.Speech == "" {
		turn.warn(ErrNoSpeechText)
		return
	}
	if err := e.voice.Speak(r.Speech); err != nil {
		if errors.Is(err, speech.ErrUnavailable) {
			e.speak = false
		}
		turn.warn(err)
	}
}

// exchangeError classifies a failed request. Refusals that carry the proxy's
// "error" field are server errors; everything else is transport.
func exchangeError(op string, err error) error {
	if body, ok := transport.BodyOf(err); ok && extract.Has(body, "error") {
		return serverError(op, body)
	}
	return newError(KindTransport, op, err)
}

func serverError(op, blob string) error {
	if !extract.Has(blob, "error") {
		return nil
	}
	msg, _ := extract.Field(blob, "error", maxErrorSize)
	return newError(KindServer, op, errors.New(msg))
}
