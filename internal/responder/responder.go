// Package responder produces assistant replies for the proxy. It drives a
// chat model through a small tool loop (time lookup, web search) until the
// model answers with a display text and a phonetic speech text.
package responder

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"
)

type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
}

type Reply struct {
	Display string `json:"text_display"`
	Speech  string `json:"text_sam"`
}

// Tool is a function offered to the model. Parameters is a JSON schema.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Call is a function call the model answered with. Arguments is the raw
// JSON the model produced and may be malformed.
type Call struct {
	Name      string
	Arguments string
}

// Completion is one model answer. Call is set when the model chose a
// function; Content may still carry text alongside it.
type Completion struct {
	Content string
	Call    *Call
}

// Completer runs one chat completion, offering tools to the model.
type Completer interface {
	Complete(ctx context.Context, model string, turns []Turn, tools []Tool) (Completion, error)
}

const (
	DefaultSearchModel = "gpt-4o-mini-search-preview"
	DefaultMaxSearches = 2
	DefaultMaxRounds   = 12
)

type Responder struct {
	llm         Completer
	model       string
	searchModel string
	maxSearches int
	maxRounds   int
	now         func() time.Time
}

type Option func(*Responder)

func WithSearchModel(m string) Option {
	return func(r *Responder) { r.searchModel = m }
}

func WithMaxSearches(n int) Option {
	return func(r *Responder) { r.maxSearches = n }
}

func WithClock(now func() time.Time) Option {
	return func(r *Responder) { r.now = now }
}

func New(llm Completer, model string, opts ...Option) (*Responder, error) {
	if llm == nil {
		return nil, errors.New("responder: completer must not be nil")
	}
	if model == "" {
		return nil, errors.New("responder: model must not be empty")
	}
	r := &Responder{
		llm:         llm,
		model:       model,
		searchModel: DefaultSearchModel,
		maxSearches: DefaultMaxSearches,
		maxRounds:   DefaultMaxRounds,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Respond answers the last user turn of history.
func (r *Responder) Respond(ctx context.Context, history []Turn) (Reply, error) {
	turns := make([]Turn, 0, len(history)+4)
	turns = append(turns, Turn{Role: System, Content: systemPrompt(r.maxSearches)})
	for _, t := range history {
		if c := strings.TrimSpace(t.Content); c != "" {
			turns = append(turns, Turn{Role: t.Role, Content: c})
		}
	}

	searches := 0
	for round := 1; round <= r.maxRounds; round++ {
		res, err := r.llm.Complete(ctx, r.model, turns, tools)
		if err != nil {
			return Reply{}, fmt.Errorf("round %d: %w", round, err)
		}
		content := strings.TrimSpace(res.Content)
		log.Debug("Model answered", "round", round, "data", content, "call", res.Call)

		a, ok := parse(content)
		if res.Call != nil {
			if res.Call.Name == toolCompose {
				return composed(res.Call.Arguments, content), nil
			}
			if ca, known := fromCall(*res.Call); known {
				a, ok = ca, true
				content = ca.record()
			}
		}

		switch {
		case ok && a.Action == actionTime:
			turns = append(turns,
				Turn{Role: Assistant, Content: content},
				Turn{Role: System, Content: "Current UTC time: " + r.now().UTC().Format("2006-01-02 15:04:05") + " UTC"})
		case ok && a.Action == actionSearch:
			searches++
			turns = append(turns, Turn{Role: Assistant, Content: content})
			if searches > r.maxSearches {
				turns = append(turns, Turn{Role: System, Content: "Search limit reached. Answer using what you already know."})
				continue
			}
			turns = append(turns, Turn{Role: System, Content: "Search result: " + r.search(ctx, a.Query)})
		case ok && a.Display != "":
			if a.Speech == "" {
				a.Speech = a.Display
			}
			return Reply{Display: a.Display, Speech: a.Speech}, nil
		case !ok && content != "":
			return Reply{Display: content, Speech: content}, nil
		default:
			if content != "" {
				turns = append(turns, Turn{Role: Assistant, Content: content})
			}
			turns = append(turns, Turn{Role: System, Content: finishNudge})
		}
	}

	return Reply{}, fmt.Errorf("no reply after %d rounds", r.maxRounds)
}

func (r *Responder) search(ctx context.Context, query string) string {
	res, err := r.llm.Complete(ctx, r.searchModel, []Turn{
		{Role: System, Content: searchPrompt},
		{Role: User, Content: query},
	}, nil)
	text := strings.TrimSpace(res.Content)
	if err != nil || text == "" {
		log.Warn("Web search failed", "query", query, "err", err)
		return "No results found."
	}
	log.Debug("Web search", "query", query)
	return text
}
