// Package proxyserver is the HTTP side of the chat proxy. Clients submit a
// message, receive a message id at once and poll until the assistant reply
// produced in the background is complete.
package proxyserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"aisam/internal/responder"
	"aisam/internal/store"
)

const (
	StatusPending  = "pending"
	StatusComplete = "complete"
)

type Responder interface {
	Respond(ctx context.Context, history []responder.Turn) (responder.Reply, error)
}

type Config struct {
	DefaultToken string
	History      int
	ReplyLimit   time.Duration
	Metrics      bool
}

type Server struct {
	cfg       Config
	store     store.Store
	responder Responder
	metrics   *Metrics

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func New(cfg Config, st store.Store, r Responder, m *Metrics) (*Server, error) {
	if st == nil || r == nil {
		return nil, errors.New("proxyserver: store and responder are required")
	}
	if cfg.DefaultToken == "" {
		return nil, errors.New("proxyserver: default token must not be empty")
	}
	if cfg.History < 1 {
		cfg.History = 9
	}
	if cfg.ReplyLimit <= 0 {
		cfg.ReplyLimit = 2 * time.Minute
	}
	if m == nil {
		m = NewMetrics()
	}

	base, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		store:     st,
		responder: r,
		metrics:   m,
		base:      base,
		stop:      stop,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.metrics.middleware)

	for _, path := range []string{"/submit", "/submit_request.php"} {
		r.HandleFunc(path, s.handleSubmit).Methods(http.MethodPost)
	}
	for _, path := range []string{"/check", "/check_request.php"} {
		r.HandleFunc(path, s.handleCheck).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if s.cfg.Metrics {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method Not Allowed"})
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not Found"})
	})
	return r
}

// Wait blocks until every background reply has been stored.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Close abandons replies still in progress and waits for them to finish.
func (s *Server) Close() {
	s.stop()
	s.wg.Wait()
}

type submitRequest struct {
	Token   *string `json:"token_id"`
	New     *string `json:"new"`
	Message string  `json:"message"`
	Content string  `json:"content"`
}

type errorResponse struct {
	Token string `json:"token_id,omitempty"`
	Error string `json:"error"`
}

type tokenResponse struct {
	Token string `json:"token_id"`
}

type submitResponse struct {
	Token     string `json:"token_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type pendingResponse struct {
	Token  string `json:"token_id"`
	Status string `json:"status"`
}

type completeResponse struct {
	Token   string `json:"token_id"`
	Status  string `json:"status"`
	Display string `json:"text_display"`
	Speech  string `json:"text_sam"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		log.Debug("Invalid submit body", "err", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON input"})
		return
	}

	if req.New != nil && *req.New == s.cfg.DefaultToken {
		s.startSession(w, r, req.Token)
		return
	}

	if req.Token == nil {
		writeJSON(w, http.StatusOK, errorResponse{Error: "Missing token_id"})
		return
	}
	token := *req.Token

	ok, err := s.store.TokenExists(ctx, token)
	if err != nil {
		s.storeFailure(w, "token lookup", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, errorResponse{Token: token, Error: "Invalid token"})
		return
	}

	raw := req.Message
	if raw == "" {
		raw = req.Content
	}
	if raw == "" {
		writeJSON(w, http.StatusOK, errorResponse{Token: token, Error: "Missing message"})
		return
	}
	msg := CleanMessage(raw)
	if msg == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Token: token,
			Error: "Content is empty or contains only invalid characters",
		})
		return
	}

	if _, err := s.store.AddMessage(ctx, token, store.RoleUser, msg, false); err != nil {
		s.storeFailure(w, "save message", err)
		return
	}
	id, err := s.store.AddMessage(ctx, token, store.RoleAssistant, "", true)
	if err != nil {
		s.storeFailure(w, "save placeholder", err)
		return
	}

	log.Info("Message submitted", "message_id", id, "bytes", len(msg))

	s.wg.Add(1)
	go s.reply(token, id)

	writeJSON(w, http.StatusOK, submitResponse{
		Token:     token,
		MessageID: strconv.FormatInt(id, 10),
		Status:    StatusPending,
	})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, old *string) {
	ctx := r.Context()

	if old != nil && *old != s.cfg.DefaultToken {
		if err := s.store.DeleteToken(ctx, *old); err != nil {
			log.Warn("Failed to drop old session", "err", err)
		}
	}

	token, err := store.NewToken()
	if err != nil {
		s.storeFailure(w, "new token", err)
		return
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		s.storeFailure(w, "create token", err)
		return
	}
	s.metrics.Sessions.Inc()
	log.Info("Session started")

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	token, rawID := q.Get("token_id"), q.Get("message_id")

	if token == "" || rawID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required parameters"})
		return
	}

	ok, err := s.store.TokenExists(ctx, token)
	if err != nil {
		s.storeFailure(w, "token lookup", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Invalid token"})
		return
	}

	notFound := errorResponse{Token: token, Error: "Message not found or does not belong to this token"}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, notFound)
		return
	}
	msg, err := s.store.Message(ctx, token, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && msg.Role != store.RoleAssistant) {
		writeJSON(w, http.StatusNotFound, notFound)
		return
	}
	if err != nil {
		s.storeFailure(w, "load message", err)
		return
	}

	if msg.Pending {
		writeJSON(w, http.StatusOK, pendingResponse{Token: token, Status: StatusPending})
		return
	}

	display, speech := decodeReply(msg.Content)
	writeJSON(w, http.StatusOK, completeResponse{
		Token:   token,
		Status:  StatusComplete,
		Display: capDisplay(Fold(display)),
		Speech:  capDisplay(Fold(speech)),
	})
}

// decodeReply reads a stored reply. Content that is not a reply object is
// used for both texts.
func decodeReply(content string) (display, speech string) {
	var r responder.Reply
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return content, content
	}
	return r.Display, r.Speech
}

func (s *Server) reply(token string, id int64) {
	defer s.wg.Done()

	s.metrics.Pending.Inc()
	defer s.metrics.Pending.Dec()
	start := time.Now()

	hist, err := s.store.History(s.base, token, id, s.cfg.History)
	if err != nil {
		log.Error("Failed to load history", "message_id", id, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(s.base, s.cfg.ReplyLimit)
	defer cancel()

	reply, err := s.responder.Respond(ctx, turns(hist))
	if err != nil {
		log.Error("Failed to produce reply", "message_id", id, "err", err)
		s.metrics.ReplyErrors.Inc()
		reply = responder.Reply{Display: fmt.Sprintf("Error: %v", err), Speech: "Error"}
	}
	s.metrics.ReplyLatency.Observe(time.Since(start).Seconds())

	blob, err := json.Marshal(reply)
	if err != nil {
		log.Error("Failed to encode reply", "err", err)
		return
	}
	if err := s.store.CompleteMessage(s.base, token, id, string(blob)); err != nil {
		log.Warn("Reply dropped", "message_id", id, "err", err)
		return
	}
	if err := s.store.Prune(s.base, token, s.cfg.History); err != nil {
		log.Warn("Failed to prune history", "err", err)
	}
	log.Info("Reply ready", "message_id", id, "took", time.Since(start).Round(time.Millisecond))
}

func turns(hist []store.Message) []responder.Turn {
	out := make([]responder.Turn, 0, len(hist))
	for _, m := range hist {
		if m.Pending {
			continue
		}
		content := m.Content
		role := responder.User
		if m.Role == store.RoleAssistant {
			role = responder.Assistant
			content, _ = decodeReply(content)
		}
		out = append(out, responder.Turn{Role: role, Content: content})
	}
	return out
}

func (s *Server) storeFailure(w http.ResponseWriter, op string, err error) {
	log.Error("Store failure", "op", op, "err", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Storage unavailable"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Warn("Failed to write response", "err", err)
	}
}
