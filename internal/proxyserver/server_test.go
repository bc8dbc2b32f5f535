package proxyserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"aisam/internal/responder"
	"aisam/internal/store"
)

const shared = "shared-secret"

type fakeResponder struct {
	mu      sync.Mutex
	reply   responder.Reply
	err     error
	gate    chan struct{}
	history [][]responder.Turn
}

func (f *fakeResponder) Respond(ctx context.Context, history []responder.Turn) (responder.Reply, error) {
	f.mu.Lock()
	f.history = append(f.history, history)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return responder.Reply{}, ctx.Err()
		}
	}
	return f.reply, f.err
}

func newTestServer(t *testing.T, r *fakeResponder) (*Server, http.Handler, store.Store) {
	t.Helper()
	st := store.NewMemory()
	srv, err := New(Config{DefaultToken: shared, History: 4, Metrics: true}, st, r, nil)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv, srv.Handler(), st
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]string{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func startSession(t *testing.T, h http.Handler) string {
	t.Helper()
	code, out := do(t, h, http.MethodPost, "/submit", `{"token_id":"`+shared+`","new":"`+shared+`"}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out["token_id"], 32)
	return out["token_id"]
}

func check(t *testing.T, h http.Handler, token, id string) (int, map[string]string) {
	t.Helper()
	q := url.Values{"token_id": {token}, "message_id": {id}}
	return do(t, h, http.MethodGet, "/check?"+q.Encode(), "")
}

func TestServer_RoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeResponder{reply: responder.Reply{
		Display: "It’s “fine” — really…",
		Speech:  "ITS FAIN",
	}}
	srv, h, _ := newTestServer(t, r)
	token := startSession(t, h)

	code, out := do(t, h, http.MethodPost, "/submit", `{"token_id":"`+token+`","message":"  hello\tthere\n\n\nfriend  "}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusPending, out["status"])
	require.NotEmpty(t, out["message_id"])
	id := out["message_id"]

	srv.Wait()

	code, out = check(t, h, token, id)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusComplete, out["status"])
	require.Equal(t, "It's 'fine' --- really...", out["text_display"])
	require.Equal(t, "ITS FAIN", out["text_sam"])

	require.Len(t, r.history, 1)
	require.Equal(t, []responder.Turn{{Role: responder.User, Content: "hello there\nfriend"}}, r.history[0])
}

func TestServer_SubmitResponseShape(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, h, _ := newTestServer(t, &fakeResponder{reply: responder.Reply{Display: "x", Speech: "x"}})
	token := startSession(t, h)

	req := httptest.NewRequest(http.MethodPost, "/submit_request.php", strings.NewReader(`{"token_id":"`+token+`","message":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	srv.Wait()

	require.Equal(t, `{"token_id":"`+token+`","message_id":"2","status":"pending"}`+"\n", rec.Body.String())
}

func TestServer_PendingWhileReplying(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeResponder{gate: make(chan struct{}), reply: responder.Reply{Display: "done", Speech: "done"}}
	srv, h, _ := newTestServer(t, r)
	token := startSession(t, h)

	_, out := do(t, h, http.MethodPost, "/submit", `{"token_id":"`+token+`","content":"slow one"}`)
	id := out["message_id"]

	code, out := check(t, h, token, id)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"token_id": token, "status": StatusPending}, out)

	close(r.gate)
	srv.Wait()

	_, out = check(t, h, token, id)
	require.Equal(t, "done", out["text_display"])
}

func TestServer_HistoryCarriesDisplayText(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeResponder{reply: responder.Reply{Display: "first answer", Speech: "FERST"}}
	srv, h, _ := newTestServer(t, r)
	token := startSession(t, h)

	do(t, h, http.MethodPost, "/submit", `{"token_id":"`+token+`","message":"one"}`)
	srv.Wait()
	do(t, h, http.MethodPost, "/submit", `{"token_id":"`+token+`","message":"two"}`)
	srv.Wait()

	require.Len(t, r.history, 2)
	require.Equal(t, []responder.Turn{
		{Role: responder.User, Content: "one"},
		{Role: responder.Assistant, Content: "first answer"},
		{Role: responder.User, Content: "two"},
	}, r.history[1])
}

func TestServer_ResponderErrorIsStored(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, h, _ := newTestServer(t, &fakeResponder{err: errors.New("upstream down")})
	token := startSession(t, h)

	_, out := do(t, h, http.MethodPost, "/submit", `{"token_id":"`+token+`","message":"hi"}`)
	srv.Wait()

	_, out = check(t, h, token, out["message_id"])
	require.Equal(t, StatusComplete, out["status"])
	require.Equal(t, "Error: upstream down", out["text_display"])
	require.Equal(t, "Error", out["text_sam"])
}

func TestServer_NewSessionDropsOldToken(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, h, st := newTestServer(t, &fakeResponder{})
	old := startSession(t, h)

	code, out := do(t, h, http.MethodPost, "/submit", `{"token_id":"`+old+`","new":"`+shared+`"}`)
	require.Equal(t, http.StatusOK, code)
	require.NotEqual(t, old, out["token_id"])

	ok, err := st.TokenExists(context.Background(), old)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServer_SubmitErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, h, _ := newTestServer(t, &fakeResponder{})
	token := startSession(t, h)

	cases := map[string]struct {
		body string
		code int
		want string
	}{
		"bad json":      {`{"token_id":`, http.StatusBadRequest, "Invalid JSON input"},
		"no token":      {`{"message":"hi"}`, http.StatusOK, "Missing token_id"},
		"unknown token": {`{"token_id":"nope","message":"hi"}`, http.StatusOK, "Invalid token"},
		"wrong new":     {`{"token_id":"nope","new":"guess"}`, http.StatusOK, "Invalid token"},
		"no message":    {`{"token_id":"` + token + `"}`, http.StatusOK, "Missing message"},
		"only junk":     {`{"token_id":"` + token + `","message":" \u0001é "}`, http.StatusBadRequest, "Content is empty or contains only invalid characters"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			code, out := do(t, h, http.MethodPost, "/submit", tc.body)
			require.Equal(t, tc.code, code)
			require.Equal(t, tc.want, out["error"])
		})
	}
}

func TestServer_CheckErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, h, _ := newTestServer(t, &fakeResponder{reply: responder.Reply{Display: "a", Speech: "a"}})
	token := startSession(t, h)
	other := startSession(t, h)

	_, out := do(t, h, http.MethodPost, "/submit", `{"token_id":"`+token+`","message":"hi"}`)
	srv.Wait()
	id := out["message_id"]

	code, out := do(t, h, http.MethodGet, "/check?token_id="+token, "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Missing required parameters", out["error"])

	code, out = check(t, h, "nope", id)
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "Invalid token", out["error"])

	for _, tc := range []struct{ token, id string }{
		{other, id},  // not ours
		{token, "1"}, // the user message
		{token, "x"},
		{token, "999"},
	} {
		code, out = check(t, h, tc.token, tc.id)
		require.Equal(t, http.StatusNotFound, code, "id %s", tc.id)
		require.Equal(t, "Message not found or does not belong to this token", out["error"])
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, h, _ := newTestServer(t, &fakeResponder{})

	code, out := do(t, h, http.MethodGet, "/submit", "")
	require.Equal(t, http.StatusMethodNotAllowed, code)
	require.Equal(t, "Method Not Allowed", out["error"])

	code, _ = do(t, h, http.MethodPost, "/check", "")
	require.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestServer_Metrics(t *testing.T) {
	_, h, _ := newTestServer(t, &fakeResponder{})
	startSession(t, h)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "aisam_proxy_sessions_started_total 1")
	require.Contains(t, rec.Body.String(), `endpoint="/submit"`)
}

func TestServer_CloseAbandonsReplies(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeResponder{gate: make(chan struct{})}
	srv, h, _ := newTestServer(t, r)
	token := startSession(t, h)
	do(t, h, http.MethodPost, "/submit", `{"token_id":"`+token+`","message":"hi"}`)

	done := make(chan struct{})
	go func() {
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{DefaultToken: shared}, nil, &fakeResponder{}, nil)
	require.Error(t, err)
	_, err = New(Config{}, store.NewMemory(), &fakeResponder{}, nil)
	require.Error(t, err)
}
