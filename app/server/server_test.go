package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsrag/app/api"
	"newsrag/logger"
	"newsrag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	reply     string
	answerErr error
	history   []types.Message
	cleared   []string

	gotSession, gotMessage string
}

func (f *fakeEngine) Answer(_ context.Context, sessionID, message string) (string, error) {
	f.gotSession, f.gotMessage = sessionID, message
	return f.reply, f.answerErr
}

func (f *fakeEngine) History(context.Context, string) ([]types.Message, error) {
	return f.history, nil
}

func (f *fakeEngine) ClearSession(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func newTestApp(engine *fakeEngine) *fiber.App {
	return NewApp(engine, types.ServerConfig{APIPrefix: "/api"}, logger.Discard())
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	status, raw := doRaw(t, app, method, path, body)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return status, out
}

func doRaw(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestChatReturnsReply(t *testing.T) {
	engine := &fakeEngine{reply: "Markets rallied."}
	status, body := do(t, newTestApp(engine), http.MethodPost, "/api/chat",
		`{"message":"What happened to markets?","sessionId":"abc"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Markets rallied.", body["reply"])
	assert.Equal(t, "abc", engine.gotSession)
	assert.Equal(t, "What happened to markets?", engine.gotMessage)
}

func TestChatRejectsBadInput(t *testing.T) {
	engine := &fakeEngine{}
	app := newTestApp(engine)

	status, body := do(t, app, http.MethodPost, "/api/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid JSON request", body["error"])

	for _, payload := range []string{
		`{"message":"hi"}`,
		`{"sessionId":"abc"}`,
		`{"message":"   ","sessionId":"abc"}`,
		`{"message":"hi","sessionId":"\t"}`,
	} {
		status, body = do(t, app, http.MethodPost, "/api/chat", payload)
		assert.Equal(t, http.StatusBadRequest, status, payload)
		assert.Equal(t, "Message and sessionId are required", body["error"], payload)
	}

	status, body = do(t, app, http.MethodPost, "/api/chat",
		`{"message":"hi","sessionId":"`+strings.Repeat("a", 129)+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "SessionID")

	assert.Empty(t, engine.gotSession, "invalid requests never reach the engine")
}

func TestChatQueryFailureIsGeneric(t *testing.T) {
	engine := &fakeEngine{answerErr: types.NewQueryError("search", errors.New("qdrant: connection refused"))}
	status, body := do(t, newTestApp(engine), http.MethodPost, "/api/chat",
		`{"message":"hi","sessionId":"abc"}`)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Something went wrong processing your request.", body["error"])
	assert.NotContains(t, body["error"], "qdrant")
}

func TestSessionHistoryAndClear(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	engine := &fakeEngine{history: []types.Message{
		{Sender: types.SenderUser, Text: "q", CreatedAt: at},
		{Sender: types.SenderBot, Text: "a", CreatedAt: at},
	}}
	app := newTestApp(engine)

	status, raw := doRaw(t, app, http.MethodGet, "/api/session/abc", "")
	assert.Equal(t, http.StatusOK, status)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(raw, &history))
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0]["sender"])
	assert.Equal(t, "q", history[0]["text"])
	assert.Equal(t, "bot", history[1]["sender"])

	status, body := do(t, app, http.MethodDelete, "/api/session/abc", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Session cleared", body["message"])
	assert.Equal(t, []string{"abc"}, engine.cleared)
}

func TestSessionHistoryEmptyIsArray(t *testing.T) {
	status, raw := doRaw(t, newTestApp(&fakeEngine{}), http.MethodGet, "/api/session/nobody", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestHealthCheckAndUnknownRoute(t *testing.T) {
	app := newTestApp(&fakeEngine{})

	status, body := do(t, app, http.MethodGet, "/check/healthy", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["result"])

	status, body = do(t, app, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.EqualValues(t, http.StatusNotFound, body["code"])
}

func TestReadyReportsFailingBackends(t *testing.T) {
	up := api.Check{Name: "redis", Ping: func(context.Context) error { return nil }}
	down := api.Check{Name: "index", Ping: func(context.Context) error { return errors.New("dial tcp: refused") }}

	app := NewApp(&fakeEngine{}, types.ServerConfig{APIPrefix: "/api"}, logger.Discard(), up)
	status, body := do(t, app, http.MethodGet, "/check/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["result"])

	app = NewApp(&fakeEngine{}, types.ServerConfig{APIPrefix: "/api"}, logger.Discard(), up, down)
	status, body = do(t, app, http.MethodGet, "/check/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["result"])
	assert.Equal(t, []any{"index"}, body["failed"])
}

func TestRateLimit(t *testing.T) {
	app := NewApp(&fakeEngine{}, types.ServerConfig{APIPrefix: "/api", RateLimitMax: 1}, logger.Discard())

	status, _ := do(t, app, http.MethodGet, "/check/healthy", "")
	assert.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/check/healthy", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
