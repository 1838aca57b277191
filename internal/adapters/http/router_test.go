package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/one-word-story/internal/app"
	"github.com/dkeye/one-word-story/internal/app/orch"
	"github.com/dkeye/one-word-story/internal/config"
	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
)

func newTestRouter(t *testing.T) (http.Handler, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>One Word Story</h1>"), 0o644))
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: static,
		ReadLimit:  4096,
		PingPeriod: time.Minute,
		Secret:     "test-secret",
		SendBuffer: 16,
	}
	sink := app.NewLogSink()
	mgr := app.NewRoomManager(context.Background(), core.RoomConfig{Sink: sink})
	o := &orch.Orchestrator{Registry: app.NewRegistry(), Rooms: mgr, AutoCreate: true}
	mgr.SetObserver(o)
	t.Cleanup(mgr.Shutdown)
	return SetupRouter(context.Background(), cfg, o, sink), o
}

func do(t *testing.T, h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Healthz(t *testing.T) {
	h, _ := newTestRouter(t)
	w := do(t, h, http.MethodGet, "/api/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_ServesClient(t *testing.T) {
	h, _ := newTestRouter(t)

	w := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "One Word Story")

	w = do(t, h, http.MethodGet, "/static/index.html", "")
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}

func TestRouter_RoomsAndStory(t *testing.T) {
	h, o := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/rooms", `{"name":"Bedtime"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Bedtime", created.Name)
	require.NotEmpty(t, created.ID)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "session cookie carries the client token")

	// same session, same owner
	w = do(t, h, http.MethodPost, "/api/rooms", `{"name":"Second"}`, cookies...)
	require.Equal(t, http.StatusCreated, w.Code)
	var second struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	first, ok := o.Rooms.GetRoom(domain.RoomID(created.ID))
	require.True(t, ok)
	other, ok := o.Rooms.GetRoom(domain.RoomID(second.ID))
	require.True(t, ok)
	assert.Equal(t, first.Room().Owner, other.Room().Owner)

	w = do(t, h, http.MethodPost, "/api/rooms", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/api/rooms", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []core.RoomInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	w = do(t, h, http.MethodGet, "/api/rooms/"+created.ID+"/story", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"room_id":"`+created.ID+`","pages":[]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/rooms/nope/story", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"room_not_found"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats["rooms"])
	assert.Contains(t, stats, "words_accepted")
}

func TestRouter_WebsocketUsesSessionIdentity(t *testing.T) {
	h, _ := newTestRouter(t)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)

	header := http.Header{}
	for _, c := range cookies {
		header.Add("Cookie", (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"

	whoami := func() map[string]any {
		ws, _, err := websocket.DefaultDialer.Dial(url, header)
		require.NoError(t, err)
		defer ws.Close()
		require.NoError(t, ws.WriteJSON(map[string]any{"type": "whoami"}))
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var who map[string]any
		require.NoError(t, ws.ReadJSON(&who))
		return who
	}

	first, second := whoami(), whoami()
	assert.Equal(t, "whoami", first["type"])
	_, err = uuid.Parse(first["identity"].(string))
	assert.NoError(t, err, "fresh sessions get a random identity")
	assert.Equal(t, first["identity"], second["identity"], "a reconnect keeps its identity")
	assert.Equal(t, "guest", first["display_name"])
}
