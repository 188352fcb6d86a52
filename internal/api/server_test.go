package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-lgtv/internal/auth"
	"github.com/nerrad567/gray-logic-lgtv/internal/bridges/lgtv"
	"github.com/nerrad567/gray-logic-lgtv/internal/entry"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lgtv/internal/rs232"
	"github.com/nerrad567/gray-logic-lgtv/migrations"
)

const (
	testPort    = "/dev/ttyUSB0"
	deadPort    = "/dev/ttyUSB1"
	testSecret  = "test-secret-key-at-least-32-characters-long"
	mediaPlayer = "lg_tv_1_media_player"
)

// fakeLink is an in-memory set. It acknowledges everything unless nack
// names the command, and applies power, volume and input changes.
type fakeLink struct {
	mu     sync.Mutex
	status rs232.Status
	nack   map[string]bool
	silent bool
}

func newFakeLink(tvID int) *fakeLink {
	return &fakeLink{
		status: rs232.Status{ID: tvID, Volume: 10, Input: "hdmi1", Sources: []string{"hdmi1", "hdmi2", "dtv"}},
		nack:   make(map[string]bool),
	}
}

func (l *fakeLink) Request(category, action string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.silent || l.nack[category+" "+action] {
		return false, nil
	}
	switch category {
	case "power":
		switch action {
		case "on":
			l.status.On = true
		case "off":
			l.status.On = false
		}
	case "input":
		l.status.Input = action
	case "sound":
		l.status.Muted = action == "on"
	}
	return true, nil
}

func (l *fakeLink) UpdateStatus() error { return nil }

func (l *fakeLink) Status() rs232.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.status
	s.Sources = append([]string(nil), l.status.Sources...)
	return s
}

func (l *fakeLink) Close() error { return nil }

type testEnv struct {
	srv     *Server
	handler http.Handler
	repo    entry.Repository
	runtime *lgtv.Runtime

	mu    sync.Mutex
	links map[string]*fakeLink
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if _, err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	env := &testEnv{repo: entry.NewSQLiteRepository(db.DB), links: make(map[string]*fakeLink)}
	metrics := lgtv.NewMetrics()

	rt, err := lgtv.NewRuntime(lgtv.RuntimeOptions{
		Open:       env.open,
		Entries:    env.repo,
		Validation: lgtv.DefaultValidationConfig(),
		Sleep:      func(time.Duration) {},
		Metrics:    metrics,
	})
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	t.Cleanup(rt.Close)
	env.runtime = rt

	prov, err := lgtv.NewProvisioner(lgtv.ProvisionerOptions{
		Entries: env.repo,
		Runtime: rt,
		Ports:   func() ([]string, error) { return []string{testPort, deadPort}, nil },
	})
	if err != nil {
		t.Fatalf("NewProvisioner() error = %v", err)
	}

	srv, err := New(Deps{
		WS:          config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security:    config.SecurityConfig{JWT: config.JWTConfig{Secret: secret, AccessTokenTTL: 15}},
		Logger:      logging.Discard(),
		Runtime:     rt,
		Provisioner: prov,
		Entries:     env.repo,
		Metrics:     metrics,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.srv = srv
	env.handler = srv.Handler()
	return env
}

// open serves links for testPort; deadPort opens but never answers.
func (e *testEnv) open(port string, tvID int) (lgtv.Link, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch port {
	case testPort, deadPort:
		l := newFakeLink(tvID)
		l.silent = port == deadPort
		e.links[port] = l
		return l, nil
	}
	return nil, rs232.ErrOpenFailed
}

func (e *testEnv) link(port string) *fakeLink {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.links[port]
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) provision(t *testing.T, tvID int) entryResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/entries", "", map[string]any{"port": testPort, "tv_id": tvID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("provision status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp entryResponse
	decode(t, rec, &resp)
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestNew_RequiredDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("expected error without logger")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("expected error without runtime")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" || body["entries_loaded"] != float64(0) {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestListPorts(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/v1/ports", "", nil)
	var body struct {
		Ports []string `json:"ports"`
	}
	decode(t, rec, &body)
	if len(body.Ports) != 2 || body.Ports[0] != testPort {
		t.Errorf("ports = %v", body.Ports)
	}
}

func TestProvision(t *testing.T) {
	env := newTestEnv(t, "")

	got := env.provision(t, 1)
	if got.UniqueID != "lg_tv_1" || got.Title != "LG TV 1" || !got.Loaded || got.EffectiveTVID != 1 {
		t.Errorf("entry = %+v", got)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/entities", "", nil)
	var body struct {
		Entities []entityResponse `json:"entities"`
		Count    int              `json:"count"`
	}
	decode(t, rec, &body)
	if body.Count != 2 || body.Entities[0].ID != mediaPlayer || body.Entities[1].ID != "lg_tv_1_remote" {
		t.Errorf("entities = %+v", body.Entities)
	}
	if body.Entities[0].Name != "LG TV RS232 1" {
		t.Errorf("name = %q", body.Entities[0].Name)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/entities?kind=remote", "", nil)
	decode(t, rec, &body)
	if body.Count != 1 || body.Entities[0].Kind != lgtv.KindRemote {
		t.Errorf("remote filter = %+v", body.Entities)
	}
}

func TestProvision_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		wantKey string
	}{
		{name: "set not answering", body: map[string]any{"port": deadPort, "tv_id": 1}, wantKey: "cannot_connect"},
		{name: "unknown port", body: map[string]any{"port": "/dev/ttyS9", "tv_id": 1}, wantKey: "value_error"},
		{name: "tv id out of range", body: map[string]any{"port": testPort, "tv_id": 120}, wantKey: "value_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")

			rec := env.do(t, http.MethodPost, "/api/v1/entries", "", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			var form FormError
			decode(t, rec, &form)
			if form.Errors["base"] != tt.wantKey {
				t.Errorf("errors = %v, want base=%s", form.Errors, tt.wantKey)
			}
		})
	}
}

func TestProvision_BadRequest(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/api/v1/entries", "", map[string]any{"tv_id": 1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing port status = %d", rec.Code)
	}
}

func TestProvision_Duplicate(t *testing.T) {
	env := newTestEnv(t, "")
	env.provision(t, 1)

	rec := env.do(t, http.MethodPost, "/api/v1/entries", "", map[string]any{"port": testPort, "tv_id": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	var abort AbortResponse
	decode(t, rec, &abort)
	if abort.Reason != "already_configured" {
		t.Errorf("reason = %q", abort.Reason)
	}
}

func TestProvision_DefaultTVID(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/api/v1/entries", "", map[string]any{"port": testPort})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp entryResponse
	decode(t, rec, &resp)
	if resp.TVID != 0 || resp.UniqueID != "lg_tv_0" {
		t.Errorf("entry = %+v", resp)
	}
}

func TestUpdateOptions(t *testing.T) {
	env := newTestEnv(t, "")
	created := env.provision(t, 1)

	rec := env.do(t, http.MethodPatch, "/api/v1/entries/"+created.ID+"/options", "", map[string]any{"tv_id": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp entryResponse
	decode(t, rec, &resp)
	if resp.EffectiveTVID != 5 || resp.TVID != 1 || !resp.Loaded {
		t.Errorf("entry = %+v", resp)
	}
	if got := env.link(testPort).Status().ID; got != 5 {
		t.Errorf("reopened link tv id = %d, want 5", got)
	}

	tests := []struct {
		name string
		path string
		body map[string]any
		want int
	}{
		{name: "missing tv_id", path: created.ID, body: map[string]any{}, want: http.StatusBadRequest},
		{name: "out of range", path: created.ID, body: map[string]any{"tv_id": -1}, want: http.StatusUnprocessableEntity},
		{name: "unknown entry", path: "nope", body: map[string]any{"tv_id": 2}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPatch, "/api/v1/entries/"+tt.path+"/options", "", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestDeleteEntry(t *testing.T) {
	env := newTestEnv(t, "")
	created := env.provision(t, 1)

	rec := env.do(t, http.MethodDelete, "/api/v1/entries/"+created.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.runtime.Loaded() != 0 {
		t.Error("entry still loaded")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/entries/"+created.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/v1/entries/"+created.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}
}

func TestEntityAction(t *testing.T) {
	env := newTestEnv(t, "")
	env.provision(t, 1)

	rec := env.do(t, http.MethodPost, "/api/v1/entities/"+mediaPlayer+"/actions", "", lgtv.Action{Name: "turn_on"})
	if rec.Code != http.StatusOK {
		t.Fatalf("turn_on status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/entities/"+mediaPlayer+"/actions", "",
		lgtv.Action{Name: "set_volume", Params: map[string]any{"volume": 0.42}})
	if rec.Code != http.StatusOK {
		t.Fatalf("set_volume status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp entityResponse
	decode(t, rec, &resp)
	if resp.State["state"] != "on" || resp.State["volume_level"] != 0.42 {
		t.Errorf("state = %v", resp.State)
	}
}

func TestEntityAction_Errors(t *testing.T) {
	env := newTestEnv(t, "")
	env.provision(t, 1)
	env.link(testPort).nack["power off"] = true

	tests := []struct {
		name     string
		entityID string
		action   lgtv.Action
		want     int
		wantCode string
	}{
		{name: "unknown entity", entityID: "lg_tv_9_remote", action: lgtv.Action{Name: "turn_on"}, want: http.StatusNotFound, wantCode: ErrCodeNotFound},
		{name: "missing name", entityID: mediaPlayer, action: lgtv.Action{}, want: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "volume out of range", entityID: mediaPlayer, action: lgtv.Action{Name: "set_volume", Params: map[string]any{"volume": 2}}, want: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "unknown source", entityID: mediaPlayer, action: lgtv.Action{Name: "select_source", Params: map[string]any{"source": "vcr"}}, want: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "unsupported", entityID: "lg_tv_1_remote", action: lgtv.Action{Name: "set_volume"}, want: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "not acknowledged", entityID: "lg_tv_1_remote", action: lgtv.Action{Name: "turn_off"}, want: http.StatusBadGateway, wantCode: ErrCodeNotAnswered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/entities/"+tt.entityID+"/actions", "", tt.action)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			var apiErr Error
			decode(t, rec, &apiErr)
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestRefreshEntity(t *testing.T) {
	env := newTestEnv(t, "")
	env.provision(t, 1)

	rec := env.do(t, http.MethodPost, "/api/v1/entities/lg_tv_1_remote/refresh", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/entities/lg_tv_1_remote", "", nil)
	var resp entityResponse
	decode(t, rec, &resp)
	if resp.Kind != lgtv.KindRemote {
		t.Errorf("kind = %q", resp.Kind)
	}
}

func TestSystemAndMetrics(t *testing.T) {
	env := newTestEnv(t, "")
	env.provision(t, 1)

	rec := env.do(t, http.MethodGet, "/api/v1/system", "", nil)
	var sys SystemMetrics
	decode(t, rec, &sys)
	if sys.Bridge.EntriesLoaded != 1 || sys.Bridge.Entities != 2 || sys.MQTT != nil {
		t.Errorf("system = %+v", sys)
	}

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lgtv_entries_loaded 1") {
		t.Errorf("metrics missing lgtv_entries_loaded 1:\n%s", rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, testSecret)

	viewer, err := auth.GenerateAccessToken("panel", auth.RoleViewer, testSecret, 5)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	admin, err := auth.GenerateAccessToken("installer", auth.RoleAdmin, testSecret, 5)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/v1/health", want: http.StatusOK},
		{name: "no token", method: http.MethodGet, path: "/api/v1/entities", want: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/api/v1/entities", token: "garbage", want: http.StatusUnauthorized},
		{name: "viewer reads", method: http.MethodGet, path: "/api/v1/entities", token: viewer, want: http.StatusOK},
		{name: "viewer cannot operate", method: http.MethodPost, path: "/api/v1/entities/x/actions", token: viewer, want: http.StatusForbidden},
		{name: "viewer cannot list ports", method: http.MethodGet, path: "/api/v1/ports", token: viewer, want: http.StatusForbidden},
		{name: "admin lists ports", method: http.MethodGet, path: "/api/v1/ports", token: admin, want: http.StatusOK},
		{name: "ws without ticket", method: http.MethodGet, path: "/api/v1/ws", want: http.StatusUnauthorized},
		{name: "ws with unknown ticket", method: http.MethodGet, path: "/api/v1/ws?ticket=nope", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, tt.method, tt.path, tt.token, nil); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTicketStore(t *testing.T) {
	store := newTicketStore()

	ticket := store.issue()
	if !store.consume(ticket) {
		t.Fatal("fresh ticket rejected")
	}
	if store.consume(ticket) {
		t.Error("ticket accepted twice")
	}

	store.tickets["old"] = time.Now().Add(-time.Second)
	if store.consume("old") {
		t.Error("expired ticket accepted")
	}

	store.tickets["stale"] = time.Now().Add(-time.Second)
	store.cleanExpired()
	if _, ok := store.tickets["stale"]; ok {
		t.Error("cleanExpired kept an expired ticket")
	}
}

func TestWebSocket_StateChanged(t *testing.T) {
	env := newTestEnv(t, testSecret)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	admin, err := auth.GenerateAccessToken("installer", auth.RoleAdmin, testSecret, 5)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", admin, nil)
	var ticket struct {
		Ticket string `json:"ticket"`
	}
	decode(t, rec, &ticket)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket.Ticket
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer resp.Body.Close()
	defer conn.Close()

	sub := map[string]any{"type": "subscribe", "id": "1", "payload": map[string]any{"channels": []string{ChannelStateChanged}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var ack WSMessage
	readJSON(t, conn, &ack)
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("subscribe response = %+v", ack)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/entries", admin, map[string]any{"port": testPort, "tv_id": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("provision status = %d", rec.Code)
	}

	seen := map[string]bool{}
	for len(seen) < 2 {
		var ev struct {
			Type      string `json:"type"`
			EventType string `json:"event_type"`
			Payload   struct {
				EntityID string `json:"entity_id"`
			} `json:"payload"`
		}
		readJSON(t, conn, &ev)
		if ev.Type != WSTypeEvent || ev.EventType != ChannelStateChanged {
			t.Fatalf("event = %+v", ev)
		}
		seen[ev.Payload.EntityID] = true
	}
	if !seen[mediaPlayer] || !seen["lg_tv_1_remote"] {
		t.Errorf("events for %v", seen)
	}
}

func TestWebSocket_InvalidMessages(t *testing.T) {
	env := newTestEnv(t, "")
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer resp.Body.Close()
	defer conn.Close()

	tests := []struct {
		send     string
		wantType string
	}{
		{send: `not json`, wantType: WSTypeError},
		{send: `{"type":"dance","id":"2"}`, wantType: WSTypeError},
		{send: `{"type":"subscribe","id":"3"}`, wantType: WSTypeError},
		{send: `{"type":"ping","id":"4"}`, wantType: WSTypePong},
		{send: `{"type":"unsubscribe","id":"5","payload":{"channels":["x"]}}`, wantType: WSTypeResponse},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		var msg WSMessage
		readJSON(t, conn, &msg)
		if msg.Type != tt.wantType {
			t.Errorf("reply to %s = %q, want %q", tt.send, msg.Type, tt.wantType)
		}
	}
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	//nolint:errcheck // Deadline failure surfaces as a read error
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			t.Fatalf("connection closed: %v", closeErr)
		}
		t.Fatalf("ReadJSON() error = %v", err)
	}
}
