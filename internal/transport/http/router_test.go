package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/session-hub/internal/domain"
	"github.com/cwrk-planet/session-hub/internal/session"
)

type fakeHub struct {
	snap session.Snapshot
	err  error
}

func (f *fakeHub) Snapshot(context.Context) (session.Snapshot, error) {
	return f.snap, f.err
}

func newTestRouter(hub Snapshotter) http.Handler {
	return NewRouter(Deps{
		Hub:            hub,
		AllowedOrigins: []string{"http://localhost:3000"},
		WS: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		},
	})
}

func do(t *testing.T, h http.Handler, method, path string, hdr http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NoError(t, json.Unmarshal(body.Data, dst))
}

func TestRouter_Root(t *testing.T) {
	rec := do(t, newTestRouter(&fakeHub{}), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session hub is running")
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestRouter_Users(t *testing.T) {
	hub := &fakeHub{snap: session.Snapshot{Users: []string{"bob", "ann"}}}
	rec := do(t, newTestRouter(hub), http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []string
	decodeData(t, rec, &users)
	assert.Equal(t, []string{"bob", "ann"}, users)
}

func TestRouter_UsersEmptyIsArray(t *testing.T) {
	rec := do(t, newTestRouter(&fakeHub{}), http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestRouter_RoomsSortedByName(t *testing.T) {
	hub := &fakeHub{snap: session.Snapshot{Rooms: map[string]int{"random": 1, "general": 2}}}
	rec := do(t, newTestRouter(hub), http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rooms []roomItem
	decodeData(t, rec, &rooms)
	assert.Equal(t, []roomItem{{Name: "general", Members: 2}, {Name: "random", Members: 1}}, rooms)
}

func TestRouter_HubClosed(t *testing.T) {
	hub := &fakeHub{err: domain.ErrHubClosed}
	h := newTestRouter(hub)

	for _, path := range []string{"/healthz", "/api/users", "/api/rooms"} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"error"`, path)
	}
}

func TestRouter_Healthz(t *testing.T) {
	rec := do(t, newTestRouter(&fakeHub{}), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, rec.Body.String())
}

func TestRouter_WebSocketRoute(t *testing.T) {
	rec := do(t, newTestRouter(&fakeHub{}), http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(&fakeHub{})

	rec := do(t, h, http.MethodGet, "/api/users", http.Header{"Origin": {"http://localhost:3000"}})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/users", http.Header{"Origin": {"https://evil.example"}})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.ErrHubClosed))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(Config{ReadTimeout: time.Second, WriteTimeout: time.Second}, newTestRouter(&fakeHub{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
