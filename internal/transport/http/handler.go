package http

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/cwrk-planet/session-hub/internal/session"
	"github.com/cwrk-planet/session-hub/pkg/logger"
)

type Handler struct {
	hub Snapshotter
}

type roomItem struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// GET /
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("session hub is running\n"))
}

// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.hub.Snapshot(r.Context()); err != nil {
		fail(w, r, statusFor(err), "hub unavailable")
		return
	}
	ok(w, r, map[string]string{"status": "ok"})
}

// GET /api/users
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	snap, found := h.snapshot(w, r)
	if !found {
		return
	}
	users := snap.Users
	if users == nil {
		users = []string{}
	}
	ok(w, r, users)
}

// GET /api/rooms
func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	snap, found := h.snapshot(w, r)
	if !found {
		return
	}
	items := make([]roomItem, 0, len(snap.Rooms))
	for name, n := range snap.Rooms {
		items = append(items, roomItem{Name: name, Members: n})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	ok(w, r, items)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (session.Snapshot, bool) {
	snap, err := h.hub.Snapshot(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Warn("snapshot failed", slog.Any("err", err))
		fail(w, r, statusFor(err), "snapshot failed")
		return session.Snapshot{}, false
	}
	return snap, true
}
