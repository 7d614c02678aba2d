// Package session implements the session hub: the single owner of connection
// state, presence and room membership. Every lifecycle signal and inbound
// event is serialized onto one goroutine (Run), applied to state, routed, and
// handed to the Transport before the next event is looked at.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/cwrk-planet/session-hub/internal/domain"
	"github.com/cwrk-planet/session-hub/internal/router"
	"github.com/cwrk-planet/session-hub/internal/state"
	"github.com/cwrk-planet/session-hub/pkg/logger"
)

const defaultEventBuffer = 1024

// Transport delivers outbound events and keeps room broadcast groups in sync.
// Implementations must not block: delivery is best effort.
type Transport interface {
	SendTo(id domain.ConnID, ev domain.Outbound)
	SendRoom(room string, ev domain.Outbound, exclude domain.ConnID)
	SendAll(ev domain.Outbound)
	Subscribe(id domain.ConnID, room string)
	Unsubscribe(id domain.ConnID, room string)
}

// Snapshot is a consistent view of hub state taken between two events.
type Snapshot struct {
	Users       []string       `json:"users"`
	Connections int            `json:"connections"`
	Rooms       map[string]int `json:"rooms"`
}

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evInbound
	evSnapshot
)

type event struct {
	kind  eventKind
	conn  domain.ConnID
	in    domain.Inbound
	reply chan Snapshot
}

type Hub struct {
	state     *state.Store
	router    *router.Router
	transport Transport
	log       *slog.Logger

	events  chan event
	started chan struct{}
	done    chan struct{}
	running atomic.Bool
}

type Option func(*Hub)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func WithRouter(r *router.Router) Option {
	return func(h *Hub) {
		if r != nil {
			h.router = r
		}
	}
}

func WithEventBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.events = make(chan event, n)
		}
	}
}

func NewHub(t Transport, opts ...Option) *Hub {
	h := &Hub{
		state:     state.New(),
		router:    router.New(),
		transport: t,
		log:       logger.L(),
		events:    make(chan event, defaultEventBuffer),
		started:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(slog.String("component", "session_hub"))
	return h
}

var errAlreadyRunning = errors.New("session hub already running")

// Run processes events until ctx is cancelled. It may be called once.
func (h *Hub) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer close(h.done)

	h.log.Info("session hub started")
	close(h.started)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("session hub stopped", slog.Int("connections", h.state.Len()))
			return nil
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

// Started is closed once Run is consuming events.
func (h *Hub) Started() <-chan struct{} { return h.started }

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) Connect(ctx context.Context, id domain.ConnID) error {
	return h.submit(ctx, event{kind: evConnect, conn: id})
}

func (h *Hub) Disconnect(ctx context.Context, id domain.ConnID) error {
	return h.submit(ctx, event{kind: evDisconnect, conn: id})
}

func (h *Hub) Deliver(ctx context.Context, id domain.ConnID, in domain.Inbound) error {
	return h.submit(ctx, event{kind: evInbound, conn: id, in: in})
}

// Snapshot waits for every previously submitted event to be processed and
// returns the state right after them.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := h.submit(ctx, event{kind: evSnapshot, reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return Snapshot{}, domain.ErrHubClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (h *Hub) submit(ctx context.Context, ev event) error {
	select {
	case <-h.done:
		return domain.ErrHubClosed
	default:
	}
	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return domain.ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) handle(ev event) {
	switch ev.kind {
	case evConnect:
		h.connect(ev.conn)
	case evDisconnect:
		h.disconnect(ev.conn)
	case evInbound:
		h.inbound(ev.conn, ev.in)
	case evSnapshot:
		ev.reply <- h.snapshot()
	}
}

func (h *Hub) connect(id domain.ConnID) {
	if _, err := h.state.Add(id); err != nil {
		h.log.Warn("connect rejected", slog.String("conn_id", string(id)), slog.Any("err", err))
		return
	}
	h.log.Info("user connected", slog.String("conn_id", string(id)), slog.Int("connections", h.state.Len()))
}

func (h *Hub) disconnect(id domain.ConnID) {
	gone, ok := h.state.Remove(id)
	if !ok {
		h.log.Debug("disconnect for unknown connection", slog.String("conn_id", string(id)))
		return
	}
	if gone.InRoom() {
		h.transport.Unsubscribe(id, gone.Room)
	}
	h.deliver(h.router.Departed(h.state, gone))

	h.log.Info("user disconnected",
		slog.String("conn_id", string(id)),
		slog.String("name", gone.Name),
		slog.String("room", gone.Room),
		slog.Int("connections", h.state.Len()))
}

func (h *Hub) inbound(id domain.ConnID, in domain.Inbound) {
	if err := h.apply(id, in); err != nil {
		h.drop(id, in, err)
		return
	}
	out, err := h.router.Route(h.state, id, in)
	if err != nil {
		h.drop(id, in, err)
		return
	}
	h.deliver(out)
}

// apply performs the state transition an event carries before it is routed.
func (h *Hub) apply(id domain.ConnID, in domain.Inbound) error {
	switch in.Name {
	case domain.EventIdentify:
		name, err := domain.DecodeLabel(in.Data)
		if err != nil {
			return err
		}
		if _, err := h.state.SetName(id, name); err != nil {
			return err
		}
	case domain.EventJoinRoom:
		room, err := domain.DecodeLabel(in.Data)
		if err != nil {
			return err
		}
		prev, err := h.state.SetRoom(id, room)
		if err != nil {
			return err
		}
		if prev != "" && prev != room {
			h.transport.Unsubscribe(id, prev)
		}
		h.transport.Subscribe(id, room)
	}
	return nil
}

func (h *Hub) deliver(out []router.Delivery) {
	for _, d := range out {
		switch d.Target {
		case router.ToAll:
			h.transport.SendAll(d.Event)
		case router.ToRoom:
			h.transport.SendRoom(d.Room, d.Event, d.Exclude)
		case router.ToConn:
			h.transport.SendTo(d.Conn, d.Event)
		default:
			h.log.Error("unknown delivery target", slog.String("target", d.Target.String()))
		}
	}
}

// drop discards an event that could not be routed. Nothing is reported back
// to the sender.
func (h *Hub) drop(id domain.ConnID, in domain.Inbound, err error) {
	h.log.Debug("event dropped",
		slog.String("conn_id", string(id)),
		slog.String("event", in.Name),
		slog.Any("err", err))
}

func (h *Hub) snapshot() Snapshot {
	return Snapshot{
		Users:       h.state.DistinctNames(),
		Connections: h.state.Len(),
		Rooms:       h.state.Rooms(),
	}
}
