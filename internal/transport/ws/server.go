package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/session-hub/internal/domain"
	"github.com/cwrk-planet/session-hub/pkg/logger"
)

// Sessions is the part of the session hub the socket server drives.
type Sessions interface {
	Connect(ctx context.Context, id domain.ConnID) error
	Disconnect(ctx context.Context, id domain.ConnID) error
	Deliver(ctx context.Context, id domain.ConnID, in domain.Inbound) error
}

type Options struct {
	MaxMessageSize int64
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	RatePerSecond  float64
	RateBurst      int
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 << 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 20
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 40
	}
	return o
}

const disconnectTimeout = 5 * time.Second

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	sessions Sessions
	opts     Options
}

func NewServer(hub *Hub, sessions Sessions, opts Options) *Server {
	opts = opts.withDefaults()
	policy := newOriginPolicy(opts.AllowedOrigins, logger.L())
	return &Server{
		hub:      hub,
		sessions: sessions,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// HandleWS upgrades the request and runs the connection until the socket
// closes. GET /ws
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		logger.FromContext(r.Context()).Warn("ws upgrade failed",
			slog.String("origin", r.Header.Get("Origin")),
			slog.Any("err", err))
		return
	}

	c := newClient(domain.ConnID(uuid.NewString()), conn, s.opts)
	log := logger.FromContext(r.Context()).With(
		slog.String("conn_id", string(c.id)),
		slog.String("remote_ip", r.RemoteAddr),
	)
	ctx := logger.WithContext(r.Context(), log)

	s.hub.Add(c)
	if err := s.sessions.Connect(ctx, c.id); err != nil {
		log.Warn("ws session rejected", slog.Any("err", err))
		s.hub.Remove(c.id)
		_ = c.Close()
		return
	}

	go s.writeLoop(ctx, c)
	s.readLoop(ctx, c)

	s.hub.Remove(c.id)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	if err := s.sessions.Disconnect(dctx, c.id); err != nil {
		log.Debug("ws disconnect not delivered", slog.Any("err", err))
	}
	cancel()

	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Debug("ws close failed", slog.Any("err", err))
	}
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	defer func() { _ = c.Close() }()
	log := logger.FromContext(ctx)

	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug("ws read failed", slog.Any("err", err))
			}
			return
		}
		in, err := decodeInbound(data)
		if err != nil {
			log.Debug("ws invalid frame", slog.Any("err", err))
			continue
		}
		if !c.admit(in.Name) {
			log.Warn("ws rate limit exceeded, frame dropped", slog.String("event", in.Name))
			continue
		}
		if err := s.sessions.Deliver(ctx, c.id, in); err != nil {
			log.Warn("ws deliver failed", slog.String("event", in.Name), slog.Any("err", err))
			return
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()
	log := logger.FromContext(ctx)

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("ws write failed", slog.Any("err", err))
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
