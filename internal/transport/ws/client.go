package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/cwrk-planet/session-hub/internal/domain"
)

type client struct {
	id      domain.ConnID
	conn    *websocket.Conn
	send    chan []byte
	closed  chan struct{}
	once    sync.Once
	limiter *rate.Limiter

	// typing is set while a typing signal has gone out without its
	// stopTyping. Touched only by the read loop.
	typing bool
}

func newClient(id domain.ConnID, conn *websocket.Conn, opts Options) *client {
	return &client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, opts.SendBuffer),
		closed:  make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RateBurst),
	}
}

func (c *client) ID() domain.ConnID { return c.id }

// Enqueue never blocks. Frames for a closed client are discarded.
func (c *client) Enqueue(frame []byte) bool {
	select {
	case <-c.closed:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// admit applies the inbound rate limit. A stopTyping that closes an admitted
// typing signal always passes, so peers are never left with a stale
// indicator; at most one such bypass follows each admitted typing.
func (c *client) admit(event string) bool {
	ok := c.limiter.Allow()
	if !ok && event == domain.EventStopTyping && c.typing {
		ok = true
	}
	if ok {
		switch event {
		case domain.EventTyping:
			c.typing = true
		case domain.EventStopTyping:
			c.typing = false
		}
	}
	return ok
}

// Close is safe to call from any goroutine, any number of times. The send
// channel is never closed; the writer stops on c.closed instead.
func (c *client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
