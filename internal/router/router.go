// Package router decides who receives what for every inbound chat event.
//
// Routing is a pure function of a read-only View of hub state: it never
// mutates anything and never talks to a transport. Each call yields the list of
// deliveries the session hub has to carry out.
package router

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwrk-planet/session-hub/internal/domain"
)

// clockLayout renders notice and receipt times the way chat clients display them.
const clockLayout = "3:04:05 PM"

type Target int

const (
	ToAll Target = iota
	ToRoom
	ToConn
)

func (t Target) String() string {
	switch t {
	case ToAll:
		return "all"
	case ToRoom:
		return "room"
	case ToConn:
		return "conn"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// Delivery pairs a recipient selector with the outbound event.
// Room and Exclude are used by ToRoom, Conn by ToConn.
type Delivery struct {
	Target  Target
	Room    string
	Conn    domain.ConnID
	Exclude domain.ConnID
	Event   domain.Outbound
}

type View interface {
	Get(id domain.ConnID) (domain.Connection, bool)
	ResolveName(name string) (domain.ConnID, bool)
	DistinctNames() []string
}

type Router struct {
	now func() time.Time
}

type Option func(*Router)

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

func New(opts ...Option) *Router {
	r := &Router{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route resolves recipients for ev sent by sender. State changes carried by
// the event (name, room) must already be applied to v.
func (r *Router) Route(v View, sender domain.ConnID, ev domain.Inbound) ([]Delivery, error) {
	from, ok := v.Get(sender)
	if !ok {
		return nil, fmt.Errorf("%s from %s: %w", ev.Name, sender, domain.ErrUnknownConnection)
	}

	var (
		out []Delivery
		err error
	)
	switch ev.Name {
	case domain.EventIdentify:
		out = []Delivery{r.Presence(v)}
	case domain.EventJoinRoom:
		out, err = r.joined(from)
	case domain.EventRoomMessage:
		out, err = r.roomMessage(from, ev.Data)
	case domain.EventPrivateMessage:
		out, err = r.privateMessage(v, from, ev.Data)
	case domain.EventTyping:
		out, err = r.relayToRoom(from, domain.Outbound{Name: domain.EventTypingRelay, Data: raw(ev.Data)})
	case domain.EventStopTyping:
		out, err = r.relayToRoom(from, domain.Outbound{Name: domain.EventStopTypingRelay})
	case domain.EventReadReceipt:
		out, err = r.readReceipt(v, from, ev.Data)
	case domain.EventReaction:
		out, err = r.reaction(ev.Data)
	default:
		err = domain.ErrUnknownEvent
	}
	if err != nil {
		return nil, fmt.Errorf("%s from %s: %w", ev.Name, sender, err)
	}
	return out, nil
}

// Departed produces the teardown broadcasts for a connection that is already
// gone from v: a notice to its last room, then the refreshed presence list.
func (r *Router) Departed(v View, gone domain.Connection) []Delivery {
	out := make([]Delivery, 0, 2)
	if gone.InRoom() {
		out = append(out, Delivery{
			Target:  ToRoom,
			Room:    gone.Room,
			Exclude: gone.ID,
			Event:   r.notice(fmt.Sprintf("%s left %s", gone.DisplayName(), gone.Room)),
		})
	}
	return append(out, r.Presence(v))
}

// Presence broadcasts the distinct set of online names to everyone.
func (r *Router) Presence(v View) Delivery {
	return Delivery{
		Target: ToAll,
		Event:  domain.Outbound{Name: domain.EventPresence, Data: v.DistinctNames()},
	}
}

func (r *Router) joined(from domain.Connection) ([]Delivery, error) {
	if !from.InRoom() {
		return nil, domain.ErrNoActiveRoom
	}
	return []Delivery{{
		Target:  ToRoom,
		Room:    from.Room,
		Exclude: from.ID,
		Event:   r.notice(fmt.Sprintf("%s joined %s", from.DisplayName(), from.Room)),
	}}, nil
}

func (r *Router) roomMessage(from domain.Connection, data json.RawMessage) ([]Delivery, error) {
	if !from.InRoom() {
		return nil, domain.ErrNoActiveRoom
	}
	return []Delivery{{
		Target: ToRoom,
		Room:   from.Room,
		Event:  domain.Outbound{Name: domain.EventMessage, Data: raw(data)},
	}}, nil
}

func (r *Router) relayToRoom(from domain.Connection, ev domain.Outbound) ([]Delivery, error) {
	if !from.InRoom() {
		return nil, domain.ErrNoActiveRoom
	}
	return []Delivery{{
		Target:  ToRoom,
		Room:    from.Room,
		Exclude: from.ID,
		Event:   ev,
	}}, nil
}

func (r *Router) privateMessage(v View, from domain.Connection, data json.RawMessage) ([]Delivery, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, domain.ErrInvalidPayload
	}
	var target domain.PrivateTarget
	if err := json.Unmarshal(data, &target); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	to, ok := v.ResolveName(target.To)
	if !ok {
		return nil, domain.ErrTargetNotFound
	}

	delete(fields, "to")
	stamp, err := json.Marshal(from.DisplayName())
	if err != nil {
		return nil, err
	}
	fields["from"] = stamp

	return []Delivery{{
		Target: ToConn,
		Conn:   to,
		Event:  domain.Outbound{Name: domain.EventPrivateDelivery, Data: fields},
	}}, nil
}

func (r *Router) readReceipt(v View, from domain.Connection, data json.RawMessage) ([]Delivery, error) {
	var receipt domain.ReadReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	to, ok := v.ResolveName(receipt.From)
	if !ok {
		return nil, domain.ErrTargetNotFound
	}
	return []Delivery{{
		Target: ToConn,
		Conn:   to,
		Event: domain.Outbound{
			Name: domain.EventReceiptAck,
			Data: domain.ReceiptAck{By: from.DisplayName(), Time: r.clock()},
		},
	}}, nil
}

// reaction goes to the room named in the event, whatever room the sender is in.
func (r *Router) reaction(data json.RawMessage) ([]Delivery, error) {
	var re domain.Reaction
	if err := json.Unmarshal(data, &re); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if re.Room == "" {
		return nil, domain.ErrNoActiveRoom
	}
	return []Delivery{{
		Target: ToRoom,
		Room:   re.Room,
		Event: domain.Outbound{
			Name: domain.EventReactionRelay,
			Data: domain.ReactionRelay{ID: re.ID, Emoji: re.Emoji},
		},
	}}, nil
}

func (r *Router) notice(text string) domain.Outbound {
	return domain.Outbound{
		Name: domain.EventMessage,
		Data: domain.Notice{User: domain.SystemUser, Text: text, Time: r.clock()},
	}
}

func (r *Router) clock() string { return r.now().Format(clockLayout) }

// raw keeps a client payload byte-for-byte; an absent payload stays absent.
func raw(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return data
}
