package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cwrk-planet/session-hub/internal/domain"
)

// Frame is the JSON envelope carried by every text frame, in both directions:
//
//	{"event": "roomMessage", "data": {"text": "hi"}}
//
// data is omitted for events without a payload (stopTyping).
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

var errEmptyEvent = errors.New("frame without event name")

func decodeInbound(b []byte) (domain.Inbound, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return domain.Inbound{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" {
		return domain.Inbound{}, errEmptyEvent
	}
	return domain.Inbound{Name: f.Event, Data: f.Data}, nil
}

func encodeOutbound(ev domain.Outbound) ([]byte, error) {
	b, err := json.Marshal(outFrame{Event: ev.Name, Data: ev.Data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Name, err)
	}
	return b, nil
}
