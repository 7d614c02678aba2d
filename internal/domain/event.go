package domain

import "encoding/json"

// Inbound event names, as sent by chat clients.
const (
	EventIdentify       = "newUser"
	EventJoinRoom       = "joinRoom"
	EventRoomMessage    = "roomMessage"
	EventPrivateMessage = "privateMessage"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
	EventReadReceipt    = "readMessage"
	EventReaction       = "reactToMessage"
)

// Outbound event names. Room chat and system notices share EventMessage.
const (
	EventPresence        = "updateUsers"
	EventMessage         = "message"
	EventPrivateDelivery = "privateMessage"
	EventTypingRelay     = "typing"
	EventStopTypingRelay = "stopTyping"
	EventReceiptAck      = "messageRead"
	EventReactionRelay   = "messageReaction"
)

// SystemUser authors every notice generated by the hub itself.
const SystemUser = "System"

type Inbound struct {
	Name string
	Data json.RawMessage
}

type Outbound struct {
	Name string
	Data any
}

type Notice struct {
	User string `json:"user"`
	Text string `json:"text"`
	Time string `json:"time"`
}

type PrivateTarget struct {
	To string `json:"to"`
}

type ReadReceipt struct {
	From string `json:"from"`
}

type ReceiptAck struct {
	By   string `json:"by"`
	Time string `json:"time"`
}

type Reaction struct {
	ID    json.RawMessage `json:"id"`
	Emoji json.RawMessage `json:"emoji"`
	Room  string          `json:"room"`
}

type ReactionRelay struct {
	ID    json.RawMessage `json:"id,omitempty"`
	Emoji json.RawMessage `json:"emoji,omitempty"`
}
