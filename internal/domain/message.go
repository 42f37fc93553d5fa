package domain

import "time"

// EventKind classifies an inbound chat event.
type EventKind string

const (
	// EventStart begins (or restarts) a booking conversation.
	EventStart EventKind = "start"
	// EventText is a plain text message from the user.
	EventText EventKind = "text"
	// EventSelect carries the data payload of a pressed button.
	EventSelect EventKind = "select"
)

// InboundEvent is a chat event received from a channel.
type InboundEvent struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	From      string    `json:"from"` // chat platform user identity
	FromName  string    `json:"fromName,omitempty"`
	ChatID    string    `json:"chatId"`
	Kind      EventKind `json:"kind"`
	Body      string    `json:"body,omitempty"`
	Data      string    `json:"data,omitempty"` // selection payload for EventSelect
	Timestamp time.Time `json:"timestamp"`
}

// Button is a single selectable control attached to an outbound message.
// Label is shown to the user; Data comes back verbatim in an EventSelect.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// OutboundMessage is a message to be sent via a channel, optionally with
// a keyboard of selectable controls. Channels render the keyboard however
// they can (inline buttons, numbered lines, ...).
type OutboundMessage struct {
	ChannelID string   `json:"channelId"`
	To        string   `json:"to"`
	Body      string   `json:"body"`
	Buttons   []Button `json:"buttons,omitempty"`
}
