package model

import (
	"bytes"
	"encoding/json"
)

// Inbound event types sent by clients.
const (
	InboundJoin     = "join-room"
	InboundLeave    = "leave-room"
	InboundMessage  = "send-message"
	InboundAck      = "message-delivered"
	InboundReaction = "react-to-message"
	InboundTyping   = "typing"
)

// Outbound event types sent by server.
const (
	OutboundConnected     = "connected"
	OutboundSnapshot      = "room-history"
	OutboundMemberJoined  = "user-joined"
	OutboundMemberLeft    = "user-left"
	OutboundMessage       = "new-message"
	OutboundStatusChanged = "message-status-update"
	OutboundReaction      = "message-reaction"
	OutboundTyping        = "user-typing"
)

type Inbound struct {
	SRC     string          `json:"-"` // assigned by server based on websocket session
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcast is a single outbound event addressed to one connection.
type Broadcast struct {
	DST   string
	Event Outbound
}

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type SendMessagePayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

type AckPayload struct {
	MessageID string `json:"messageId"`
	Status    Status `json:"status,omitempty"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// TypingPayload accepts both a bare boolean and {"isTyping": bool}.
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

func (p *TypingPayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		return json.Unmarshal(b, &p.IsTyping)
	}
	type plain TypingPayload
	return json.Unmarshal(b, (*plain)(p))
}

type ConnectedPayload struct {
	UserID string `json:"userId"`
}

type SnapshotPayload struct {
	Messages []Message `json:"messages"`
	Users    []Member  `json:"users"`
}

type PresencePayload struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Users    []Member `json:"users"`
}

type StatusPayload struct {
	MessageID string `json:"messageId"`
	Status    Status `json:"status"`
}

type ReactedPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

type TypingChangedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}
