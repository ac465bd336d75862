package model

import (
	"time"
)

// Status is a message delivery status.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.rank() > 0
}

// Before reports whether s precedes other in the sent -> delivered -> seen order.
func (s Status) Before(other Status) bool {
	return s.rank() < other.rank()
}

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	default:
		return 0
	}
}

type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

type Message struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Sender    string            `json:"sender"`
	SenderID  string            `json:"senderId"`
	Timestamp time.Time         `json:"timestamp"`
	Status    Status            `json:"status"`
	Reactions map[string]string `json:"reactions"`
	Image     string            `json:"image,omitempty"` // opaque, never inspected
}

// Clone returns a copy of the message that shares no mutable state with m.
func (m *Message) Clone() Message {
	c := *m
	c.Reactions = make(map[string]string, len(m.Reactions))
	for k, v := range m.Reactions {
		c.Reactions[k] = v
	}
	return c
}

// RoomInfo is a short room summary.
type RoomInfo struct {
	ID       string `json:"room_id"`
	Members  int    `json:"members"`
	Messages int    `json:"messages"`
}

// RoomSnapshot is a point-in-time copy of room state.
type RoomSnapshot struct {
	ID       string    `json:"room_id"`
	Members  []Member  `json:"users"`
	Messages []Message `json:"messages"`
}

// Wire is the duplex event channel of one connection.
// RX carries inbound client events, TX carries outbound events for the client.
type Wire struct {
	RX chan Inbound
	TX chan Outbound
}

func NewWire(queueSize int) Wire {
	return Wire{
		RX: make(chan Inbound),
		TX: make(chan Outbound, queueSize),
	}
}
