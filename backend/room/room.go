package room

import (
	"errors"
	"sync"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyMember = errors.New("connection is already a member of this room")
	ErrRoomClosed    = errors.New("room is closed")
)

// Relayer hands broadcasts over to connections. Relay is called with the room lock held
// and must neither block nor do I/O. It returns broadcasts it had to drop.
type Relayer interface {
	Relay(bs []model.Broadcast) (dropped []model.Broadcast)
}

// Room holds members and message history of a single room.
// All operations are serialized by the room mutex. Each mutating operation returns
// its broadcast set and passes the same set to the relayer before unlocking,
// so members see room events in the order they were applied.
type Room struct {
	relay   Relayer
	logger  zerolog.Logger
	mx      *sync.Mutex
	members map[string]*model.Member
	index   map[string]*model.Message
	id      string
	order   []string
	history []*model.Message
	closed  bool
}

// New creates an empty room. Logger may be nil.
func New(id string, relay Relayer, logger *zerolog.Logger) *Room {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("roomID", id).Logger()
	}
	return &Room{
		id:      id,
		relay:   relay,
		logger:  l,
		mx:      &sync.Mutex{},
		members: make(map[string]*model.Member),
		index:   make(map[string]*model.Message),
	}
}

func (r *Room) ID() string {
	return r.id
}

// Join adds a member. Existing members are notified with the updated roster,
// the joining connection receives the history snapshot.
func (r *Room) Join(connID, username string) (model.Member, []model.Broadcast, error) {
	var dropped []model.Broadcast
	defer func() { r.reportDropped(dropped) }()

	r.mx.Lock()
	defer r.mx.Unlock()

	if r.closed {
		return model.Member{}, nil, ErrRoomClosed
	}
	if _, ok := r.members[connID]; ok {
		return model.Member{}, nil, ErrAlreadyMember
	}

	member := &model.Member{ID: connID, Username: username}
	r.members[connID] = member
	r.order = append(r.order, connID)

	roster := r.roster()
	bs := r.toAll(model.Outbound{
		Type: model.OutboundMemberJoined,
		Payload: model.PresencePayload{
			UserID:   connID,
			Username: username,
			Users:    roster,
		},
	}, connID)
	bs = append(bs, model.Broadcast{
		DST: connID,
		Event: model.Outbound{
			Type: model.OutboundSnapshot,
			Payload: model.SnapshotPayload{
				Messages: r.historyCopy(),
				Users:    roster,
			},
		},
	})
	dropped = r.emit(bs)
	return *member, bs, nil
}

// Leave removes a member and notifies the remaining ones.
func (r *Room) Leave(connID string) []model.Broadcast {
	var dropped []model.Broadcast
	defer func() { r.reportDropped(dropped) }()

	r.mx.Lock()
	defer r.mx.Unlock()

	member, ok := r.members[connID]
	if !ok {
		return nil
	}
	delete(r.members, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	bs := r.toAll(model.Outbound{
		Type: model.OutboundMemberLeft,
		Payload: model.PresencePayload{
			UserID:   connID,
			Username: member.Username,
			Users:    r.roster(),
		},
	}, "")
	dropped = r.emit(bs)
	return bs
}

// PostMessage appends msg to history. Messages from non-members are dropped.
func (r *Room) PostMessage(msg model.Message) []model.Broadcast {
	var dropped []model.Broadcast
	defer func() { r.reportDropped(dropped) }()

	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.members[msg.SenderID]; !ok {
		return nil
	}

	stored := msg.Clone()
	r.history = append(r.history, &stored)
	if _, ok := r.index[stored.ID]; !ok {
		r.index[stored.ID] = &stored
	}

	bs := r.toAll(model.Outbound{
		Type:    model.OutboundMessage,
		Payload: stored.Clone(),
	}, "")
	dropped = r.emit(bs)
	return bs
}

// UpdateDeliveryStatus sets the status of a message. Unknown messages, unknown
// statuses and backward transitions produce no broadcasts.
func (r *Room) UpdateDeliveryStatus(messageID string, status model.Status) []model.Broadcast {
	var dropped []model.Broadcast
	defer func() { r.reportDropped(dropped) }()

	r.mx.Lock()
	defer r.mx.Unlock()

	msg, ok := r.index[messageID]
	if !ok || !status.Valid() || status.Before(msg.Status) {
		return nil
	}
	msg.Status = status

	bs := r.toAll(model.Outbound{
		Type: model.OutboundStatusChanged,
		Payload: model.StatusPayload{
			MessageID: messageID,
			Status:    status,
		},
	}, "")
	dropped = r.emit(bs)
	return bs
}

// AddReaction records a member's reaction, replacing the previous one.
func (r *Room) AddReaction(messageID, connID, emoji string) []model.Broadcast {
	var dropped []model.Broadcast
	defer func() { r.reportDropped(dropped) }()

	r.mx.Lock()
	defer r.mx.Unlock()

	msg, ok := r.index[messageID]
	if !ok {
		return nil
	}
	if _, ok = r.members[connID]; !ok {
		return nil
	}
	msg.Reactions[connID] = emoji

	bs := r.toAll(model.Outbound{
		Type: model.OutboundReaction,
		Payload: model.ReactedPayload{
			MessageID: messageID,
			UserID:    connID,
			Emoji:     emoji,
		},
	}, "")
	dropped = r.emit(bs)
	return bs
}

// SetTyping updates the typing flag and notifies everyone except the typist.
func (r *Room) SetTyping(connID string, isTyping bool) []model.Broadcast {
	var dropped []model.Broadcast
	defer func() { r.reportDropped(dropped) }()

	r.mx.Lock()
	defer r.mx.Unlock()

	member, ok := r.members[connID]
	if !ok {
		return nil
	}
	member.Typing = isTyping

	bs := r.toAll(model.Outbound{
		Type: model.OutboundTyping,
		Payload: model.TypingChangedPayload{
			UserID:   connID,
			Username: member.Username,
			IsTyping: isTyping,
		},
	}, connID)
	dropped = r.emit(bs)
	return bs
}

// CloseIfEmpty marks the room closed if it has no members.
// A closed room rejects joins with ErrRoomClosed.
func (r *Room) CloseIfEmpty() bool {
	r.mx.Lock()
	defer r.mx.Unlock()

	if len(r.members) == 0 {
		r.closed = true
	}
	return r.closed
}

func (r *Room) Members() []model.Member {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.roster()
}

func (r *Room) History() []model.Message {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.historyCopy()
}

// Len returns number of members.
func (r *Room) Len() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.members)
}

func (r *Room) Info() model.RoomInfo {
	r.mx.Lock()
	defer r.mx.Unlock()
	return model.RoomInfo{
		ID:       r.id,
		Members:  len(r.members),
		Messages: len(r.history),
	}
}

func (r *Room) Snapshot() model.RoomSnapshot {
	r.mx.Lock()
	defer r.mx.Unlock()
	return model.RoomSnapshot{
		ID:       r.id,
		Members:  r.roster(),
		Messages: r.historyCopy(),
	}
}

func (r *Room) roster() []model.Member {
	roster := make([]model.Member, 0, len(r.order))
	for _, id := range r.order {
		roster = append(roster, *r.members[id])
	}
	return roster
}

func (r *Room) historyCopy() []model.Message {
	history := make([]model.Message, 0, len(r.history))
	for _, msg := range r.history {
		history = append(history, msg.Clone())
	}
	return history
}

// toAll addresses ev to every member in join order, skipping except.
func (r *Room) toAll(ev model.Outbound, except string) []model.Broadcast {
	bs := make([]model.Broadcast, 0, len(r.order))
	for _, id := range r.order {
		if id != except {
			bs = append(bs, model.Broadcast{DST: id, Event: ev})
		}
	}
	return bs
}

func (r *Room) emit(bs []model.Broadcast) []model.Broadcast {
	if r.relay == nil || len(bs) == 0 {
		return nil
	}
	return r.relay.Relay(bs)
}

// reportDropped must be called without the room lock.
func (r *Room) reportDropped(dropped []model.Broadcast) {
	for _, b := range dropped {
		r.logger.Warn().
			Str("dst", b.DST).
			Str("type", b.Event.Type).
			Msg("send queue is full, event dropped")
	}
}
