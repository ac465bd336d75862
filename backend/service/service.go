package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/adwski/chat-relay/backend/room"
	"github.com/adwski/chat-relay/backend/session"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultUsername = "anonymous"
)

var (
	ErrJoin             = errors.New("unable to join room")
	ErrGet              = errors.New("unable to get room")
	ErrConnect          = errors.New("unable to connect")
	ErrDisconnect       = errors.New("unable to disconnect")
	ErrAlreadyConnected = errors.New("connection already exists")
	ErrNotJoined        = errors.New("connection has not joined a room")
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed event payload")
	ErrEmptyRoomID      = errors.New("room id is empty")
	ErrEmptyMessage     = errors.New("message has neither content nor image")
	ErrInvalidStatus    = errors.New("invalid delivery status")
	ErrNoEffect         = errors.New("event had no effect")
)

type (
	RoomRegistry interface {
		GetOrCreate(roomID string) *room.Room
		Get(roomID string) (*room.Room, error)
		RemoveIfEmpty(roomID string) bool
		List() []*room.Room
	}

	SessionStore interface {
		Bind(s session.Session)
		Get(connID string) (session.Session, bool)
		Unbind(connID string) (session.Session, bool)
	}

	Switch interface {
		Connect(endpoint string, tx chan<- model.Outbound)
		Disconnect(endpoint string)
		Send(endpoint string, ev model.Outbound) bool
	}

	// Service dispatches inbound client events to rooms.
	//
	// Every connection is either unjoined (no session) or joined to exactly one room.
	// Room-scoped events are only honored for joined connections and the room is always
	// taken from the session. Room broadcasts reach connections through the Switch, which
	// is also the rooms' relayer.
	Service struct {
		rooms    RoomRegistry
		sessions SessionStore
		sw       Switch
		now      func() time.Time
		mx       *sync.Mutex
		conns    map[string]chan struct{}
		logger   zerolog.Logger
	}

	Config struct {
		Rooms    RoomRegistry
		Sessions SessionStore
		Switch   Switch
		Logger   *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		rooms:    cfg.Rooms,
		sessions: cfg.Sessions,
		sw:       cfg.Switch,
		now:      time.Now,
		mx:       &sync.Mutex{},
		conns:    make(map[string]chan struct{}),
		logger:   cfg.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Connect attaches a connection. Inbound events from wire.RX are processed one at a time
// until ctx is canceled or RX is closed; after that the connection leaves its room.
func (svc *Service) Connect(ctx context.Context, connID string, wire model.Wire) error {
	svc.mx.Lock()
	if _, ok := svc.conns[connID]; ok {
		svc.mx.Unlock()
		return errors.Join(ErrConnect, ErrAlreadyConnected)
	}
	done := make(chan struct{})
	svc.conns[connID] = done
	svc.mx.Unlock()

	svc.sw.Connect(connID, wire.TX)
	svc.sw.Send(connID, model.Outbound{
		Type:    model.OutboundConnected,
		Payload: model.ConnectedPayload{UserID: connID},
	})
	svc.logger.Debug().Str("connID", connID).Msg("connection attached")

	go svc.serve(ctx, connID, wire.RX, done)
	return nil
}

// Disconnect waits until the connection is fully detached.
// Detaching itself is triggered by canceling the context passed to Connect.
func (svc *Service) Disconnect(ctx context.Context, connID string) error {
	svc.mx.Lock()
	done, ok := svc.conns[connID]
	svc.mx.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrDisconnect, ctx.Err())
	}
}

func (svc *Service) serve(ctx context.Context, connID string, rx <-chan model.Inbound, done chan struct{}) {
	defer func() {
		svc.detach(connID)
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-rx:
			if !ok {
				return
			}
			ev.SRC = connID
			if err := svc.Dispatch(ev); err != nil {
				svc.logDropped(ev, err)
			}
		}
	}
}

// detach handles the implicit disconnect event. It runs exactly once per connection,
// after the last inbound event of that connection.
func (svc *Service) detach(connID string) {
	svc.sw.Disconnect(connID)
	svc.leave(connID)

	svc.mx.Lock()
	delete(svc.conns, connID)
	svc.mx.Unlock()

	svc.logger.Debug().Str("connID", connID).Msg("connection detached")
}

// Dispatch applies a single inbound event of connection ev.SRC.
// Calls for the same connection must not run concurrently.
// A non-nil error means the event was dropped.
func (svc *Service) Dispatch(ev model.Inbound) error {
	connID := ev.SRC

	switch ev.Type {
	case model.InboundJoin:
		var p model.JoinPayload
		if err := decode(ev.Payload, &p); err != nil {
			return err
		}
		return svc.join(connID, p)
	case model.InboundLeave:
		if !svc.leave(connID) {
			return ErrNotJoined
		}
		return nil
	}

	s, ok := svc.sessions.Get(connID)
	if !ok {
		return ErrNotJoined
	}
	rm, err := svc.rooms.Get(s.RoomID)
	if err != nil {
		return errors.Join(ErrGet, err)
	}

	var bs []model.Broadcast
	switch ev.Type {
	case model.InboundMessage:
		var p model.SendMessagePayload
		if err = decode(ev.Payload, &p); err != nil {
			return err
		}
		if p.Content == "" && p.Image == "" {
			return ErrEmptyMessage
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		bs = rm.PostMessage(model.Message{
			ID:        p.ID,
			Content:   p.Content,
			Sender:    s.DisplayName,
			SenderID:  connID,
			Timestamp: svc.now().UTC(),
			Status:    model.StatusSent,
			Image:     p.Image,
		})

	case model.InboundAck:
		var p model.AckPayload
		if err = decode(ev.Payload, &p); err != nil {
			return err
		}
		if p.Status == "" {
			p.Status = model.StatusDelivered
		}
		if !p.Status.Valid() {
			return ErrInvalidStatus
		}
		bs = rm.UpdateDeliveryStatus(p.MessageID, p.Status)

	case model.InboundReaction:
		var p model.ReactionPayload
		if err = decode(ev.Payload, &p); err != nil {
			return err
		}
		if p.Emoji == "" {
			return ErrMalformedPayload
		}
		bs = rm.AddReaction(p.MessageID, connID, p.Emoji)

	case model.InboundTyping:
		var p model.TypingPayload
		if err = decode(ev.Payload, &p); err != nil {
			return err
		}
		bs = rm.SetTyping(connID, p.IsTyping)

	default:
		return ErrUnknownEvent
	}

	if len(bs) == 0 {
		return ErrNoEffect
	}
	return nil
}

func (svc *Service) join(connID string, p model.JoinPayload) error {
	if p.RoomID == "" {
		return ErrEmptyRoomID
	}
	if p.Username = strings.TrimSpace(p.Username); p.Username == "" {
		p.Username = defaultUsername
	}

	// joining another room (or the same one again) leaves the current one first
	svc.leave(connID)

	// A closed room has already been removed from the registry,
	// so the next lookup yields a fresh one.
	rm := svc.rooms.GetOrCreate(p.RoomID)
	_, _, err := rm.Join(connID, p.Username)
	for errors.Is(err, room.ErrRoomClosed) {
		rm = svc.rooms.GetOrCreate(p.RoomID)
		_, _, err = rm.Join(connID, p.Username)
	}
	if err != nil {
		return errors.Join(ErrJoin, err)
	}

	svc.sessions.Bind(session.Session{
		ConnectionID: connID,
		RoomID:       p.RoomID,
		DisplayName:  p.Username,
		JoinedAt:     svc.now(),
	})
	svc.logger.Debug().
		Str("connID", connID).
		Str("roomID", p.RoomID).
		Str("username", p.Username).
		Msg("joined room")
	return nil
}

// leave removes the connection from its room, if any, and reports whether it was joined.
func (svc *Service) leave(connID string) bool {
	s, ok := svc.sessions.Unbind(connID)
	if !ok {
		return false
	}
	if rm, err := svc.rooms.Get(s.RoomID); err == nil {
		rm.Leave(connID)
	}
	removed := svc.rooms.RemoveIfEmpty(s.RoomID)

	svc.logger.Debug().
		Str("connID", connID).
		Str("roomID", s.RoomID).
		Bool("roomRemoved", removed).
		Msg("left room")
	return true
}

func (svc *Service) ListRooms() []model.RoomInfo {
	rooms := svc.rooms.List()
	infos := make([]model.RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		infos = append(infos, rm.Info())
	}
	return infos
}

func (svc *Service) GetRoom(roomID string) (model.RoomSnapshot, error) {
	rm, err := svc.rooms.Get(roomID)
	if err != nil {
		return model.RoomSnapshot{}, errors.Join(ErrGet, err)
	}
	return rm.Snapshot(), nil
}

func (svc *Service) logDropped(ev model.Inbound, err error) {
	svc.logger.Debug().Err(err).
		Str("connID", ev.SRC).
		Str("type", ev.Type).
		Msg("inbound event dropped")
	if e := svc.logger.Trace(); e.Enabled() {
		e.Str("connID", ev.SRC).Msg(spew.Sdump(ev))
	}
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return ErrMalformedPayload
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Join(ErrMalformedPayload, err)
	}
	return nil
}
