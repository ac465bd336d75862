package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/adwski/chat-relay/backend/room"
	"github.com/rs/zerolog"
)

var (
	ErrRoomNotFound = errors.New("room is not found")
)

// Registry owns all live rooms. Rooms are created lazily and removed once empty.
type Registry struct {
	relay      room.Relayer
	mx         *sync.Mutex
	db         map[string]*room.Room
	logger     zerolog.Logger
	roomLogger zerolog.Logger
}

type Config struct {
	Logger  *zerolog.Logger
	Relayer room.Relayer
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		logger:     cfg.Logger.With().Str("component", "registry").Logger(),
		roomLogger: cfg.Logger.With().Str("component", "room").Logger(),
		relay:      cfg.Relayer,
		mx:         &sync.Mutex{},
		db:         make(map[string]*room.Room),
	}
}

func (reg *Registry) GetOrCreate(roomID string) *room.Room {
	reg.mx.Lock()
	rm, ok := reg.db[roomID]
	if !ok {
		rm = room.New(roomID, reg.relay, &reg.roomLogger)
		reg.db[roomID] = rm
	}
	reg.mx.Unlock()

	if !ok {
		reg.logger.Debug().Str("roomID", roomID).Msg("room created")
	}
	return rm
}

func (reg *Registry) Get(roomID string) (*room.Room, error) {
	reg.mx.Lock()
	defer reg.mx.Unlock()

	rm, ok := reg.db[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm, nil
}

// RemoveIfEmpty deletes the room if it has no members. The room is closed under
// its own lock first, so a join racing with removal fails with room.ErrRoomClosed
// instead of landing in a detached room.
func (reg *Registry) RemoveIfEmpty(roomID string) bool {
	reg.mx.Lock()
	rm, ok := reg.db[roomID]
	removed := ok && rm.CloseIfEmpty()
	if removed {
		delete(reg.db, roomID)
	}
	reg.mx.Unlock()

	if removed {
		reg.logger.Debug().Str("roomID", roomID).Msg("room removed")
	}
	return removed
}

// List returns live rooms ordered by id.
func (reg *Registry) List() []*room.Room {
	reg.mx.Lock()
	rooms := make([]*room.Room, 0, len(reg.db))
	for _, rm := range reg.db {
		rooms = append(rooms, rm)
	}
	reg.mx.Unlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ID() < rooms[j].ID()
	})
	return rooms
}

func (reg *Registry) Len() int {
	reg.mx.Lock()
	defer reg.mx.Unlock()
	return len(reg.db)
}
