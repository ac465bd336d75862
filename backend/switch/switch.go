package _switch

import (
	"errors"
	"sync"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrNotConnected = errors.New("endpoint is not connected")
	ErrQueueFull    = errors.New("send queue is full")
)

// Switch forwards outbound events to connection queues.
// Forwarding never blocks: when a connection queue is full the event is dropped
// for that connection only.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]chan<- model.Outbound
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]chan<- model.Outbound),
	}
}

func (sw *Switch) Connect(endpoint string, tx chan<- model.Outbound) {
	sw.mx.Lock()
	sw.fwd[endpoint] = tx
	sw.mx.Unlock()

	sw.logger.Debug().Str("endpoint", endpoint).Msg("endpoint connected")
}

func (sw *Switch) Disconnect(endpoint string) {
	sw.mx.Lock()
	delete(sw.fwd, endpoint)
	sw.mx.Unlock()

	sw.logger.Debug().Str("endpoint", endpoint).Msg("endpoint disconnected")
}

// Relay forwards every broadcast to its destination and returns those dropped
// because the destination queue was full. Broadcasts to unknown endpoints are skipped.
// It does not log, so it is safe to call under a room lock.
func (sw *Switch) Relay(bs []model.Broadcast) []model.Broadcast {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	var dropped []model.Broadcast
	for _, b := range bs {
		if err := sw.forward(b); errors.Is(err, ErrQueueFull) {
			dropped = append(dropped, b)
		}
	}
	return dropped
}

// Send forwards a single event to endpoint and reports whether it was queued.
func (sw *Switch) Send(endpoint string, ev model.Outbound) bool {
	sw.mx.RLock()
	err := sw.forward(model.Broadcast{DST: endpoint, Event: ev})
	sw.mx.RUnlock()

	if err != nil {
		sw.logger.Warn().Err(err).
			Str("dst", endpoint).
			Str("type", ev.Type).
			Msg("event dropped")
		return false
	}
	return true
}

func (sw *Switch) Connected() int {
	sw.mx.RLock()
	defer sw.mx.RUnlock()
	return len(sw.fwd)
}

func (sw *Switch) forward(b model.Broadcast) error {
	tx, ok := sw.fwd[b.DST]
	if !ok {
		return ErrNotConnected
	}
	select {
	case tx <- b.Event:
		return nil
	default:
		return ErrQueueFull
	}
}
