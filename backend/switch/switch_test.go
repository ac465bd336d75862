package _switch

import (
	"sync"
	"testing"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSwitch() *Switch {
	logger := zerolog.Nop()
	return NewSwitch(&logger)
}

func TestSwitch_Relay(t *testing.T) {
	sw := newTestSwitch()
	a := make(chan model.Outbound, 4)
	b := make(chan model.Outbound, 4)
	sw.Connect("a", a)
	sw.Connect("b", b)
	assert.Equal(t, 2, sw.Connected())

	dropped := sw.Relay([]model.Broadcast{
		{DST: "a", Event: model.Outbound{Type: "one"}},
		{DST: "b", Event: model.Outbound{Type: "one"}},
		{DST: "a", Event: model.Outbound{Type: "two"}},
		{DST: "gone", Event: model.Outbound{Type: "one"}},
	})
	assert.Empty(t, dropped, "unknown endpoints are skipped, not dropped")

	require.Len(t, a, 2)
	assert.Equal(t, "one", (<-a).Type)
	assert.Equal(t, "two", (<-a).Type)
	require.Len(t, b, 1)
	assert.Equal(t, "one", (<-b).Type)
}

func TestSwitch_DropsWhenQueueIsFull(t *testing.T) {
	sw := newTestSwitch()
	slow := make(chan model.Outbound, 1)
	fast := make(chan model.Outbound, 8)
	sw.Connect("slow", slow)
	sw.Connect("fast", fast)

	for i := range 3 {
		dropped := sw.Relay([]model.Broadcast{
			{DST: "slow", Event: model.Outbound{Type: "ev"}},
			{DST: "fast", Event: model.Outbound{Type: "ev"}},
		})
		if i == 0 {
			assert.Empty(t, dropped)
		} else {
			assert.Equal(t, []model.Broadcast{{DST: "slow", Event: model.Outbound{Type: "ev"}}}, dropped)
		}
	}

	assert.Len(t, slow, 1)
	assert.Len(t, fast, 3, "slow endpoint must not hold back others")
	assert.False(t, sw.Send("slow", model.Outbound{Type: "ev"}))
	assert.True(t, sw.Send("fast", model.Outbound{Type: "ev"}))
}

func TestSwitch_Disconnect(t *testing.T) {
	sw := newTestSwitch()
	a := make(chan model.Outbound, 1)
	sw.Connect("a", a)
	sw.Disconnect("a")
	sw.Disconnect("a")

	assert.False(t, sw.Send("a", model.Outbound{Type: "ev"}))
	assert.Empty(t, a)
	assert.Equal(t, 0, sw.Connected())
}

// Relay runs under room locks, so it must not touch the log sink even when dropping.
func TestSwitch_RelayDoesNotLog(t *testing.T) {
	w := &countingWriter{}
	logger := zerolog.New(w).Level(zerolog.TraceLevel)
	sw := NewSwitch(&logger)
	sw.Connect("full", make(chan model.Outbound))
	w.reset()

	dropped := sw.Relay([]model.Broadcast{
		{DST: "full", Event: model.Outbound{Type: "ev"}},
		{DST: "gone", Event: model.Outbound{Type: "ev"}},
	})

	assert.Len(t, dropped, 1)
	assert.Equal(t, 0, w.count())
}

type countingWriter struct {
	mx sync.Mutex
	n  int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.mx.Lock()
	w.n++
	w.mx.Unlock()
	return len(p), nil
}

func (w *countingWriter) count() int {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.n
}

func (w *countingWriter) reset() {
	w.mx.Lock()
	w.n = 0
	w.mx.Unlock()
}
