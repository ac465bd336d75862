package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	m := NewManager()

	_, ok := m.Get("a")
	assert.False(t, ok)

	s := Session{ConnectionID: "a", RoomID: "R1", DisplayName: "alice", JoinedAt: time.Now()}
	m.Bind(s)
	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.Equal(t, 1, m.Len())

	m.Bind(Session{ConnectionID: "a", RoomID: "R2", DisplayName: "alice"})
	got, _ = m.Get("a")
	assert.Equal(t, "R2", got.RoomID)
	assert.Equal(t, 1, m.Len())

	got, ok = m.Unbind("a")
	require.True(t, ok)
	assert.Equal(t, "R2", got.RoomID)

	_, ok = m.Unbind("a")
	assert.False(t, ok)
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}
