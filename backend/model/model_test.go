package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOrder(t *testing.T) {
	assert.True(t, StatusSent.Before(StatusDelivered))
	assert.True(t, StatusDelivered.Before(StatusSeen))
	assert.False(t, StatusSeen.Before(StatusDelivered))
	assert.False(t, StatusDelivered.Before(StatusDelivered))

	assert.True(t, StatusSeen.Valid())
	assert.False(t, Status("read").Valid())
	assert.False(t, Status("").Valid())
}

func TestTypingPayload_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "bare true", raw: `true`, want: true},
		{name: "bare false", raw: ` false`, want: false},
		{name: "object", raw: `{"isTyping":true}`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p TypingPayload
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &p))
			assert.Equal(t, tt.want, p.IsTyping)
		})
	}

	var p TypingPayload
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &p))
}

func TestMessageClone(t *testing.T) {
	m := &Message{ID: "m1", Reactions: map[string]string{"a": "👍"}}
	c := m.Clone()
	c.Reactions["b"] = "🎉"

	assert.Len(t, m.Reactions, 1)
	assert.Len(t, c.Reactions, 2)

	empty := (&Message{ID: "m2"}).Clone()
	assert.NotNil(t, empty.Reactions)
}
