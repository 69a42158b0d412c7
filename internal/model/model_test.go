package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dormlink/internal/model"
)

func TestCanonicalPair(t *testing.T) {
	a, b := model.CanonicalPair("bob", "alice")
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	a, b = model.CanonicalPair("alice", "bob")
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)
}

func TestConversationCounterpartAndUnread(t *testing.T) {
	c := model.Conversation{
		User1ID:          "alice",
		User2ID:          "bob",
		UnreadCountUser1: 2,
		UnreadCountUser2: 5,
	}
	assert.Equal(t, "bob", c.Counterpart("alice"))
	assert.Equal(t, "alice", c.Counterpart("bob"))
	assert.Equal(t, 2, c.UnreadFor("alice"))
	assert.Equal(t, 5, c.UnreadFor("bob"))
}

func TestEventFull(t *testing.T) {
	e := model.Event{ParticipantCount: 10}
	assert.False(t, e.Full(), "без лимита событие не бывает заполненным")

	limit := 10
	e.MaxParticipants = &limit
	assert.True(t, e.Full())

	e.ParticipantCount = 9
	assert.False(t, e.Full())
}
