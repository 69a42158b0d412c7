package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormlink/internal/gateway"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
)

// countingGateway считает исходящие вызовы SetTyping.
type countingGateway struct {
	gateway.Gateway
	mu      sync.Mutex
	upserts int
	deletes int
}

func (g *countingGateway) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	g.mu.Lock()
	if typing {
		g.upserts++
	} else {
		g.deletes++
	}
	g.mu.Unlock()
	return g.Gateway.SetTyping(ctx, conversationID, userID, typing)
}

func (g *countingGateway) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.upserts, g.deletes
}

func setup(t *testing.T) (*countingGateway, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(nil, 100)
	return &countingGateway{Gateway: gateway.NewMemory(hub)}, hub
}

func TestSetTypingRateLimited(t *testing.T) {
	gw, _ := setup(t)
	c := NewChannel(gw, "conv-1", "alice", nil)

	base := time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)
	clock := base
	c.now = func() time.Time { return clock }

	require.NoError(t, c.SetTyping(context.Background(), true))
	// Повтор в пределах двух секунд в сеть не уходит.
	clock = base.Add(500 * time.Millisecond)
	require.NoError(t, c.SetTyping(context.Background(), true))
	clock = base.Add(1900 * time.Millisecond)
	require.NoError(t, c.SetTyping(context.Background(), true))
	ups, _ := gw.counts()
	assert.Equal(t, 1, ups)

	// Интервал прошёл — событие уходит снова.
	clock = base.Add(2100 * time.Millisecond)
	require.NoError(t, c.SetTyping(context.Background(), true))
	ups, _ = gw.counts()
	assert.Equal(t, 2, ups)
}

func TestSetTypingTrueAfterRecentFalseDropped(t *testing.T) {
	gw, _ := setup(t)
	c := NewChannel(gw, "conv-1", "alice", nil)

	base := time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)
	clock := base
	c.now = func() time.Time { return clock }

	require.NoError(t, c.SetTyping(context.Background(), true))
	clock = base.Add(100 * time.Millisecond)
	require.NoError(t, c.SetTyping(context.Background(), false))

	// Окно считается и от false: true сразу после снятия в сеть не уходит.
	clock = base.Add(500 * time.Millisecond)
	require.NoError(t, c.SetTyping(context.Background(), true))
	ups, dels := gw.counts()
	assert.Equal(t, 1, ups)
	assert.Equal(t, 1, dels)

	clock = base.Add(2200 * time.Millisecond)
	require.NoError(t, c.SetTyping(context.Background(), true))
	ups, _ = gw.counts()
	assert.Equal(t, 2, ups)
}

func TestSetTypingFalseSentImmediately(t *testing.T) {
	gw, _ := setup(t)
	c := NewChannel(gw, "conv-1", "alice", nil)

	require.NoError(t, c.SetTyping(context.Background(), true))
	require.NoError(t, c.SetTyping(context.Background(), false))
	ups, dels := gw.counts()
	assert.Equal(t, 1, ups)
	assert.Equal(t, 1, dels)

	// Снятие без выставления — нечего слать.
	require.NoError(t, c.SetTyping(context.Background(), false))
	_, dels = gw.counts()
	assert.Equal(t, 1, dels)
}

func TestPeerTypingExpires(t *testing.T) {
	gw, hub := setup(t)
	c := NewChannel(gw, "conv-1", "alice", nil)
	c.expireAfter = 40 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	hub.Publish(realtime.ChangeEvent{
		Table:  realtime.TableTypingIndicators,
		Action: realtime.ActionUpdate,
		New:    &model.TypingIndicator{ConversationID: "conv-1", UserID: "bob"},
	}, map[string]string{"conversation_id": "conv-1"})

	require.Eventually(t, func() bool { return c.PeerTyping() }, time.Second, time.Millisecond)
	// Без новых событий индикатор гаснет сам.
	require.Eventually(t, func() bool { return !c.PeerTyping() }, time.Second, time.Millisecond)
}

func TestPeerTypingEventProlongs(t *testing.T) {
	gw, hub := setup(t)
	c := NewChannel(gw, "conv-1", "alice", nil)
	c.expireAfter = 60 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	publish := func() {
		hub.Publish(realtime.ChangeEvent{
			Table:  realtime.TableTypingIndicators,
			Action: realtime.ActionUpdate,
			New:    &model.TypingIndicator{ConversationID: "conv-1", UserID: "bob"},
		}, map[string]string{"conversation_id": "conv-1"})
	}

	publish()
	require.Eventually(t, func() bool { return c.PeerTyping() }, time.Second, time.Millisecond)

	// Каждое событие перезапускает таймер: флаг держится дольше одного интервала.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		publish()
		assert.True(t, c.PeerTyping())
	}
}

func TestPeerDeleteClearsImmediately(t *testing.T) {
	gw, hub := setup(t)
	c := NewChannel(gw, "conv-1", "alice", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	hub.Publish(realtime.ChangeEvent{
		Table:  realtime.TableTypingIndicators,
		Action: realtime.ActionUpdate,
		New:    &model.TypingIndicator{ConversationID: "conv-1", UserID: "bob"},
	}, map[string]string{"conversation_id": "conv-1"})
	require.Eventually(t, func() bool { return c.PeerTyping() }, time.Second, time.Millisecond)

	hub.Publish(realtime.ChangeEvent{
		Table:  realtime.TableTypingIndicators,
		Action: realtime.ActionDelete,
		Old:    &model.TypingIndicator{ConversationID: "conv-1", UserID: "bob"},
	}, map[string]string{"conversation_id": "conv-1"})
	require.Eventually(t, func() bool { return !c.PeerTyping() }, time.Second, time.Millisecond)
}

func TestOwnEventsIgnored(t *testing.T) {
	gw, hub := setup(t)
	c := NewChannel(gw, "conv-1", "alice", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	hub.Publish(realtime.ChangeEvent{
		Table:  realtime.TableTypingIndicators,
		Action: realtime.ActionUpdate,
		New:    &model.TypingIndicator{ConversationID: "conv-1", UserID: "alice"},
	}, map[string]string{"conversation_id": "conv-1"})

	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.PeerTyping())
}

func TestStopSendsDeleteIfActive(t *testing.T) {
	gw, _ := setup(t)
	c := NewChannel(gw, "conv-1", "alice", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	require.NoError(t, c.SetTyping(context.Background(), true))
	c.Stop(context.Background())

	_, dels := gw.counts()
	assert.Equal(t, 1, dels)
}
