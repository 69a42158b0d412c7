package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormlink/internal/gateway"
)

// onlineGateway записывает все вызовы SetOnline.
type onlineGateway struct {
	gateway.Gateway
	mu    sync.Mutex
	calls []bool
}

func (g *onlineGateway) SetOnline(ctx context.Context, userID string, online bool) error {
	g.mu.Lock()
	g.calls = append(g.calls, online)
	g.mu.Unlock()
	return nil
}

func (g *onlineGateway) snapshot() []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]bool, len(g.calls))
	copy(out, g.calls)
	return out
}

func TestStartMarksOnlineAndHeartbeats(t *testing.T) {
	gw := &onlineGateway{}
	tr := NewTracker(gw, "alice")
	tr.interval = 20 * time.Millisecond

	tr.Start(context.Background())
	defer tr.Stop(context.Background())

	// Первая отметка — сразу, дальше пульс.
	require.Eventually(t, func() bool {
		return len(gw.snapshot()) >= 3
	}, time.Second, time.Millisecond)
	for _, online := range gw.snapshot() {
		assert.True(t, online)
	}
}

// failFirstGateway роняет первую отметку онлайна.
type failFirstGateway struct {
	onlineGateway
	failed bool
}

func (g *failFirstGateway) SetOnline(ctx context.Context, userID string, online bool) error {
	if !g.failed {
		g.failed = true
		return errStore
	}
	return g.onlineGateway.SetOnline(ctx, userID, online)
}

var errStore = errors.New("storage unavailable")

func TestStartSurvivesFirstWriteFailure(t *testing.T) {
	gw := &failFirstGateway{}
	tr := NewTracker(gw, "alice")
	tr.interval = 10 * time.Millisecond

	// Ошибка первой отметки не всплывает, пульс чинит флаг сам.
	tr.Start(context.Background())
	defer tr.Stop(context.Background())

	require.Eventually(t, func() bool {
		calls := gw.snapshot()
		return len(calls) > 0 && calls[0]
	}, time.Second, time.Millisecond)
}

func TestStopMarksOffline(t *testing.T) {
	gw := &onlineGateway{}
	tr := NewTracker(gw, "alice")
	tr.interval = time.Hour

	tr.Start(context.Background())
	tr.Stop(context.Background())

	calls := gw.snapshot()
	require.NotEmpty(t, calls)
	assert.True(t, calls[0])
	assert.False(t, calls[len(calls)-1])
}

func TestHiddenTabGoesOffline(t *testing.T) {
	gw := &onlineGateway{}
	tr := NewTracker(gw, "alice")
	tr.interval = 10 * time.Millisecond

	tr.Start(context.Background())
	defer tr.Stop(context.Background())

	require.NoError(t, tr.SetVisible(context.Background(), false))

	// Даём долететь пульсу, который мог стартовать до скрытия.
	time.Sleep(30 * time.Millisecond)
	n := len(gw.snapshot())

	// Скрытая вкладка пульс не шлёт.
	time.Sleep(50 * time.Millisecond)
	calls := gw.snapshot()
	assert.Equal(t, n, len(calls))
	assert.Contains(t, calls, false)

	// Возврат видимости — снова онлайн.
	require.NoError(t, tr.SetVisible(context.Background(), true))
	assert.True(t, gw.snapshot()[len(gw.snapshot())-1])
}

func TestSetVisibleIdempotent(t *testing.T) {
	gw := &onlineGateway{}
	tr := NewTracker(gw, "alice")
	tr.interval = time.Hour

	tr.Start(context.Background())
	defer tr.Stop(context.Background())

	require.NoError(t, tr.SetVisible(context.Background(), true))
	require.NoError(t, tr.SetVisible(context.Background(), true))
	// Повторная видимость ничего не шлёт: только стартовая отметка.
	assert.Len(t, gw.snapshot(), 1)
}
