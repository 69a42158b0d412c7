// Package presence — трекер собственного онлайна: отметка при старте,
// пульс каждые 30 секунд, отметка оффлайна при сворачивании и выходе.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/dormlink/internal/gateway"
	"github.com/dormlink/internal/logger"
)

const heartbeatInterval = 30 * time.Second

type Tracker struct {
	gw       gateway.Gateway
	userID   string
	interval time.Duration

	mu      sync.Mutex
	visible bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewTracker(gw gateway.Gateway, userID string) *Tracker {
	return &Tracker{gw: gw, userID: userID, interval: heartbeatInterval, visible: true}
}

// Start отмечает пользователя онлайн и запускает пульс. Пульс страхует от
// залипшего флага: сервер без свежей отметки вправе считать клиента ушедшим.
// Неудача первой отметки только логируется — следующий пульс её перекроет.
func (t *Tracker) Start(ctx context.Context) {
	if err := t.gw.SetOnline(ctx, t.userID, true); err != nil {
		logger.Errorf("presence start: %v", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()
	go t.loop(runCtx)
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			visible := t.visible
			t.mu.Unlock()
			if !visible {
				continue
			}
			if err := t.gw.SetOnline(ctx, t.userID, true); err != nil {
				logger.Errorf("presence heartbeat: %v", err)
			}
		}
	}
}

// SetVisible сообщает трекеру о видимости вкладки: скрытая вкладка
// отмечается оффлайн, возврат — снова онлайн.
func (t *Tracker) SetVisible(ctx context.Context, visible bool) error {
	t.mu.Lock()
	if t.visible == visible {
		t.mu.Unlock()
		return nil
	}
	t.visible = visible
	t.mu.Unlock()
	return t.gw.SetOnline(ctx, t.userID, visible)
}

// Stop останавливает пульс и отмечает пользователя оффлайн.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	if err := t.gw.SetOnline(ctx, t.userID, false); err != nil {
		logger.Errorf("presence stop: %v", err)
	}
}
