// Package typing — канал индикатора "печатает" для открытого диалога.
// Наружу события уходят не чаще раза в две секунды, входящий индикатор
// гаснет сам через три секунды тишины или сразу по событию удаления.
package typing

import (
	"context"
	"sync"
	"time"

	"github.com/dormlink/internal/gateway"
	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
)

const (
	defaultSendInterval = 2 * time.Second
	defaultExpireAfter  = 3 * time.Second
)

// Channel следит за индикатором одного диалога с точки зрения одного
// пользователя: шлёт свой статус через шлюз и держит флаг собеседника.
type Channel struct {
	gw             gateway.Gateway
	conversationID string
	selfID         string
	onChange       func(peerTyping bool)

	sendInterval time.Duration
	expireAfter  time.Duration
	now          func() time.Time

	mu         sync.Mutex
	lastSent   time.Time
	active     bool
	peerTyping bool
	expire     *time.Timer
	sub        *realtime.Subscription
	done       chan struct{}
}

// NewChannel создаёт канал. onChange вызывается при каждой смене флага
// собеседника (может быть nil).
func NewChannel(gw gateway.Gateway, conversationID, selfID string, onChange func(bool)) *Channel {
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Channel{
		gw:             gw,
		conversationID: conversationID,
		selfID:         selfID,
		onChange:       onChange,
		sendInterval:   defaultSendInterval,
		expireAfter:    defaultExpireAfter,
		now:            time.Now,
		done:           make(chan struct{}),
	}
}

// Start подписывается на индикаторы диалога и запускает обработку.
func (c *Channel) Start(ctx context.Context) {
	c.sub = c.gw.Subscribe(realtime.TableTypingIndicators,
		realtime.Filter{Column: "conversation_id", Value: c.conversationID})
	go c.loop(ctx)
}

func (c *Channel) loop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.sub.C:
			if !ok {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Channel) handle(ev realtime.ChangeEvent) {
	ind := typingRow(ev)
	if ind == nil || ind.UserID == c.selfID {
		return
	}
	switch ev.Action {
	case realtime.ActionDelete:
		c.setPeerTyping(false)
	default:
		c.setPeerTyping(true)
		c.resetExpiry()
	}
}

func (c *Channel) setPeerTyping(v bool) {
	c.mu.Lock()
	changed := c.peerTyping != v
	c.peerTyping = v
	c.mu.Unlock()
	if changed {
		c.onChange(v)
	}
}

// resetExpiry перезапускает таймер гашения: каждое событие продлевает
// индикатор ещё на expireAfter.
func (c *Channel) resetExpiry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expire != nil {
		c.expire.Stop()
	}
	c.expire = time.AfterFunc(c.expireAfter, func() { c.setPeerTyping(false) })
}

// PeerTyping возвращает текущий флаг собеседника.
func (c *Channel) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyping
}

// SetTyping публикует свой статус. true в пределах sendInterval от
// последней отправки (любой, включая false) не уходит в сеть; false
// уходит сразу, если индикатор был выставлен.
func (c *Channel) SetTyping(ctx context.Context, typing bool) error {
	c.mu.Lock()
	if typing {
		if c.now().Sub(c.lastSent) < c.sendInterval {
			c.mu.Unlock()
			return nil
		}
		c.active = true
		c.lastSent = c.now()
	} else {
		if !c.active {
			c.mu.Unlock()
			return nil
		}
		c.active = false
		c.lastSent = c.now()
	}
	c.mu.Unlock()
	return c.gw.SetTyping(ctx, c.conversationID, c.selfID, typing)
}

// Stop снимает подписку и гасит свой индикатор, если он был выставлен.
func (c *Channel) Stop(ctx context.Context) {
	c.mu.Lock()
	wasActive := c.active
	c.active = false
	if c.expire != nil {
		c.expire.Stop()
	}
	c.mu.Unlock()

	if wasActive {
		if err := c.gw.SetTyping(ctx, c.conversationID, c.selfID, false); err != nil {
			logger.Errorf("typing stop: %v", err)
		}
	}
	if c.sub != nil {
		c.sub.Unsubscribe()
		<-c.done
	}
}

func typingRow(ev realtime.ChangeEvent) *model.TypingIndicator {
	row := ev.New
	if ev.Action == realtime.ActionDelete {
		row = ev.Old
	}
	ind, _ := row.(*model.TypingIndicator)
	return ind
}
