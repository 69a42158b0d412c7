// Package realtime — канал уведомлений об изменениях строк. Репозитории
// публикуют события insert/update/delete; подписчики получают типизированный
// поток по (таблица, фильтр) — внутри процесса через каналы и наружу через
// WebSocket-клиентов.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/dormlink/internal/logger"
)

const subscriptionBuffer = 64

// PresenceStore отмечает пользователя онлайн/офлайн при подключении и
// отключении его WebSocket-клиентов.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// Subscription — подписка на события изменений. События приходят в C;
// Unsubscribe обязательно вызывается при выходе, в том числе по ошибке.
type Subscription struct {
	Table  string
	Filter Filter
	C      <-chan ChangeEvent

	ch   chan ChangeEvent
	hub  *Hub
	once sync.Once
}

// Unsubscribe освобождает канал. Повторные вызовы безопасны.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.hub.drop(s) })
}

type Hub struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	clients  map[string]map[*Client]struct{}
	total    int
	maxConns int
	presence PresenceStore

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(presence PresenceStore, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		subs:       make(map[*Subscription]struct{}),
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		presence:   presence,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// SetPresence задаёт хранилище онлайна. Вызывается при сборке сервиса,
// до Run: хранилище само публикует события через hub, поэтому в NewHub
// его передать нельзя.
func (h *Hub) SetPresence(p PresenceStore) {
	h.presence = p
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Собираем клиентов под локом, сетевой I/O — вне его.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

// Subscribe регистрирует внутрипроцессную подписку на таблицу с фильтром.
func (h *Hub) Subscribe(table string, filter Filter) *Subscription {
	ch := make(chan ChangeEvent, subscriptionBuffer)
	sub := &Subscription{Table: table, Filter: filter, C: ch, ch: ch, hub: h}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// drop снимает подписку и закрывает канал под эксклюзивным локом:
// отправка в Publish идёт под RLock, поэтому send и close не пересекаются.
func (h *Hub) drop(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	close(sub.ch)
	h.mu.Unlock()
}

// Publish рассылает событие всем подписчикам таблицы, чей фильтр проходит
// по attrs (колонка → значение изменённой строки). Медленный внутренний
// подписчик теряет событие, медленный WebSocket-клиент закрывается.
// Отправка в каналы подписок не блокирует и выполняется под RLock,
// чтобы не гоняться с закрытием канала в drop.
func (h *Hub) Publish(ev ChangeEvent, attrs map[string]string) {
	h.mu.RLock()
	for sub := range h.subs {
		if sub.Table == ev.Table && sub.Filter.Matches(attrs) {
			select {
			case sub.ch <- ev:
			default:
				logger.Errorf("realtime: subscription buffer full, dropping %s %s", ev.Table, ev.Action)
			}
		}
	}
	wsTargets := make([]*Client, 0, 4)
	for _, clients := range h.clients {
		for c := range clients {
			if c.wants(ev.Table, attrs) {
				wsTargets = append(wsTargets, c)
			}
		}
	}
	h.mu.RUnlock()

	out := outgoingFrame{Type: frameChange, Payload: ev}
	for _, c := range wsTargets {
		h.sendToClient(c, out)
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.presence.SetOnline(ctx, c.userID, true); err != nil {
			logger.Errorf("ws set online user=%s: %v", c.userID, err)
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	c.Close()

	if lastClient && h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.presence.SetOnline(ctx, c.userID, false); err != nil {
			logger.Errorf("ws set offline user=%s: %v", c.userID, err)
		}
	}
}

// IsOnline сообщает, есть ли у пользователя активные WebSocket-подключения.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) sendToClient(c *Client, frame outgoingFrame) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		// Backpressure: буфер отправки заполнен, закрываем медленного клиента.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
