package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dormlink/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
)

type frameType string

const (
	frameSubscribe   frameType = "subscribe"
	frameUnsubscribe frameType = "unsubscribe"
	frameChange      frameType = "change"
	frameError       frameType = "error"
)

// incomingFrame — запрос клиента: подписка/отписка на таблицу с фильтром.
type incomingFrame struct {
	Type   frameType `json:"type"`
	Table  string    `json:"table,omitempty"`
	Filter Filter    `json:"filter,omitempty"`
}

// outgoingFrame — кадр сервера: событие изменения или ошибка.
type outgoingFrame struct {
	Type    frameType `json:"type"`
	Payload any       `json:"payload"`
}

// bufPool переиспользует bytes.Buffer для JSON-кодирования в writePump.
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Client — одно WebSocket-подключение с набором подписок (таблица, фильтр).
// Жизненный цикл: NewClient -> Start(ctx, cancel) -> [readPump, writePump] -> Close -> Wait.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan outgoingFrame
	userID string

	// filters guarded by fmu: wants вызывается из Publish конкурентно с readPump.
	fmu     sync.RWMutex
	filters map[string][]Filter

	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan outgoingFrame, sendBufSize),
		userID:  userID,
		filters: make(map[string][]Filter),
		done:    make(chan struct{}),
	}
}

// Start запускает read/write насосы с управляемым жизненным циклом.
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// Wait блокируется до выхода обоих насосов.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close останавливает клиента. Безопасен при повторных вызовах из любой горутины.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		c.conn.Close()
	})
}

// wants проверяет, подписан ли клиент на событие таблицы с данными атрибутами.
func (c *Client) wants(table string, attrs map[string]string) bool {
	c.fmu.RLock()
	defer c.fmu.RUnlock()
	for _, f := range c.filters[table] {
		if f.Matches(attrs) {
			return true
		}
	}
	return false
}

func (c *Client) subscribe(table string, f Filter) {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	for _, have := range c.filters[table] {
		if have == f {
			return
		}
	}
	c.filters[table] = append(c.filters[table], f)
}

func (c *Client) unsubscribe(table string, f Filter) {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	kept := c.filters[table][:0]
	for _, have := range c.filters[table] {
		if have != f {
			kept = append(kept, have)
		}
	}
	if len(kept) == 0 {
		delete(c.filters, table)
		return
	}
	c.filters[table] = kept
}

func (c *Client) handleFrame(frame incomingFrame) {
	switch frame.Type {
	case frameSubscribe:
		if frame.Table == "" {
			c.hub.sendToClient(c, outgoingFrame{Type: frameError, Payload: "table required"})
			return
		}
		c.subscribe(frame.Table, frame.Filter)
	case frameUnsubscribe:
		c.unsubscribe(frame.Table, frame.Filter)
	default:
		c.hub.sendToClient(c, outgoingFrame{Type: frameError, Payload: "unknown frame type"})
	}
}

// readPump читает кадры подписок. Выходит по ошибке чтения
// (инициируется conn.Close из Close() или завершением writePump).
func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline user=%s: %v", c.userID, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error user=%s: %v", c.userID, err)
			}
			return
		}

		var frame incomingFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Errorf("ws unmarshal error user=%s: %v", c.userID, err)
			continue
		}
		c.handleFrame(frame)
	}
}

// writePump пишет кадры в соединение. Выходит по отмене ctx, ошибке записи
// или закрытию соединения.
func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				logger.Errorf("ws close message user=%s: %v", c.userID, err)
			}
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline user=%s: %v", c.userID, err)
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			enc := json.NewEncoder(buf)
			if err := enc.Encode(frame); err != nil {
				bufPool.Put(buf)
				logger.Errorf("ws marshal error user=%s: %v", c.userID, err)
				continue
			}
			data := buf.Bytes()
			// json.Encoder добавляет '\n'; для текстового кадра он не нужен.
			if len(data) > 0 && data[len(data)-1] == '\n' {
				data = data[:len(data)-1]
			}
			writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if writeErr != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline user=%s: %v", c.userID, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
