// Package chatview — модели состояния экрана сообщений: список диалогов
// и лента открытого диалога. Обе живут поверх шлюза данных и канала
// изменений, без знания о транспорте.
package chatview

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dormlink/internal/gateway"
	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/msgfmt"
	"github.com/dormlink/internal/realtime"
)

// PageSize — сколько сообщений грузится за одно обращение.
const PageSize = 50

// ConversationList — состояние списка диалогов с поиском по имени
// собеседника и суммарным счётчиком непрочитанного.
type ConversationList struct {
	gw       gateway.Gateway
	userID   string
	onUpdate func()

	mu    sync.Mutex
	query string
	items []model.ConversationPreview
	subs  []*realtime.Subscription
	done  chan struct{}
}

func NewConversationList(gw gateway.Gateway, userID string, onUpdate func()) *ConversationList {
	if onUpdate == nil {
		onUpdate = func() {}
	}
	return &ConversationList{gw: gw, userID: userID, onUpdate: onUpdate}
}

// Load перечитывает список целиком. Любое изменение диалога (новое
// сообщение, прочтение, новый диалог) приводит сюда же: состав и порядок
// списка зависят от last_message_at, точечно его не починить.
func (l *ConversationList) Load(ctx context.Context) error {
	l.mu.Lock()
	query := l.query
	l.mu.Unlock()

	items, err := l.gw.ListConversations(ctx, l.userID, query)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
	l.onUpdate()
	return nil
}

// Start подписывается на изменения своих диалогов. Пара фильтруется по
// обоим слотам: колонка фильтра одна, а пользователь может быть любым из двух.
func (l *ConversationList) Start(ctx context.Context) {
	l.subs = []*realtime.Subscription{
		l.gw.Subscribe(realtime.TableConversations, realtime.Filter{Column: "user1_id", Value: l.userID}),
		l.gw.Subscribe(realtime.TableConversations, realtime.Filter{Column: "user2_id", Value: l.userID}),
	}
	l.done = make(chan struct{})
	go l.loop(ctx)
}

func (l *ConversationList) loop(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-l.subs[0].C:
			if !ok {
				return
			}
		case _, ok := <-l.subs[1].C:
			if !ok {
				return
			}
		}
		if err := l.Load(ctx); err != nil {
			logger.Errorf("conversation list reload: %v", err)
		}
	}
}

func (l *ConversationList) Stop() {
	for _, s := range l.subs {
		s.Unsubscribe()
	}
	if l.done != nil {
		<-l.done
	}
}

// SetQuery меняет поисковую строку и перечитывает список.
func (l *ConversationList) SetQuery(ctx context.Context, q string) error {
	l.mu.Lock()
	l.query = q
	l.mu.Unlock()
	return l.Load(ctx)
}

func (l *ConversationList) Items() []model.ConversationPreview {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ConversationPreview, len(l.items))
	copy(out, l.items)
	return out
}

// TotalUnread — сумма непрочитанного по всем диалогам.
func (l *ConversationList) TotalUnread() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := range l.items {
		n += l.items[i].UnreadCount
	}
	return n
}

// UnreadBadge — текст бейджа вкладки сообщений ("" — непрочитанного нет).
func (l *ConversationList) UnreadBadge() string {
	n := l.TotalUnread()
	if n == 0 {
		return ""
	}
	return msgfmt.FormatUnreadBadge(n)
}

// MessageView — состояние открытого диалога: хронологическая лента,
// пагинация вглубь истории, черновик ввода.
type MessageView struct {
	gw             gateway.Gateway
	conversationID string
	selfID         string
	onUpdate       func()

	mu       sync.Mutex
	messages []model.Message
	hasMore  bool
	input    string
	sub      *realtime.Subscription
	done     chan struct{}
}

func NewMessageView(gw gateway.Gateway, conversationID, selfID string, onUpdate func()) *MessageView {
	if onUpdate == nil {
		onUpdate = func() {}
	}
	return &MessageView{gw: gw, conversationID: conversationID, selfID: selfID, onUpdate: onUpdate}
}

// Open подписывается на изменения ленты, грузит самую свежую страницу
// и помечает входящие прочитанными. Подписка открывается до выборки:
// сообщение, вставленное во время загрузки, придёт событием и добавится
// при слиянии, дубли отсеиваются по id.
func (v *MessageView) Open(ctx context.Context) error {
	v.sub = v.gw.Subscribe(realtime.TableMessages,
		realtime.Filter{Column: "conversation_id", Value: v.conversationID})

	page, err := v.gw.GetMessages(ctx, v.conversationID, time.Time{}, PageSize)
	if err != nil {
		v.sub.Unsubscribe()
		v.sub = nil
		return err
	}
	v.mu.Lock()
	v.messages = reverse(page)
	v.hasMore = len(page) == PageSize
	v.mu.Unlock()
	v.onUpdate()

	if err := v.gw.MarkRead(ctx, v.conversationID, v.selfID); err != nil {
		logger.Errorf("chatview mark read: %v", err)
	}

	v.done = make(chan struct{})
	go v.loop(ctx)
	return nil
}

func (v *MessageView) loop(ctx context.Context) {
	defer close(v.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-v.sub.C:
			if !ok {
				return
			}
			v.merge(ctx, ev)
		}
	}
}

// merge применяет событие ленты: вставка добавляется в конец, если такого
// id ещё нет (своё сообщение могло прийти и из ответа, и из канала);
// обновление заменяет сообщение по id (квитанции о прочтении).
func (v *MessageView) merge(ctx context.Context, ev realtime.ChangeEvent) {
	m, _ := ev.New.(*model.Message)
	if m == nil {
		return
	}
	v.mu.Lock()
	switch ev.Action {
	case realtime.ActionInsert:
		for i := range v.messages {
			if v.messages[i].ID == m.ID {
				v.mu.Unlock()
				return
			}
		}
		v.messages = append(v.messages, *m)
		incoming := m.SenderID != v.selfID
		v.mu.Unlock()
		v.onUpdate()
		// Диалог открыт: входящее сразу помечается прочитанным.
		if incoming {
			if err := v.gw.MarkRead(ctx, v.conversationID, v.selfID); err != nil {
				logger.Errorf("chatview mark read: %v", err)
			}
		}
		return
	case realtime.ActionUpdate:
		for i := range v.messages {
			if v.messages[i].ID == m.ID {
				v.messages[i] = *m
				break
			}
		}
	}
	v.mu.Unlock()
	v.onUpdate()
}

// LoadOlder догружает страницу истории перед самым старым из загруженных.
// Страницы не перекрываются: выборка строго раньше якоря.
func (v *MessageView) LoadOlder(ctx context.Context) error {
	v.mu.Lock()
	if !v.hasMore || len(v.messages) == 0 {
		v.mu.Unlock()
		return nil
	}
	anchor := v.messages[0].CreatedAt
	v.mu.Unlock()

	page, err := v.gw.GetMessages(ctx, v.conversationID, anchor, PageSize)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.messages = append(reverse(page), v.messages...)
	v.hasMore = len(page) == PageSize
	v.mu.Unlock()
	v.onUpdate()
	return nil
}

// HasMore сообщает, осталась ли недогруженная история.
func (v *MessageView) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasMore
}

func (v *MessageView) Messages() []model.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Groups — лента, порезанная на группы по календарным дням.
func (v *MessageView) Groups() []msgfmt.MessageGroup {
	return msgfmt.GroupMessagesByDate(v.Messages())
}

func (v *MessageView) SetInput(s string) {
	v.mu.Lock()
	v.input = s
	v.mu.Unlock()
}

func (v *MessageView) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// Send отправляет черновик. Поле ввода очищается до обращения к сети,
// при ошибке текст возвращается на место. Сообщение попадает в ленту
// через канал изменений, а не локальной вставкой.
func (v *MessageView) Send(ctx context.Context) error {
	v.mu.Lock()
	content := v.input
	if content == "" {
		v.mu.Unlock()
		return nil
	}
	v.input = ""
	v.mu.Unlock()
	v.onUpdate()

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: v.conversationID,
		SenderID:       v.selfID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := v.gw.SendMessage(ctx, m); err != nil {
		v.mu.Lock()
		v.input = content
		v.mu.Unlock()
		v.onUpdate()
		return err
	}
	return nil
}

func (v *MessageView) Close() {
	if v.sub != nil {
		v.sub.Unsubscribe()
	}
	if v.done != nil {
		<-v.done
	}
}

func reverse(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i := range msgs {
		out[len(msgs)-1-i] = msgs[i]
	}
	return out
}
