package gateway

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
	"github.com/dormlink/internal/repository"
)

// Memory — шлюз в памяти. Семантика повторяет PG: канонические пары,
// счётчики по слотам, те же события в hub. Используется в проверках
// клиентских компонентов, где поднимать Postgres незачем.
type Memory struct {
	mu       sync.Mutex
	hub      *realtime.Hub
	profiles map[string]model.ProfilePreview
	convs    map[string]*model.Conversation
	messages map[string][]model.Message
}

func NewMemory(hub *realtime.Hub) *Memory {
	return &Memory{
		hub:      hub,
		profiles: make(map[string]model.ProfilePreview),
		convs:    make(map[string]*model.Conversation),
		messages: make(map[string][]model.Message),
	}
}

// AddProfile регистрирует пользователя в шлюзе.
func (g *Memory) AddProfile(p model.ProfilePreview) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles[p.ID] = p
}

func (g *Memory) publish(ev realtime.ChangeEvent, attrs map[string]string) {
	if g.hub != nil {
		g.hub.Publish(ev, attrs)
	}
}

func (g *Memory) ListConversations(ctx context.Context, userID, query string) ([]model.ConversationPreview, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	query = strings.ToLower(strings.TrimSpace(query))
	var out []model.ConversationPreview
	for _, c := range g.convs {
		if c.User1ID != userID && c.User2ID != userID {
			continue
		}
		preview, ok := g.profiles[c.Counterpart(userID)]
		if !ok {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(preview.FullName), query) {
			continue
		}
		last := ""
		if msgs := g.messages[c.ID]; len(msgs) > 0 {
			last = msgs[len(msgs)-1].Content
		}
		out = append(out, model.ConversationPreview{
			ID:            c.ID,
			User:          preview,
			LastMessageAt: c.LastMessageAt,
			LastMessage:   last,
			UnreadCount:   c.UnreadFor(userID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (g *Memory) OpenConversation(ctx context.Context, userID, otherID string) (*model.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u1, u2 := model.CanonicalPair(userID, otherID)
	for _, c := range g.convs {
		if c.User1ID == u1 && c.User2ID == u2 {
			cp := *c
			return &cp, nil
		}
	}
	c := &model.Conversation{
		ID:        "conv-" + u1 + "-" + u2,
		User1ID:   u1,
		User2ID:   u2,
		CreatedAt: time.Now().UTC(),
	}
	g.convs[c.ID] = c
	cp := *c
	g.publish(realtime.ChangeEvent{Table: realtime.TableConversations, Action: realtime.ActionInsert, New: &cp},
		map[string]string{"id": c.ID, "user1_id": u1, "user2_id": u2})
	return &cp, nil
}

func (g *Memory) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.convs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (g *Memory) GetMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	all := g.messages[conversationID]
	out := make([]model.Message, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if !before.IsZero() && !all[i].CreatedAt.Before(before) {
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (g *Memory) SendMessage(ctx context.Context, m *model.Message) error {
	g.mu.Lock()
	c, ok := g.convs[m.ConversationID]
	if !ok {
		g.mu.Unlock()
		return repository.ErrNotFound
	}
	g.messages[m.ConversationID] = append(g.messages[m.ConversationID], *m)
	c.LastMessageAt = m.CreatedAt
	if c.User1ID != m.SenderID {
		c.UnreadCountUser1++
	}
	if c.User2ID != m.SenderID {
		c.UnreadCountUser2++
	}
	cp := *c
	mp := *m
	g.mu.Unlock()

	g.publish(realtime.ChangeEvent{Table: realtime.TableMessages, Action: realtime.ActionInsert, New: &mp},
		map[string]string{"conversation_id": m.ConversationID})
	g.publish(realtime.ChangeEvent{Table: realtime.TableConversations, Action: realtime.ActionUpdate, New: &cp},
		map[string]string{"id": cp.ID, "user1_id": cp.User1ID, "user2_id": cp.User2ID})
	return nil
}

func (g *Memory) MarkRead(ctx context.Context, conversationID, userID string) error {
	g.mu.Lock()
	c, ok := g.convs[conversationID]
	if !ok {
		g.mu.Unlock()
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	var read []model.Message
	msgs := g.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != userID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			t := now
			msgs[i].ReadAt = &t
			read = append(read, msgs[i])
		}
	}
	if c.User1ID == userID {
		c.UnreadCountUser1 = 0
	} else {
		c.UnreadCountUser2 = 0
	}
	cp := *c
	g.mu.Unlock()

	for i := range read {
		m := read[i]
		g.publish(realtime.ChangeEvent{Table: realtime.TableMessages, Action: realtime.ActionUpdate, New: &m},
			map[string]string{"conversation_id": conversationID})
	}
	if len(read) > 0 {
		g.publish(realtime.ChangeEvent{Table: realtime.TableConversations, Action: realtime.ActionUpdate, New: &cp},
			map[string]string{"id": cp.ID, "user1_id": cp.User1ID, "user2_id": cp.User2ID})
	}
	return nil
}

func (g *Memory) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	ind := &model.TypingIndicator{ConversationID: conversationID, UserID: userID, UpdatedAt: time.Now().UTC()}
	ev := realtime.ChangeEvent{Table: realtime.TableTypingIndicators, Action: realtime.ActionUpdate, New: ind}
	if !typing {
		ev = realtime.ChangeEvent{Table: realtime.TableTypingIndicators, Action: realtime.ActionDelete, Old: ind}
	}
	g.publish(ev, map[string]string{"conversation_id": conversationID})
	return nil
}

func (g *Memory) SetOnline(ctx context.Context, userID string, online bool) error {
	g.mu.Lock()
	p, ok := g.profiles[userID]
	if !ok {
		g.mu.Unlock()
		return repository.ErrNotFound
	}
	p.IsOnline = online
	p.LastSeen = time.Now().UTC()
	g.profiles[userID] = p
	g.mu.Unlock()

	g.publish(realtime.ChangeEvent{Table: realtime.TableProfiles, Action: realtime.ActionUpdate, New: &p},
		map[string]string{"id": userID})
	return nil
}

func (g *Memory) GetProfilePreview(ctx context.Context, id string) (*model.ProfilePreview, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (g *Memory) Subscribe(table string, f realtime.Filter) *realtime.Subscription {
	return g.hub.Subscribe(table, f)
}
