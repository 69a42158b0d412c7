package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
	"github.com/dormlink/internal/repository"
)

// PG — боевая реализация шлюза поверх репозиториев и hub.
type PG struct {
	convRepo    *repository.ConversationRepository
	msgRepo     *repository.MessageRepository
	typingRepo  *repository.TypingRepository
	profileRepo *repository.ProfileRepository
	hub         *realtime.Hub
}

func NewPG(convRepo *repository.ConversationRepository, msgRepo *repository.MessageRepository, typingRepo *repository.TypingRepository, profileRepo *repository.ProfileRepository, hub *realtime.Hub) *PG {
	return &PG{convRepo: convRepo, msgRepo: msgRepo, typingRepo: typingRepo, profileRepo: profileRepo, hub: hub}
}

func (g *PG) ListConversations(ctx context.Context, userID, query string) ([]model.ConversationPreview, error) {
	convs, err := g.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]model.ConversationPreview, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		preview, err := g.profileRepo.GetPreview(ctx, c.Counterpart(userID))
		if err != nil {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(preview.FullName), query) {
			continue
		}
		last, err := g.msgRepo.GetLastContent(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ConversationPreview{
			ID:            c.ID,
			User:          *preview,
			LastMessageAt: c.LastMessageAt,
			LastMessage:   last,
			UnreadCount:   c.UnreadFor(userID),
		})
	}
	return out, nil
}

func (g *PG) OpenConversation(ctx context.Context, userID, otherID string) (*model.Conversation, error) {
	return g.convRepo.GetOrCreate(ctx, userID, otherID)
}

func (g *PG) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return g.convRepo.GetByID(ctx, id)
}

func (g *PG) GetMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, error) {
	return g.msgRepo.GetPage(ctx, conversationID, before, limit)
}

func (g *PG) SendMessage(ctx context.Context, m *model.Message) error {
	return g.msgRepo.Create(ctx, m)
}

func (g *PG) MarkRead(ctx context.Context, conversationID, userID string) error {
	return g.msgRepo.MarkAllRead(ctx, conversationID, userID)
}

func (g *PG) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	if typing {
		return g.typingRepo.Upsert(ctx, conversationID, userID)
	}
	return g.typingRepo.Delete(ctx, conversationID, userID)
}

func (g *PG) SetOnline(ctx context.Context, userID string, online bool) error {
	return g.profileRepo.SetOnline(ctx, userID, online)
}

func (g *PG) GetProfilePreview(ctx context.Context, id string) (*model.ProfilePreview, error) {
	return g.profileRepo.GetPreview(ctx, id)
}

func (g *PG) Subscribe(table string, f realtime.Filter) *realtime.Subscription {
	return g.hub.Subscribe(table, f)
}
