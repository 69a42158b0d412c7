package chatview_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormlink/internal/chatview"
	"github.com/dormlink/internal/gateway"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
)

// setupConversation готовит шлюз в памяти с двумя пользователями и диалогом.
func setupConversation(t *testing.T) (*gateway.Memory, *realtime.Hub, *model.Conversation) {
	t.Helper()
	hub := realtime.NewHub(nil, 100)
	gw := gateway.NewMemory(hub)
	gw.AddProfile(model.ProfilePreview{ID: "alice", FullName: "Алиса Иванова"})
	gw.AddProfile(model.ProfilePreview{ID: "bob", FullName: "Борис Петров"})
	conv, err := gw.OpenConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	return gw, hub, conv
}

func sendN(t *testing.T, gw *gateway.Memory, conv *model.Conversation, sender string, n int, start time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := gw.SendMessage(context.Background(), &model.Message{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			SenderID:       sender,
			Content:        fmt.Sprintf("msg %d", i),
			CreatedAt:      start.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
}

// failingSendGateway имитирует обрыв сети на отправке.
type failingSendGateway struct {
	gateway.Gateway
}

var errNetwork = errors.New("network unreachable")

func (g *failingSendGateway) SendMessage(ctx context.Context, m *model.Message) error {
	return errNetwork
}

func TestSendFailureRestoresInput(t *testing.T) {
	gw, _, conv := setupConversation(t)
	failing := &failingSendGateway{Gateway: gw}

	v := chatview.NewMessageView(failing, conv.ID, "alice", nil)
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	v.SetInput("Привет, сосед!")
	err := v.Send(context.Background())
	require.ErrorIs(t, err, errNetwork)

	// Текст вернулся в поле ввода, в ленте ничего не появилось.
	assert.Equal(t, "Привет, сосед!", v.Input())
	assert.Empty(t, v.Messages())
}

func TestSendClearsInputAndAppendsViaChannel(t *testing.T) {
	gw, _, conv := setupConversation(t)

	v := chatview.NewMessageView(gw, conv.ID, "alice", nil)
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	v.SetInput("Привет!")
	require.NoError(t, v.Send(context.Background()))
	assert.Equal(t, "", v.Input())

	require.Eventually(t, func() bool {
		msgs := v.Messages()
		return len(msgs) == 1 && msgs[0].Content == "Привет!"
	}, time.Second, 5*time.Millisecond)
}

// slowLoadGateway имитирует сообщение, вставленное пока грузилась
// первая страница: выборка его ещё не видит.
type slowLoadGateway struct {
	gateway.Gateway
	once sync.Once
}

func (g *slowLoadGateway) GetMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, error) {
	page, err := g.Gateway.GetMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	g.once.Do(func() {
		_ = g.Gateway.SendMessage(ctx, &model.Message{
			ID:             "late",
			ConversationID: conversationID,
			SenderID:       "bob",
			Content:        "успел, пока грузилось",
			CreatedAt:      time.Now().UTC(),
		})
	})
	return page, nil
}

func TestOpenCatchesMessageInsertedDuringLoad(t *testing.T) {
	gw, _, conv := setupConversation(t)
	slow := &slowLoadGateway{Gateway: gw}

	v := chatview.NewMessageView(slow, conv.ID, "alice", nil)
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	// Страница пришла без нового сообщения, но событие уже в канале подписки.
	require.Eventually(t, func() bool {
		for _, m := range v.Messages() {
			if m.ID == "late" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, v.Messages(), 1)
}

func TestPaginationNoOverlapAndStop(t *testing.T) {
	gw, _, conv := setupConversation(t)
	start := time.Date(2026, time.September, 10, 10, 0, 0, 0, time.UTC)
	sendN(t, gw, conv, "alice", 120, start)

	v := chatview.NewMessageView(gw, conv.ID, "alice", nil)
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	require.Len(t, v.Messages(), chatview.PageSize)
	assert.True(t, v.HasMore())

	require.NoError(t, v.LoadOlder(context.Background()))
	require.Len(t, v.Messages(), 100)
	assert.True(t, v.HasMore())

	require.NoError(t, v.LoadOlder(context.Background()))
	msgs := v.Messages()
	require.Len(t, msgs, 120)
	assert.False(t, v.HasMore())

	// Дальнейшие вызовы ничего не меняют.
	require.NoError(t, v.LoadOlder(context.Background()))
	assert.Len(t, v.Messages(), 120)

	// Страницы не перекрываются и лента хронологическая.
	seen := make(map[string]bool, len(msgs))
	for i, m := range msgs {
		assert.False(t, seen[m.ID], "дубль сообщения %s", m.ID)
		seen[m.ID] = true
		if i > 0 {
			assert.False(t, m.CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}
}

func TestMergeReplacesByID(t *testing.T) {
	gw, hub, conv := setupConversation(t)
	start := time.Date(2026, time.September, 10, 10, 0, 0, 0, time.UTC)
	sendN(t, gw, conv, "alice", 1, start)

	v := chatview.NewMessageView(gw, conv.ID, "alice", nil)
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	require.Len(t, v.Messages(), 1)
	orig := v.Messages()[0]
	require.False(t, orig.IsRead)

	// Собеседник прочитал: приходит update по тому же id.
	readAt := start.Add(time.Minute)
	updated := orig
	updated.IsRead = true
	updated.ReadAt = &readAt
	hub.Publish(realtime.ChangeEvent{
		Table:  realtime.TableMessages,
		Action: realtime.ActionUpdate,
		New:    &updated,
	}, map[string]string{"conversation_id": conv.ID})

	require.Eventually(t, func() bool {
		msgs := v.Messages()
		return len(msgs) == 1 && msgs[0].IsRead
	}, time.Second, 5*time.Millisecond)
}

func TestIncomingInsertAppendsOnce(t *testing.T) {
	gw, _, conv := setupConversation(t)

	v := chatview.NewMessageView(gw, conv.ID, "alice", nil)
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	sendN(t, gw, conv, "bob", 3, time.Date(2026, time.September, 10, 10, 0, 0, 0, time.UTC))

	require.Eventually(t, func() bool {
		return len(v.Messages()) == 3
	}, time.Second, 5*time.Millisecond)
	// Повторных вставок нет.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, v.Messages(), 3)
}

func TestConversationListUnreadAndBadge(t *testing.T) {
	gw, _, conv := setupConversation(t)
	sendN(t, gw, conv, "bob", 2, time.Date(2026, time.September, 10, 10, 0, 0, 0, time.UTC))

	list := chatview.NewConversationList(gw, "alice", nil)
	require.NoError(t, list.Load(context.Background()))

	items := list.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].UnreadCount)
	assert.Equal(t, "Борис Петров", items[0].User.FullName)
	assert.Equal(t, "msg 1", items[0].LastMessage)
	assert.Equal(t, "2", list.UnreadBadge())

	// Прочтение обнуляет счётчик; бейдж пропадает.
	require.NoError(t, gw.MarkRead(context.Background(), conv.ID, "alice"))
	require.NoError(t, list.Load(context.Background()))
	require.Len(t, list.Items(), 1)
	assert.Equal(t, 0, list.Items()[0].UnreadCount)
	assert.Equal(t, "", list.UnreadBadge())
}

func TestConversationListSearch(t *testing.T) {
	hub := realtime.NewHub(nil, 100)
	gw := gateway.NewMemory(hub)
	gw.AddProfile(model.ProfilePreview{ID: "alice", FullName: "Алиса Иванова"})
	gw.AddProfile(model.ProfilePreview{ID: "bob", FullName: "Борис Петров"})
	gw.AddProfile(model.ProfilePreview{ID: "vera", FullName: "Вера Смирнова"})
	_, err := gw.OpenConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	_, err = gw.OpenConversation(context.Background(), "alice", "vera")
	require.NoError(t, err)

	list := chatview.NewConversationList(gw, "alice", nil)
	require.NoError(t, list.Load(context.Background()))
	assert.Len(t, list.Items(), 2)

	require.NoError(t, list.SetQuery(context.Background(), "вера"))
	items := list.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Вера Смирнова", items[0].User.FullName)

	require.NoError(t, list.SetQuery(context.Background(), ""))
	assert.Len(t, list.Items(), 2)
}

func TestConversationListReloadsOnChange(t *testing.T) {
	gw, _, conv := setupConversation(t)

	updated := make(chan struct{}, 16)
	list := chatview.NewConversationList(gw, "alice", func() {
		select {
		case updated <- struct{}{}:
		default:
		}
	})
	require.NoError(t, list.Load(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	list.Start(ctx)
	defer list.Stop()

	sendN(t, gw, conv, "bob", 1, time.Now().UTC())

	require.Eventually(t, func() bool {
		items := list.Items()
		return len(items) == 1 && items[0].UnreadCount == 1
	}, time.Second, 5*time.Millisecond)
}
