package gateway_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormlink/internal/gateway"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
)

func newGateway(t *testing.T) *gateway.Memory {
	t.Helper()
	gw := gateway.NewMemory(realtime.NewHub(nil, 100))
	gw.AddProfile(model.ProfilePreview{ID: "alice", FullName: "Алиса"})
	gw.AddProfile(model.ProfilePreview{ID: "bob", FullName: "Борис"})
	return gw
}

func TestOpenConversationCanonicalPair(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()

	c1, err := gw.OpenConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	c2, err := gw.OpenConversation(ctx, "bob", "alice")
	require.NoError(t, err)

	// (A,B) и (B,A) — один и тот же диалог.
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, c1.User1ID, c2.User1ID)
	assert.True(t, c1.User1ID < c1.User2ID)
}

func TestSendIncrementsRecipientCounterOnly(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()
	conv, err := gw.OpenConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, gw.SendMessage(ctx, &model.Message{
		ID: "m1", ConversationID: conv.ID, SenderID: "alice", Content: "привет", CreatedAt: now,
	}))

	got, err := gw.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadFor("alice"))
	assert.Equal(t, 1, got.UnreadFor("bob"))
	assert.Equal(t, now, got.LastMessageAt)
}

func TestMarkReadZeroesCounterAndFlagsMessages(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()
	conv, err := gw.OpenConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, gw.SendMessage(ctx, &model.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: conv.ID,
			SenderID:       "alice",
			Content:        "привет",
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	assert.Error(t, gw.MarkRead(ctx, "missing", "bob"))

	require.NoError(t, gw.MarkRead(ctx, conv.ID, "bob"))
	got, err := gw.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadFor("bob"))

	msgs, err := gw.GetMessages(ctx, conv.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.True(t, m.IsRead)
		require.NotNil(t, m.ReadAt)
	}

	// Повторное прочтение безвредно.
	require.NoError(t, gw.MarkRead(ctx, conv.ID, "bob"))
}

func TestGetMessagesPagination(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()
	conv, err := gw.OpenConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	base := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		require.NoError(t, gw.SendMessage(ctx, &model.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: conv.ID,
			SenderID:       "alice",
			Content:        "x",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	// Первая страница — самые свежие, от новых к старым.
	page1, err := gw.GetMessages(ctx, conv.ID, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	assert.Equal(t, "m6", page1[0].ID)
	assert.Equal(t, "m4", page1[2].ID)

	// Вторая — строго раньше якоря, без перекрытия.
	page2, err := gw.GetMessages(ctx, conv.ID, page1[2].CreatedAt, 3)
	require.NoError(t, err)
	require.Len(t, page2, 3)
	assert.Equal(t, "m3", page2[0].ID)
	assert.Equal(t, "m1", page2[2].ID)

	page3, err := gw.GetMessages(ctx, conv.ID, page2[2].CreatedAt, 3)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "m0", page3[0].ID)
}

func TestListConversationsOrderAndFilter(t *testing.T) {
	gw := newGateway(t)
	gw.AddProfile(model.ProfilePreview{ID: "vera", FullName: "Вера"})
	ctx := context.Background()

	cb, err := gw.OpenConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	cv, err := gw.OpenConversation(ctx, "alice", "vera")
	require.NoError(t, err)

	base := time.Now().UTC()
	require.NoError(t, gw.SendMessage(ctx, &model.Message{
		ID: "m1", ConversationID: cb.ID, SenderID: "bob", Content: "старое", CreatedAt: base,
	}))
	require.NoError(t, gw.SendMessage(ctx, &model.Message{
		ID: "m2", ConversationID: cv.ID, SenderID: "vera", Content: "свежее", CreatedAt: base.Add(time.Minute),
	}))

	items, err := gw.ListConversations(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Свежая переписка первой.
	assert.Equal(t, "Вера", items[0].User.FullName)
	assert.Equal(t, "свежее", items[0].LastMessage)

	filtered, err := gw.ListConversations(ctx, "alice", "бор")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Борис", filtered[0].User.FullName)
}
