package realtime_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
)

func TestFilterMatches(t *testing.T) {
	empty := realtime.Filter{}
	assert.True(t, empty.Matches(map[string]string{"id": "x"}))
	assert.True(t, empty.Matches(nil))

	f := realtime.Filter{Column: "conversation_id", Value: "c1"}
	assert.True(t, f.Matches(map[string]string{"conversation_id": "c1"}))
	assert.False(t, f.Matches(map[string]string{"conversation_id": "c2"}))
	assert.False(t, f.Matches(map[string]string{"other": "c1"}))
	assert.False(t, f.Matches(nil))
}

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	hub := realtime.NewHub(nil, 100)

	matching := hub.Subscribe(realtime.TableMessages, realtime.Filter{Column: "conversation_id", Value: "c1"})
	defer matching.Unsubscribe()
	otherConv := hub.Subscribe(realtime.TableMessages, realtime.Filter{Column: "conversation_id", Value: "c2"})
	defer otherConv.Unsubscribe()
	otherTable := hub.Subscribe(realtime.TableConversations, realtime.Filter{})
	defer otherTable.Unsubscribe()

	m := &model.Message{ID: "m1", ConversationID: "c1"}
	hub.Publish(realtime.ChangeEvent{Table: realtime.TableMessages, Action: realtime.ActionInsert, New: m},
		map[string]string{"conversation_id": "c1"})

	ev := <-matching.C
	assert.Equal(t, realtime.ActionInsert, ev.Action)
	assert.Same(t, m, ev.New)

	select {
	case ev := <-otherConv.C:
		t.Fatalf("чужой диалог получил событие: %+v", ev)
	default:
	}
	select {
	case ev := <-otherTable.C:
		t.Fatalf("чужая таблица получила событие: %+v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := realtime.NewHub(nil, 100)
	sub := hub.Subscribe(realtime.TableMessages, realtime.Filter{})

	sub.Unsubscribe()
	_, ok := <-sub.C
	require.False(t, ok)

	// Повторный вызов безопасен.
	sub.Unsubscribe()

	// События после отписки не доставляются (и не паникуют на закрытом канале).
	hub.Publish(realtime.ChangeEvent{Table: realtime.TableMessages, Action: realtime.ActionInsert},
		map[string]string{"conversation_id": "c1"})
}

// Отписка во время публикации из другой горутины не должна ронять процесс:
// закрытие канала и отправка в него взаимоисключены локом хаба.
func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	hub := realtime.NewHub(nil, 100)
	ev := realtime.ChangeEvent{Table: realtime.TableMessages, Action: realtime.ActionInsert}
	attrs := map[string]string{"conversation_id": "c1"}

	for i := 0; i < 500; i++ {
		sub := hub.Subscribe(realtime.TableMessages, realtime.Filter{Column: "conversation_id", Value: "c1"})
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hub.Publish(ev, attrs)
			}()
		}
		sub.Unsubscribe()
		wg.Wait()
		for range sub.C {
			// Добираем события, опубликованные до отписки; канал закрыт.
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := realtime.NewHub(nil, 100)
	sub := hub.Subscribe(realtime.TableMessages, realtime.Filter{})
	defer sub.Unsubscribe()

	// Переполняем буфер: Publish не должен блокироваться.
	for i := 0; i < 200; i++ {
		hub.Publish(realtime.ChangeEvent{Table: realtime.TableMessages, Action: realtime.ActionInsert},
			map[string]string{"conversation_id": "c1"})
	}
	// Часть событий дошла, лишние отброшены.
	n := 0
	for {
		select {
		case <-sub.C:
			n++
			continue
		default:
		}
		break
	}
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 64)
}
