package msgfmt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/msgfmt"
)

// Фиксированное "сейчас": вторник, 15 сентября 2026, 12:00.
var now = time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)

func TestFormatMessageTime(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want string
	}{
		{"полминуты назад", now.Add(-30 * time.Second), "Только что"},
		{"пять минут назад", now.Add(-5 * time.Minute), "5 мин назад"},
		{"59 минут назад", now.Add(-59 * time.Minute), "59 мин назад"},
		{"в тот же день", now.Add(-3 * time.Hour), "09:00"},
		{"два дня назад", now.AddDate(0, 0, -2), "Воскресенье"},
		{"шесть дней назад", now.AddDate(0, 0, -6), "Среда"},
		{"десять дней назад", now.AddDate(0, 0, -10), "5 сент."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, msgfmt.FormatMessageTime(tc.t, now))
		})
	}
}

func TestFormatLastSeen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want string
	}{
		{"только что", now.Add(-20 * time.Second), "только что"},
		{"минуты", now.Add(-15 * time.Minute), "15 мин назад"},
		{"часы", now.Add(-5 * time.Hour), "5 ч назад"},
		{"вчера", now.AddDate(0, 0, -1), "вчера"},
		{"дни", now.Add(-72 * time.Hour), "3 дн назад"},
		{"давно", now.AddDate(0, 0, -30), "16 авг."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, msgfmt.FormatLastSeen(tc.t, now))
		})
	}
}

func TestDateSeparator(t *testing.T) {
	assert.Equal(t, "Сегодня", msgfmt.DateSeparator(now.Add(-2*time.Hour), now))
	assert.Equal(t, "Вчера", msgfmt.DateSeparator(now.AddDate(0, 0, -1), now))
	assert.Equal(t, "5 сентября", msgfmt.DateSeparator(now.AddDate(0, 0, -10), now))
	assert.Equal(t, "15 сентября 2025", msgfmt.DateSeparator(now.AddDate(-1, 0, 0), now))
}

func TestDateSeparatorMidnightBoundary(t *testing.T) {
	// 00:10 и 23:50 накануне — разные дни, хоть между ними 20 минут.
	early := time.Date(2026, time.September, 15, 0, 10, 0, 0, time.UTC)
	assert.Equal(t, "Вчера", msgfmt.DateSeparator(early.Add(-20*time.Minute), early))
}

func TestIsSameDay(t *testing.T) {
	assert.True(t, msgfmt.IsSameDay(now, now.Add(11*time.Hour)))
	assert.False(t, msgfmt.IsSameDay(now, now.AddDate(0, 0, 1)))
	// Одно число в разных месяцах — разные дни.
	assert.False(t, msgfmt.IsSameDay(now, now.AddDate(0, 1, 0)))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "Hello...", msgfmt.TruncateText("Hello World", 5))
	assert.Equal(t, "Hi", msgfmt.TruncateText("Hi", 5))
	assert.Equal(t, "Привет...", msgfmt.TruncateText("Привет, сосед", 6))
}

func TestFormatUnreadBadge(t *testing.T) {
	assert.Equal(t, "1", msgfmt.FormatUnreadBadge(1))
	assert.Equal(t, "99", msgfmt.FormatUnreadBadge(99))
	assert.Equal(t, "99+", msgfmt.FormatUnreadBadge(100))
	assert.Equal(t, "99+", msgfmt.FormatUnreadBadge(500))
}

func TestGroupMessagesByDate(t *testing.T) {
	mk := func(id string, at time.Time) model.Message {
		return model.Message{ID: id, CreatedAt: at}
	}
	day1 := time.Date(2026, time.September, 13, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, time.September, 14, 21, 30, 0, 0, time.UTC)
	msgs := []model.Message{
		mk("a", day1), mk("b", day1.Add(time.Hour)),
		mk("c", day2), mk("d", day2.Add(time.Minute)), mk("e", day2.Add(2*time.Minute)),
	}

	groups := msgfmt.GroupMessagesByDate(msgs)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Messages, 2)
	assert.Len(t, groups[1].Messages, 3)

	// Конкатенация групп восстанавливает исходную ленту.
	var flat []model.Message
	for _, g := range groups {
		for _, m := range g.Messages {
			assert.True(t, msgfmt.IsSameDay(g.Date, m.CreatedAt))
		}
		flat = append(flat, g.Messages...)
	}
	assert.Equal(t, msgs, flat)
}

func TestGroupMessagesByDateEmpty(t *testing.T) {
	assert.Empty(t, msgfmt.GroupMessagesByDate(nil))
}
