// Package msgfmt форматирует времена и тексты для ленты сообщений.
// Все функции принимают "сейчас" параметром, чтобы их можно было проверять
// детерминированно.
package msgfmt

import (
	"fmt"
	"time"

	"github.com/dormlink/internal/model"
)

var weekdays = [...]string{
	"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота",
}

var monthsShort = [...]string{
	"янв.", "февр.", "марта", "апр.", "мая", "июня",
	"июля", "авг.", "сент.", "окт.", "нояб.", "дек.",
}

var monthsLong = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatMessageTime — подпись времени у сообщения: от "Только что"
// до календарной даты по мере старения.
func FormatMessageTime(t, now time.Time) string {
	diff := now.Sub(t)
	mins := int(diff.Minutes())
	hours := int(diff.Hours())
	days := int(diff.Hours() / 24)

	switch {
	case mins < 1:
		return "Только что"
	case mins < 60:
		return fmt.Sprintf("%d мин назад", mins)
	case hours < 24:
		return t.Format("15:04")
	case days < 7:
		return weekdays[t.Weekday()]
	default:
		return fmt.Sprintf("%d %s", t.Day(), monthsShort[t.Month()-1])
	}
}

// FormatLastSeen — подпись "был(а) в сети": шкала грубее, чем у сообщений.
func FormatLastSeen(t, now time.Time) string {
	diff := now.Sub(t)
	mins := int(diff.Minutes())
	hours := int(diff.Hours())
	days := int(diff.Hours() / 24)

	switch {
	case mins < 1:
		return "только что"
	case mins < 60:
		return fmt.Sprintf("%d мин назад", mins)
	case hours < 24:
		return fmt.Sprintf("%d ч назад", hours)
	case days == 1:
		return "вчера"
	case days < 7:
		return fmt.Sprintf("%d дн назад", days)
	default:
		return fmt.Sprintf("%d %s", t.Day(), monthsShort[t.Month()-1])
	}
}

// DateSeparator — заголовок группы сообщений одного дня.
// Год добавляется только для чужих лет.
func DateSeparator(t, now time.Time) string {
	day := func(x time.Time) time.Time {
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, x.Location())
	}
	days := int(day(now).Sub(day(t)).Hours() / 24)

	switch {
	case days == 0:
		return "Сегодня"
	case days == 1:
		return "Вчера"
	case t.Year() != now.Year():
		return fmt.Sprintf("%d %s %d", t.Day(), monthsLong[t.Month()-1], t.Year())
	default:
		return fmt.Sprintf("%d %s", t.Day(), monthsLong[t.Month()-1])
	}
}

// IsSameDay сравнивает календарные дни (год, месяц, число).
func IsSameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// TruncateText обрезает строку до maxLen рун и добавляет многоточие.
func TruncateText(text string, maxLen int) string {
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return string(r[:maxLen]) + "..."
}

// FormatUnreadBadge — счётчик на бейдже: больше 99 показывается как "99+".
func FormatUnreadBadge(n int) string {
	if n > 99 {
		return "99+"
	}
	return fmt.Sprintf("%d", n)
}

// MessageGroup — подряд идущие сообщения одного календарного дня.
type MessageGroup struct {
	Date     time.Time
	Messages []model.Message
}

// GroupMessagesByDate режет хронологическую ленту на группы по дням.
// Порядок сообщений сохраняется; конкатенация групп равна входу.
func GroupMessagesByDate(messages []model.Message) []MessageGroup {
	var groups []MessageGroup
	for _, m := range messages {
		if len(groups) == 0 || !IsSameDay(groups[len(groups)-1].Date, m.CreatedAt) {
			groups = append(groups, MessageGroup{Date: m.CreatedAt, Messages: []model.Message{m}})
			continue
		}
		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, m)
	}
	return groups
}
