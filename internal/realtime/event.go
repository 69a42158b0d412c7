package realtime

// Action — тип изменения строки.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Имена таблиц, по которым рассылаются события изменений.
const (
	TableProfiles         = "profiles"
	TableMatches          = "matches"
	TableEvents           = "events"
	TableConversations    = "conversations"
	TableMessages         = "messages"
	TableTypingIndicators = "typing_indicators"
)

// ChangeEvent — типизированное событие изменения строки: insert несёт New,
// delete — Old, update — обе версии. Подписчик сворачивает поток таких
// событий в своё локальное состояние.
type ChangeEvent struct {
	Table  string `json:"table"`
	Action Action `json:"action"`
	Old    any    `json:"old,omitempty"`
	New    any    `json:"new,omitempty"`
}

// Filter — предикат подписки: равенство по одной колонке.
// Нулевой фильтр пропускает все события таблицы.
type Filter struct {
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Matches проверяет событие по его атрибутам (колонка → значение строки).
func (f Filter) Matches(attrs map[string]string) bool {
	if f.Column == "" {
		return true
	}
	return attrs[f.Column] == f.Value
}
