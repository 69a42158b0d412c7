// Package nav — навигационная логика приложения: какая страница доступна
// пользователю в его текущем состоянии (гость, без анкеты, полный доступ).
package nav

// Page — страница приложения.
type Page string

const (
	PageHome         Page = "home"
	PageLogin        Page = "login"
	PageRegister     Page = "register"
	PageSetupProfile Page = "setup-profile"
	PageSearch       Page = "search"
	PageMessages     Page = "messages"
	PageEvents       Page = "events"
	PageMatches      Page = "matches"
	PageProfile      Page = "profile"
)

// State — состояние пользователя, от которого зависит маршрутизация.
type State struct {
	Authenticated bool
	HasProfile    bool
}

// guestPages доступны без входа.
var guestPages = map[Page]bool{
	PageHome:     true,
	PageLogin:    true,
	PageRegister: true,
}

// Resolve возвращает страницу, которую следует показать вместо запрошенной.
// Гость попадает на вход, пользователь без анкеты — на её заполнение,
// залогиненный со страниц входа уводится на поиск.
func Resolve(s State, requested Page) Page {
	if !s.Authenticated {
		if guestPages[requested] {
			return requested
		}
		return PageLogin
	}
	if !s.HasProfile {
		if requested == PageHome {
			return PageHome
		}
		return PageSetupProfile
	}
	switch requested {
	case PageLogin, PageRegister, PageSetupProfile:
		return PageSearch
	case PageHome, PageSearch, PageMessages, PageEvents, PageMatches, PageProfile:
		return requested
	default:
		return PageHome
	}
}

// Tabs — вкладки нижней навигации для полного доступа.
func Tabs() []Page {
	return []Page{PageSearch, PageMessages, PageEvents, PageMatches, PageProfile}
}

// Shell держит текущее состояние навигации. Вся маршрутизация идёт через
// него, глобального состояния страницы нет.
type Shell struct {
	state   State
	current Page
}

// NewShell создаёт оболочку и сразу разрешает стартовую страницу.
func NewShell(s State, start Page) *Shell {
	return &Shell{state: s, current: Resolve(s, start)}
}

// Current — страница, которую следует показывать.
func (sh *Shell) Current() Page { return sh.current }

// Navigate переходит на страницу с учётом ограничений состояния и
// возвращает фактически показанную.
func (sh *Shell) Navigate(p Page) Page {
	sh.current = Resolve(sh.state, p)
	return sh.current
}

// SetState обновляет состояние (вход, выход, заполнение анкеты) и
// перепроверяет текущую страницу.
func (sh *Shell) SetState(s State) Page {
	sh.state = s
	sh.current = Resolve(s, sh.current)
	return sh.current
}
