package nav_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dormlink/internal/nav"
)

func TestResolve(t *testing.T) {
	guest := nav.State{}
	noProfile := nav.State{Authenticated: true}
	full := nav.State{Authenticated: true, HasProfile: true}

	tests := []struct {
		name      string
		state     nav.State
		requested nav.Page
		want      nav.Page
	}{
		{"гость на главной", guest, nav.PageHome, nav.PageHome},
		{"гость на регистрации", guest, nav.PageRegister, nav.PageRegister},
		{"гостя уводит на вход", guest, nav.PageMessages, nav.PageLogin},
		{"гость на поиске", guest, nav.PageSearch, nav.PageLogin},

		{"без анкеты на главной", noProfile, nav.PageHome, nav.PageHome},
		{"без анкеты на поиске", noProfile, nav.PageSearch, nav.PageSetupProfile},
		{"без анкеты на заполнении", noProfile, nav.PageSetupProfile, nav.PageSetupProfile},

		{"залогиненный со входа", full, nav.PageLogin, nav.PageSearch},
		{"залогиненный с регистрации", full, nav.PageRegister, nav.PageSearch},
		{"залогиненный с заполнения анкеты", full, nav.PageSetupProfile, nav.PageSearch},
		{"залогиненный на сообщениях", full, nav.PageMessages, nav.PageMessages},
		{"залогиненный на главной", full, nav.PageHome, nav.PageHome},
		{"неизвестная страница", full, nav.Page("settings"), nav.PageHome},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nav.Resolve(tc.state, tc.requested))
		})
	}
}

func TestShell(t *testing.T) {
	sh := nav.NewShell(nav.State{}, nav.PageMessages)
	assert.Equal(t, nav.PageLogin, sh.Current(), "гостя со страницы сообщений уводит на вход")

	// Вход без анкеты.
	assert.Equal(t, nav.PageSetupProfile, sh.SetState(nav.State{Authenticated: true}))

	// Анкета заполнена.
	assert.Equal(t, nav.PageSearch, sh.SetState(nav.State{Authenticated: true, HasProfile: true}))
	assert.Equal(t, nav.PageEvents, sh.Navigate(nav.PageEvents))

	// Выход.
	assert.Equal(t, nav.PageLogin, sh.SetState(nav.State{}))
}

func TestTabs(t *testing.T) {
	tabs := nav.Tabs()
	assert.Equal(t, []nav.Page{
		nav.PageSearch, nav.PageMessages, nav.PageEvents, nav.PageMatches, nav.PageProfile,
	}, tabs)
}
