package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/attendr/internal/auth"
	"github.com/sadopc/attendr/internal/session"
)

// LoginFunc exchanges credentials for a session record.
type LoginFunc func(ctx context.Context, username, password string) (*session.Record, error)

type loginModel struct {
	login LoginFunc
	ctx   context.Context
	width int

	form       *huh.Form
	submitting bool
	errText    string

	username *string
	password *string
}

func newLoginModel(ctx context.Context, login LoginFunc) loginModel {
	u, p := "", ""
	m := loginModel{login: login, ctx: ctx, username: &u, password: &p}
	m.form = m.buildForm()
	return m
}

func (l loginModel) buildForm() *huh.Form {
	*l.password = ""
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Username").Value(l.username).Validate(huh.ValidateNotEmpty()),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(l.password).Validate(huh.ValidateNotEmpty()),
		),
	).WithShowHelp(false).WithShowErrors(true)
}

func (l *loginModel) setSize(w int) { l.width = w }

func (l loginModel) init() tea.Cmd {
	return l.form.Init()
}

func (l loginModel) update(msg tea.Msg) (loginModel, tea.Cmd) {
	if res, ok := msg.(loginResultMsg); ok {
		l.submitting = false
		if res.err == nil {
			return l, nil
		}
		if errors.Is(res.err, auth.ErrInvalidCredentials) {
			l.errText = "Invalid username or password"
		} else {
			l.errText = res.err.Error()
		}
		l.form = l.buildForm()
		return l, l.form.Init()
	}

	if l.submitting {
		return l, nil
	}

	form, cmd := l.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		l.form = f
	}
	if l.form.State == huh.StateCompleted {
		l.submitting = true
		l.errText = ""
		username, password := *l.username, *l.password
		login, ctx := l.login, l.ctx
		return l, func() tea.Msg {
			rec, err := login(ctx, username, password)
			return loginResultMsg{rec: rec, err: err}
		}
	}
	return l, cmd
}

func (l loginModel) view() string {
	w := min(l.width-4, 60)
	title := titleStyle.Render("Sign in")

	rows := []string{title, ""}
	if l.submitting {
		rows = append(rows, mutedStyle.Render("Signing in…"))
	} else {
		rows = append(rows, l.form.View())
	}
	if l.errText != "" {
		rows = append(rows, "", errorStyle.Render(l.errText))
	}
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
