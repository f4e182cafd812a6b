package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/attendr/internal/store"
)

// settingDefaults are the configured values used when the settings table
// has no override.
type settingDefaults struct {
	idleTimeout  time.Duration
	promptBefore time.Duration
	pollInterval time.Duration
}

type settingsModel struct {
	store    *store.Store
	defaults settingDefaults
	width    int
	height   int

	current    settingsSavedMsg
	overridden map[string]bool
	formActive bool
	form       *huh.Form
	formErr    string

	// Form values as pointers (survive value copies)
	idleTimeout  *string
	promptBefore *string
	pollInterval *string
}

func newSettingsModel(s *store.Store, defaults settingDefaults) settingsModel {
	it, pb, pi := "", "", ""
	m := settingsModel{
		store:        s,
		defaults:     defaults,
		idleTimeout:  &it,
		promptBefore: &pb,
		pollInterval: &pi,
	}
	m.current = m.load()
	m.overridden = m.loadOverrides()
	return m
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

// load reads the effective settings: stored overrides, then defaults.
func (s settingsModel) load() settingsSavedMsg {
	return settingsSavedMsg{
		idleTimeout:  s.store.SettingDuration(store.SettingIdleTimeout, s.defaults.idleTimeout),
		promptBefore: s.store.SettingDuration(store.SettingIdlePromptBefore, s.defaults.promptBefore),
		pollInterval: s.store.SettingDuration(store.SettingPollInterval, s.defaults.pollInterval),
	}
}

// loadOverrides reports which keys the user has saved a value for.
func (s settingsModel) loadOverrides() map[string]bool {
	all, err := s.store.GetAllSettings()
	if err != nil {
		return nil
	}
	out := make(map[string]bool, len(all))
	for _, st := range all {
		out[st.Key] = true
	}
	return out
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(msg, keys.Enter) {
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.idleTimeout = strconv.Itoa(int(s.current.idleTimeout / time.Minute))
	*s.promptBefore = strconv.Itoa(int(s.current.promptBefore / time.Minute))
	*s.pollInterval = strconv.Itoa(int(s.current.pollInterval / time.Second))

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Sign out after idle (min)").Value(s.idleTimeout).Validate(positiveInt),
			huh.NewInput().Title("Warn before sign-out (min)").Value(s.promptBefore).Validate(positiveInt),
		).Title("Idle"),
		huh.NewGroup(
			huh.NewInput().Title("Status refresh (s)").Value(s.pollInterval).Validate(positiveInt),
		).Title("Sync"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	s.formErr = ""
	return s, s.form.Init()
}

func positiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a whole number above zero")
	}
	return nil
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		saved, err := s.save()
		if err != nil {
			s.formErr = err.Error()
			return s, nil
		}
		s.current = saved
		s.overridden = s.loadOverrides()
		return s, func() tea.Msg { return saved }
	}

	return s, cmd
}

func (s settingsModel) save() (settingsSavedMsg, error) {
	toDuration := func(v string, unit time.Duration) time.Duration {
		n, _ := strconv.Atoi(v)
		return time.Duration(n) * unit
	}
	next := settingsSavedMsg{
		idleTimeout:  toDuration(*s.idleTimeout, time.Minute),
		promptBefore: toDuration(*s.promptBefore, time.Minute),
		pollInterval: toDuration(*s.pollInterval, time.Second),
	}
	if err := s.store.SetSettingDuration(store.SettingIdleTimeout, next.idleTimeout); err != nil {
		return settingsSavedMsg{}, err
	}
	if err := s.store.SetSettingDuration(store.SettingIdlePromptBefore, next.promptBefore); err != nil {
		return settingsSavedMsg{}, err
	}
	if err := s.store.SetSettingDuration(store.SettingPollInterval, next.pollInterval); err != nil {
		return settingsSavedMsg{}, err
	}
	return next, nil
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		formView := s.form.View()
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", formView),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	items := []struct {
		key   string
		label string
		value string
	}{
		{store.SettingIdleTimeout, "Sign out after idle", formatMinutes(s.current.idleTimeout)},
		{store.SettingIdlePromptBefore, "Warn before sign-out", formatMinutes(s.current.promptBefore)},
		{store.SettingPollInterval, "Status refresh", fmt.Sprintf("%d s", int(s.current.pollInterval/time.Second))},
	}
	for _, it := range items {
		label := lipgloss.NewStyle().Width(24).Render(it.label)
		row := fmt.Sprintf("  %s %s", label, highlightStyle.Render(it.value))
		if !s.overridden[it.key] {
			row += mutedStyle.Render("  (default)")
		}
		rows = append(rows, row)
	}

	if s.current.promptBefore >= s.current.idleTimeout {
		rows = append(rows, "", warningStyle.Render("  The warning lead is not shorter than the timeout; the warning shows right away."))
	}
	if s.formErr != "" {
		rows = append(rows, "", errorStyle.Render("  "+s.formErr))
	}

	rows = append(rows, "")
	rows = append(rows, hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatMinutes(d time.Duration) string {
	return fmt.Sprintf("%d min", int(d/time.Minute))
}
