package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/attendr/internal/idle"
)

// renderIdlePrompt draws the countdown shown before an idle sign-out.
func renderIdlePrompt(st idle.Status, width int) string {
	w := min(width-4, 60)

	title := warningStyle.Bold(true).Render("Are you still there?")
	countdown := idleCountdownStyle.Width(w - 6).Render(formatCountdown(st.UntilLogout))
	label := mutedStyle.Render(fmt.Sprintf("No activity for %s. You will be signed out when this reaches zero.", formatCountdown(st.IdleFor)))
	controls := mutedStyle.Render("Press any key to stay signed in")

	return idlePanelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center, title, "", countdown, "", label, "", controls),
	)
}

// formatCountdown renders MM:SS, rounding partial seconds up so the prompt
// never shows 00:00 before sign-out.
func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
