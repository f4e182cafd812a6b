package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/attendr/internal/attendance"
	"github.com/sadopc/attendr/internal/export"
)

type sessionsModel struct {
	loc    *time.Location
	width  int
	height int

	sessions []export.Session
	chart    barchart.Model
}

func newSessionsModel(loc *time.Location) sessionsModel {
	if loc == nil {
		loc = time.Local
	}
	return sessionsModel{
		loc:   loc,
		chart: barchart.New(60, 12),
	}
}

func (s *sessionsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

// setEntries reconciles today's entries into rows and redraws the chart.
func (s *sessionsModel) setEntries(snap attendance.Snapshot, now time.Time) {
	s.sessions = export.Sessions(snap.Entries, now, s.loc)
	s.buildChart()
}

func (s *sessionsModel) buildChart() {
	chartWidth := s.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if s.height > 30 {
		chartHeight = 16
	}

	s.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for i, sess := range s.sessions {
		bars = append(bars, barchart.BarData{
			Label: fmt.Sprintf("#%d %s", i+1, clockTime(sess.ClockIn)),
			Values: []barchart.BarValue{
				{Name: "Work", Value: float64(sess.Elapsed.Work) / 3600, Style: workingStyle},
				{Name: "Break", Value: float64(sess.Elapsed.Break) / 3600, Style: onBreakStyle},
			},
		})
	}
	if len(bars) == 0 {
		bars = []barchart.BarData{{
			Label:  "",
			Values: []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}},
		}}
	}

	s.chart.PushAll(bars)
	s.chart.Draw()
}

// clockTime cuts an RFC3339 timestamp down to HH:MM.
func clockTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return "--:--"
	}
	return t.Format("15:04")
}

func (s sessionsModel) view() string {
	w := s.width - 4

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Sessions"), "  ",
		mutedStyle.Render(time.Now().In(s.loc).Format("Mon Jan 02, 2006")),
	)

	legend := fmt.Sprintf("  %s Work  %s Break",
		successStyle.Render("●"), warningStyle.Render("●"))

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", s.chart.View(), "", legend, "", s.renderTable(w),
		),
	)
}

func (s sessionsModel) renderTable(w int) string {
	if len(s.sessions) == 0 {
		return mutedStyle.Render("  No sessions today")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-4s %-6s %-6s %10s %10s %7s", "#", "In", "Out", "Work", "Break", "Hours")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 50))))

	var total attendance.Elapsed
	for i, sess := range s.sessions {
		out := "…"
		if sess.ClockOut != "" {
			out = clockTime(sess.ClockOut)
		}
		rows = append(rows, fmt.Sprintf("  %-4d %-6s %-6s %10s %10s %7s",
			i+1, clockTime(sess.ClockIn), out,
			attendance.FormatHMS(sess.Elapsed.Work), attendance.FormatHMS(sess.Elapsed.Break),
			formatHours(sess.Elapsed.Work),
		))
		total.Work += sess.Elapsed.Work
		total.Break += sess.Elapsed.Break
	}
	rows = append(rows, highlightStyle.Render(fmt.Sprintf("  %-18s %10s %10s %7s", "Total",
		attendance.FormatHMS(total.Work), attendance.FormatHMS(total.Break), formatHours(total.Work))))

	return strings.Join(rows, "\n")
}
