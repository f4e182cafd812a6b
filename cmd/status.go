package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/attendr/internal/attendance"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current attendance state and today's totals",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show today's clock log, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withController(cmd.Context(), func(_ *appEnv, ctrl *attendance.Controller) error {
		printStatus(cmd.OutOrStdout(), ctrl.Snapshot())
		return nil
	})
}

func runLog(cmd *cobra.Command, args []string) error {
	return withController(cmd.Context(), func(_ *appEnv, ctrl *attendance.Controller) error {
		printLog(cmd.OutOrStdout(), ctrl.Snapshot().Logs)
		return nil
	})
}

func printStatus(w io.Writer, snap attendance.Snapshot) {
	fmt.Fprintf(w, "State:   %s\n", snap.State)
	if snap.State != attendance.ClockedOut {
		fmt.Fprintf(w, "Since:   %s\n", snap.ClockedInAt.Format("15:04:05"))
		fmt.Fprintf(w, "Session: %s worked, %s break\n",
			attendance.FormatHMS(snap.Elapsed.Work), attendance.FormatHMS(snap.Elapsed.Break))
	}
	fmt.Fprintf(w, "Today:   %s worked, %s break\n",
		attendance.FormatHMS(snap.Today.Work), attendance.FormatHMS(snap.Today.Break))
	if !snap.LastSync.IsZero() {
		fmt.Fprintf(w, "Synced:  %s\n", snap.LastSync.Format(time.RFC3339))
	}
}

func printLog(w io.Writer, logs []attendance.ClockLogEntry) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No clock activity today.")
		return
	}
	for _, l := range logs {
		line := fmt.Sprintf("%s %s  %-15s", l.Date, l.Time, l.Type)
		if l.Detail != "" {
			line += "  " + l.Detail
		}
		fmt.Fprintln(w, line)
	}
}
