package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadopc/attendr/internal/attendance"
)

var clockInCmd = &cobra.Command{
	Use:   "clockin",
	Short: "Clock in for today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, (*attendance.Controller).ClockIn)
	},
}

var clockOutCmd = &cobra.Command{
	Use:   "clockout",
	Short: "Clock out, ending any open break",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, (*attendance.Controller).ClockOut)
	},
}

var breakCmd = &cobra.Command{
	Use:   "break",
	Short: "Start a break, or end the current one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, (*attendance.Controller).ToggleBreak)
	},
}

func runAction(cmd *cobra.Command, act func(*attendance.Controller, context.Context) error) error {
	return withController(cmd.Context(), func(_ *appEnv, ctrl *attendance.Controller) error {
		if err := act(ctrl, cmd.Context()); err != nil {
			return err
		}
		snap := ctrl.Snapshot()
		if snap.Err != "" {
			return errors.New(snap.Err)
		}
		out := cmd.OutOrStdout()
		if snap.Notice != "" {
			fmt.Fprintln(out, snap.Notice)
		}
		printStatus(out, snap)
		return nil
	})
}
