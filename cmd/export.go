package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/attendr/internal/attendance"
	"github.com/sadopc/attendr/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export today's sessions and clock log to a file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, xlsx")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default attendr-<date>.<format>)")
}

func runExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case "csv", "json", "xlsx":
	default:
		return fmt.Errorf("unknown format %q: use csv, json or xlsx", exportFormat)
	}

	return withController(cmd.Context(), func(env *appEnv, ctrl *attendance.Controller) error {
		now := time.Now()
		snap := ctrl.Snapshot()
		sessions := export.Sessions(snap.Entries, now, env.loc)

		path := exportOutput
		if path == "" {
			path = fmt.Sprintf("attendr-%s.%s", now.In(env.loc).Format("2006-01-02"), exportFormat)
		}

		var err error
		switch exportFormat {
		case "json":
			err = export.ToJSON(sessions, snap.Logs, path)
		case "xlsx":
			err = export.ToXLSX(sessions, snap.Logs, path)
		default:
			err = export.ToCSV(sessions, path)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sessions to %s\n", len(sessions), path)
		return nil
	})
}
