package cmd

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/devserver"
	"github.com/sadopc/attendr/internal/logger"
	"github.com/sadopc/attendr/internal/store"
)

var (
	devserverAddr string
	devserverDB   string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local time service for development",
	Long: `devserver serves the time service API over a local SQLite database.
Unknown usernames are enrolled on first sign-in. Metrics are exposed on
/metrics.`,
	Args: cobra.NoArgs,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().StringVar(&devserverAddr, "addr", "", "Listen address (overrides devserver.addr)")
	devserverCmd.Flags().StringVar(&devserverDB, "db", "", "Server database path (default ~/.config/attendr/devserver.db)")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	// the server owns the terminal, so it logs to stderr
	log, err := logger.New(cfg.Logging.Env, "")
	if err != nil {
		return err
	}
	defer log.Sync()

	path := devserverDB
	if path == "" {
		appDB, err := store.DefaultDBPath()
		if err != nil {
			return err
		}
		path = filepath.Join(filepath.Dir(appDB), "devserver.db")
	}
	st, err := store.New(path)
	if err != nil {
		return err
	}
	defer st.Close()

	addr := devserverAddr
	if addr == "" {
		addr = cfg.DevServer.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := devserver.New(st, log, devserver.Options{
		TokenTTL: cfg.DevServer.TokenTTL,
		Location: loc,
	})
	log.Info("starting dev time service", zap.String("db", path))
	return devserver.Run(ctx, addr, srv, log)
}
