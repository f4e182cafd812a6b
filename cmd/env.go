package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/attendance"
	"github.com/sadopc/attendr/internal/auth"
	"github.com/sadopc/attendr/internal/config"
	"github.com/sadopc/attendr/internal/crosstab"
	"github.com/sadopc/attendr/internal/logcache"
	"github.com/sadopc/attendr/internal/logger"
	"github.com/sadopc/attendr/internal/session"
	"github.com/sadopc/attendr/internal/store"
)

var errNotSignedIn = errors.New("not signed in: run `attendr login` first")

// appEnv is everything a command needs, opened from config.
type appEnv struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
	loc   *time.Location
	auth  *auth.Manager
	ch    crosstab.Channel

	closeCh func()
}

func configFile() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultFile()
}

func loadConfig() (*config.Config, error) {
	file, err := configFile()
	if err != nil {
		return nil, err
	}
	return config.Load(file)
}

func openEnv(ctx context.Context, cfg *config.Config) (*appEnv, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logPath := cfg.Logging.Path
	if logPath == "" {
		if logPath, err = logger.DefaultPath(); err != nil {
			return nil, err
		}
	}
	log, err := logger.New(cfg.Logging.Env, logPath)
	if err != nil {
		return nil, err
	}

	path := dbPath
	if path == "" {
		path = cfg.App.DBPath
	}
	if path == "" {
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ch, closeCh, err := newChannel(ctx, cfg, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &appEnv{
		cfg:     cfg,
		log:     log,
		store:   st,
		loc:     loc,
		auth:    auth.NewManager(cfg.Service.BaseURL, cfg.Service.ClientID, cfg.Service.Timeout, log),
		ch:      ch,
		closeCh: closeCh,
	}, nil
}

func newChannel(ctx context.Context, cfg *config.Config, log *zap.Logger) (crosstab.Channel, func(), error) {
	if cfg.CrossTab.Backend != config.BackendRedis {
		return crosstab.NewHub(), func() {}, nil
	}
	rc, err := crosstab.NewRedisChannel(ctx, crosstab.RedisConfig{
		Addr:     cfg.CrossTab.Redis.Addr,
		Password: cfg.CrossTab.Redis.Password,
		DB:       cfg.CrossTab.Redis.DB,
		Channel:  cfg.CrossTab.Redis.Channel,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return rc, func() {
		if err := rc.Close(); err != nil {
			log.Warn("closing redis channel", zap.Error(err))
		}
	}, nil
}

func (e *appEnv) Close() {
	e.closeCh()
	if err := e.store.Close(); err != nil {
		e.log.Warn("closing database", zap.Error(err))
	}
	_ = e.log.Sync()
}

func (e *appEnv) synchronizer(hooks crosstab.Hooks) *crosstab.Synchronizer {
	return crosstab.NewSynchronizer(e.ch, e.store, hooks, e.log)
}

// session returns the stored session or errNotSignedIn.
func (e *appEnv) session(ctx context.Context) (*session.Record, error) {
	rec, err := e.store.LoadSession(ctx)
	if errors.Is(err, store.ErrNoSession) || (err == nil && !rec.Active()) {
		return nil, errNotSignedIn
	}
	return rec, err
}

// controller builds an attendance controller that talks to the service
// with rec's credentials. Refreshed tokens go back through sync so every
// window picks them up.
func (e *appEnv) controller(ctx context.Context, rec *session.Record, sync *crosstab.Synchronizer, opts attendance.Options) *attendance.Controller {
	opts.Service = e.auth.Client(ctx, *rec, func(next session.Record) {
		if err := sync.TokenRefreshed(ctx, next); err != nil {
			e.log.Warn("storing refreshed token", zap.Error(err))
		}
	})
	opts.Cache = logcache.New(e.store, e.log)
	opts.Location = e.loc
	opts.Logger = e.log
	if opts.TickInterval == 0 {
		opts.TickInterval = e.cfg.Attend.TickInterval
	}
	return attendance.NewController(opts)
}

// withController opens the environment, loads the session and hands a
// controller with fresh status to fn.
func withController(ctx context.Context, fn func(*appEnv, *attendance.Controller) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := openEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	rec, err := env.session(ctx)
	if err != nil {
		return err
	}
	sync := env.synchronizer(crosstab.Hooks{})
	ctrl := env.controller(ctx, rec, sync, attendance.Options{})
	defer ctrl.Close()

	if err := ctrl.Refresh(ctx); err != nil {
		return fmt.Errorf("fetching attendance status: %w", err)
	}
	return fn(env, ctrl)
}
