package cmd

import (
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/config"
	"github.com/sadopc/attendr/internal/logcache"
	"github.com/sadopc/attendr/internal/tui"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	file, err := configFile()
	if err != nil {
		return err
	}

	// the watcher may fire before the logger exists
	var log atomic.Pointer[zap.Logger]
	reloads := make(chan tui.Defaults, 1)
	cfg, err := config.Watch(file, func(next *config.Config) {
		if l := log.Load(); l != nil {
			l.Info("config file changed",
				zap.Duration("idle_timeout", next.Idle.Timeout),
				zap.Duration("poll_interval", next.Attend.PollInterval))
		}
		offerDefaults(reloads, defaultsFrom(next))
	}, func(err error) {
		if l := log.Load(); l != nil {
			l.Warn("ignoring invalid config edit", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	env, err := openEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	log.Store(env.log)

	d := defaultsFrom(cfg)
	env.log.Info("starting terminal UI", zap.String("backend", cfg.CrossTab.Backend))
	return tui.Run(ctx, tui.Services{
		Store:            env.store,
		Cache:            logcache.New(env.store, env.log),
		Channel:          env.ch,
		Login:            env.auth.Login,
		Connect:          env.controller,
		Location:         env.loc,
		Logger:           env.log,
		IdleTimeout:      d.IdleTimeout,
		IdlePromptBefore: d.IdlePromptBefore,
		PollInterval:     d.PollInterval,
		WatchInterval:    cfg.Attend.WatchInterval,
		Reloads:          reloads,
	})
}

func defaultsFrom(cfg *config.Config) tui.Defaults {
	return tui.Defaults{
		IdleTimeout:      cfg.Idle.Timeout,
		IdlePromptBefore: cfg.Idle.PromptBefore,
		PollInterval:     cfg.Attend.PollInterval,
	}
}

// offerDefaults queues d, replacing a reload the UI has not taken yet.
func offerDefaults(ch chan tui.Defaults, d tui.Defaults) {
	for {
		select {
		case ch <- d:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
