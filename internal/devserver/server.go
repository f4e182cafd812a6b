// Package devserver is a reference implementation of the HR time service
// for local use and end-to-end tests. It issues opaque bearer tokens via
// the OAuth2 password grant and keeps time entries in the local store.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/store"
)

type Options struct {
	TokenTTL time.Duration
	// RefreshTTL defaults to 30 days.
	RefreshTTL time.Duration
	Location   *time.Location
	Now        func() time.Time
	// Registry defaults to a private registry so several servers can
	// coexist in one process.
	Registry *prometheus.Registry
}

type Server struct {
	store      *store.Store
	log        *zap.Logger
	validate   *validator.Validate
	tokenTTL   time.Duration
	refreshTTL time.Duration
	loc        *time.Location
	now        func() time.Time
	registry   *prometheus.Registry
	metrics    *metrics
}

func New(s *store.Store, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 8 * time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		store:      s,
		log:        log,
		validate:   validate,
		tokenTTL:   opts.TokenTTL,
		refreshTTL: opts.RefreshTTL,
		loc:        opts.Location,
		now:        opts.Now,
		registry:   opts.Registry,
		metrics:    newMetrics(opts.Registry),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.Healthz)
	r.Post("/oauth/token", s.Token)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/api/me", s.Me)
		r.Get("/api/attendance/status", s.Status)
		r.Post("/api/attendance/action", s.Action)
		r.Delete("/api/attendance/entries/{id}", s.DeleteEntry)
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, srv *Server, log *zap.Logger) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("time service listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down time service")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctxShutdown)
}
