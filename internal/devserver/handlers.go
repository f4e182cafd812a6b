package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/session"
	"github.com/sadopc/attendr/internal/store"
	"github.com/sadopc/attendr/internal/timeservice"
)

type ctxKey struct{}

func accountFrom(ctx context.Context) *store.Account {
	a, _ := ctx.Value(ctxKey{}).(*store.Account)
	return a
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Healthz is a simple health check endpoint.
func (s *Server) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		a, err := s.store.AccountForToken(r.Context(), token, store.TokenAccess, s.now())
		if err != nil {
			if !errors.Is(err, store.ErrUnknownToken) {
				s.log.Error("token lookup failed", zap.Error(err))
			}
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, a)))
	})
}

// Me returns the account that owns the bearer token.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r.Context())
	writeJSON(w, http.StatusOK, session.User{
		ID:       a.ID,
		Username: a.Username,
		Name:     a.Name,
		Email:    a.Email,
		Role:     a.Role,
	})
}

// Status reports the caller's open entry and the entries of one work date.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r.Context())
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.now().In(s.loc).Format("2006-01-02")
	}
	if err := s.validate.Var(date, "datetime=2006-01-02"); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	entries, err := s.store.ListEntries(r.Context(), a.ID, date)
	if err != nil {
		s.log.Error("list entries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load entries")
		return
	}
	open, err := s.store.OpenEntry(r.Context(), a.ID)
	if err != nil {
		s.log.Error("open entry", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load entries")
		return
	}

	st := timeservice.Status{TodayEntries: make([]timeservice.TimeEntry, 0, len(entries))}
	for i := range entries {
		st.TodayEntries = append(st.TodayEntries, wireEntry(&entries[i]))
	}
	if open != nil {
		e := wireEntry(open)
		// an overnight shift still belongs to today's view
		if open.WorkDate != date {
			st.TodayEntries = append(st.TodayEntries, e)
		}
		st.IsClockedIn = true
		st.ActiveEntry = &e
		if b := open.OpenBreak(); b != nil {
			wb := wireBreak(b)
			st.IsOnBreak = true
			st.ActiveBreak = &wb
		}
	}
	writeJSON(w, http.StatusOK, st)
}

// Action applies one attendance mutation. Invariant violations (a second
// open entry, a second open break) are rejected with 409.
func (s *Server) Action(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r.Context())
	var req timeservice.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("failed to decode json", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.log.Warn("validation failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx := r.Context()
	now := s.now()
	var (
		res timeservice.ActionResult
		err error
	)
	switch req.Type {
	case timeservice.ActionClockIn:
		date := req.WorkDate
		if date == "" {
			date = now.In(s.loc).Format("2006-01-02")
		}
		var e *store.TimeEntry
		if e, err = s.store.ClockIn(ctx, a.ID, date, now); err == nil {
			we := wireEntry(e)
			res.Entry = &we
		}
	case timeservice.ActionClockOut:
		var e *store.TimeEntry
		if e, err = s.store.ClockOut(ctx, a.ID, now); err == nil {
			we := wireEntry(e)
			res.Entry = &we
		}
	case timeservice.ActionBreakIn:
		var b *store.Break
		if b, err = s.store.StartBreak(ctx, a.ID, now); err == nil {
			wb := wireBreak(b)
			res.Break = &wb
		}
	case timeservice.ActionBreakOut:
		var b *store.Break
		if b, err = s.store.EndBreak(ctx, a.ID, now); err == nil {
			wb := wireBreak(b)
			res.Break = &wb
		}
	}

	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyClockedIn), errors.Is(err, store.ErrNotClockedIn),
			errors.Is(err, store.ErrAlreadyOnBreak), errors.Is(err, store.ErrNotOnBreak):
			s.metrics.actions.WithLabelValues(string(req.Type), "rejected").Inc()
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.metrics.actions.WithLabelValues(string(req.Type), "error").Inc()
			s.log.Error("attendance action failed", zap.String("type", string(req.Type)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not record action")
		}
		return
	}

	s.metrics.actions.WithLabelValues(string(req.Type), "ok").Inc()
	s.log.Info("attendance action", zap.Int64("account_id", a.ID), zap.String("type", string(req.Type)))
	writeJSON(w, http.StatusOK, res)
}

// DeleteEntry removes one of the caller's entries, as an administrator
// correcting a mistaken record would.
func (s *Server) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	e, err := s.store.GetEntry(r.Context(), id)
	if err != nil || e.AccountID != a.ID {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err := s.store.DeleteEntry(r.Context(), id); err != nil {
		s.log.Error("delete entry", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func wireEntry(e *store.TimeEntry) timeservice.TimeEntry {
	out := timeservice.TimeEntry{
		ID:       e.ID,
		ClockIn:  e.ClockIn,
		ClockOut: e.ClockOut,
		Breaks:   make([]timeservice.BreakInterval, 0, len(e.Breaks)),
	}
	for i := range e.Breaks {
		out.Breaks = append(out.Breaks, wireBreak(&e.Breaks[i]))
	}
	return out
}

func wireBreak(b *store.Break) timeservice.BreakInterval {
	return timeservice.BreakInterval{ID: b.ID, BreakStart: b.BreakStart, BreakEnd: b.BreakEnd}
}
