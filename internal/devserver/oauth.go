package devserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/store"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// Token implements the password and refresh_token grants. Refresh tokens
// are single use.
func (s *Server) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	grant := r.PostForm.Get("grant_type")
	ctx := r.Context()

	var (
		account *store.Account
		err     error
	)
	switch grant {
	case "password":
		username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
		if username == "" || password == "" {
			s.metrics.logins.WithLabelValues(grant, "invalid").Inc()
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		account, err = s.store.Authenticate(ctx, username, password)
	case "refresh_token":
		rt := r.PostForm.Get("refresh_token")
		account, err = s.store.AccountForToken(ctx, rt, store.TokenRefresh, s.now())
		if err == nil {
			err = s.store.RevokeToken(ctx, rt)
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) || errors.Is(err, store.ErrUnknownToken) {
			s.metrics.logins.WithLabelValues(grant, "denied").Inc()
			writeError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		s.metrics.logins.WithLabelValues(grant, "error").Inc()
		s.log.Error("token grant failed", zap.String("grant_type", grant), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := s.now()
	resp := tokenResponse{
		AccessToken:  uuid.NewString(),
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokenTTL.Seconds()),
		RefreshToken: uuid.NewString(),
	}
	if err := s.store.SaveToken(ctx, resp.AccessToken, store.TokenAccess, account.ID, now.Add(s.tokenTTL)); err != nil {
		s.log.Error("save access token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.SaveToken(ctx, resp.RefreshToken, store.TokenRefresh, account.ID, now.Add(s.refreshTTL)); err != nil {
		s.log.Error("save refresh token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.metrics.logins.WithLabelValues(grant, "ok").Inc()
	s.log.Info("token issued", zap.Int64("account_id", account.ID), zap.String("grant_type", grant))
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
