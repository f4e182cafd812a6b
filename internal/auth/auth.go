// Package auth signs users in against the HR backend's OAuth2 token
// endpoint and hands out time service clients that keep the stored
// session's token fresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/sadopc/attendr/internal/session"
	"github.com/sadopc/attendr/internal/timeservice"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type Manager struct {
	baseURL string
	oauth   *oauth2.Config
	timeout time.Duration
	log     *zap.Logger
}

func NewManager(baseURL, clientID string, timeout time.Duration, log *zap.Logger) *Manager {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		baseURL: baseURL,
		oauth: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		timeout: timeout,
		log:     log,
	}
}

func (m *Manager) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: m.timeout})
}

// Login exchanges credentials for a token and looks up the account that
// owns it. The record is not stored; pass it to the session synchronizer.
func (m *Manager) Login(ctx context.Context, username, password string) (*session.Record, error) {
	tok, err := m.oauth.PasswordCredentialsToken(m.httpContext(ctx), username, password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil &&
			(rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("request token: %w", err)
	}

	client := timeservice.NewAuthenticatedClient(ctx, m.baseURL, oauth2.StaticTokenSource(tok), m.log)
	u, err := client.Me(ctx)
	if err != nil {
		return nil, err
	}
	m.log.Info("signed in", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return &session.Record{User: *u, Token: tok}, nil
}

// Client returns a time service client for rec. When the token is
// refreshed, onRefresh receives the updated record so it can be stored
// and broadcast.
func (m *Manager) Client(ctx context.Context, rec session.Record, onRefresh func(session.Record)) *timeservice.Client {
	ts := &savingTokenSource{
		ts:        m.oauth.TokenSource(m.httpContext(ctx), rec.Token),
		rec:       rec,
		last:      rec.Token.AccessToken,
		onRefresh: onRefresh,
		log:       m.log,
	}
	return timeservice.NewAuthenticatedClient(ctx, m.baseURL, ts, m.log)
}

// savingTokenSource reports tokens that differ from the last one seen.
type savingTokenSource struct {
	ts        oauth2.TokenSource
	onRefresh func(session.Record)
	log       *zap.Logger

	mu   sync.Mutex
	rec  session.Record
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := tok.AccessToken != s.last
	if changed {
		s.last = tok.AccessToken
		s.rec.Token = tok
	}
	rec := s.rec
	s.mu.Unlock()

	if changed {
		s.log.Debug("access token refreshed", zap.Time("expiry", tok.Expiry))
		if s.onRefresh != nil {
			s.onRefresh(rec)
		}
	}
	return tok, nil
}
