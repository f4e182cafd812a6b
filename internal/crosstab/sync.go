package crosstab

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/session"
)

// SessionStore persists the shared session record.
type SessionStore interface {
	SaveSession(ctx context.Context, rec session.Record) error
	ClearSession(ctx context.Context) error
}

type Hooks struct {
	// OnCleared runs when another window logged out. The view should drop
	// its user state and show the login screen.
	OnCleared func()
	// OnAdopt runs when this window had no user and another window signed
	// in.
	OnAdopt func(session.PublicUser)
}

// Synchronizer is one window's view of the shared session.
type Synchronizer struct {
	ch    Channel
	store SessionStore
	hooks Hooks
	log   *zap.Logger
	id    string

	mu    sync.Mutex
	user  *session.PublicUser
	unsub func()
}

func NewSynchronizer(ch Channel, store SessionStore, hooks Hooks, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{ch: ch, store: store, hooks: hooks, log: log, id: uuid.NewString()}
}

// ID identifies this window as a message origin.
func (s *Synchronizer) ID() string { return s.id }

// SetUser sets the local user without broadcasting, e.g. after restoring a
// stored session at startup.
func (s *Synchronizer) SetUser(u *session.PublicUser) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Synchronizer) User() (session.PublicUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return session.PublicUser{}, false
	}
	return *s.user, true
}

// Start subscribes to the channel. Call Close when the window goes away.
func (s *Synchronizer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsub != nil {
		return nil
	}
	unsub, err := s.ch.Subscribe(s.handle)
	if err != nil {
		return fmt.Errorf("subscribe to session channel: %w", err)
	}
	s.unsub = unsub
	return nil
}

func (s *Synchronizer) Close() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *Synchronizer) handle(msg Message) {
	if msg.Origin == s.id {
		return
	}
	switch msg.Kind {
	case KindCleared:
		s.mu.Lock()
		had := s.user != nil
		s.user = nil
		s.mu.Unlock()
		s.log.Info("session cleared by another window", zap.String("origin", msg.Origin), zap.Bool("had_user", had))
		if s.hooks.OnCleared != nil {
			s.hooks.OnCleared()
		}
	case KindEstablished:
		if msg.User == nil {
			return
		}
		u := msg.User.User().Public()
		s.mu.Lock()
		if s.user != nil {
			s.mu.Unlock()
			return
		}
		s.user = &u
		s.mu.Unlock()
		s.log.Info("adopted session from another window", zap.Int64("user_id", u.ID))
		if s.hooks.OnAdopt != nil {
			s.hooks.OnAdopt(u)
		}
	}
}

// Login stores rec and announces it to the other windows.
func (s *Synchronizer) Login(ctx context.Context, rec session.Record) error {
	if err := s.store.SaveSession(ctx, rec); err != nil {
		return err
	}
	u := rec.User.Public()
	s.SetUser(&u)
	return s.publish(ctx, Message{Kind: KindEstablished, User: &u})
}

// TokenRefreshed stores rec after a token refresh. Windows without a user
// adopt it like a login.
func (s *Synchronizer) TokenRefreshed(ctx context.Context, rec session.Record) error {
	if err := s.store.SaveSession(ctx, rec); err != nil {
		return err
	}
	u := rec.User.Public()
	return s.publish(ctx, Message{Kind: KindEstablished, User: &u})
}

// Logout destroys the stored session and tells every other window. The
// local hooks are not called; the caller already knows.
func (s *Synchronizer) Logout(ctx context.Context) error {
	s.SetUser(nil)
	if err := s.store.ClearSession(ctx); err != nil {
		s.log.Warn("clearing stored session", zap.Error(err))
	}
	return s.publish(ctx, Message{Kind: KindCleared})
}

func (s *Synchronizer) publish(ctx context.Context, msg Message) error {
	msg.Origin = s.id
	if err := s.ch.Publish(ctx, msg); err != nil {
		s.log.Warn("broadcasting session change", zap.String("kind", string(msg.Kind)), zap.Error(err))
		return err
	}
	return nil
}
