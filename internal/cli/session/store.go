// Package session holds the process-wide authentication state: who is
// logged in, with which token, and where that token is persisted.
//
// A Store has a lifecycle: NewStore, Init (restore from storage), then Login
// and Logout. Readers observe changes through Subscribe.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrIncompleteCredentials = errors.New("token and user id are both required")

// Session is a snapshot of the authentication state
type Session struct {
	Token     string
	UserID    string
	Role      Role
	Persisted bool
}

// Present reports whether credentials are held. Token and UserID are always
// set or unset together.
func (s Session) Present() bool {
	return s.Token != ""
}

// Store owns the session and the two storage slots
type Store struct {
	durable   Storage
	transient Storage
	log       zerolog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	state   Session
	subs    map[int]func(Session)
	nextSub int
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates an empty store. durable backs "remember me" sessions,
// transient backs sessions scoped to the current terminal.
func NewStore(durable, transient Storage, opts ...Option) *Store {
	s := &Store{
		durable:   durable,
		transient: transient,
		log:       zerolog.Nop(),
		now:       time.Now,
		subs:      make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init restores the session, preferring the durable slot. Unusable records
// (half-populated, malformed or expired tokens) are cleared.
func (s *Store) Init() error {
	var errs []error

	state, err := s.restore(s.durable, true)
	if err != nil {
		errs = append(errs, err)
	}
	if !state.Present() {
		state, err = s.restore(s.transient, false)
		if err != nil {
			errs = append(errs, err)
		}
	}

	s.set(state)
	return errors.Join(errs...)
}

func (s *Store) restore(slot Storage, persisted bool) (Session, error) {
	rec, err := slot.Load()
	if err != nil {
		return Session{}, err
	}
	if rec == nil {
		return Session{}, nil
	}

	if rec.Token == "" || rec.UserID == "" {
		s.log.Warn().Bool("persisted", persisted).Msg("Discarding incomplete stored session")
		return Session{}, slot.Clear()
	}

	claims, err := checkToken(rec.Token, s.now())
	if err != nil {
		s.log.Info().Err(err).Bool("persisted", persisted).Msg("Discarding unusable stored session")
		return Session{}, slot.Clear()
	}

	return Session{
		Token:     rec.Token,
		UserID:    rec.UserID,
		Role:      claims.RoleOf(),
		Persisted: persisted,
	}, nil
}

// Login stores the credentials. With rememberMe the durable slot is used,
// otherwise the transient one. The other slot is cleared; a failure there is
// logged and does not fail the login.
func (s *Store) Login(token, userID string, rememberMe bool) error {
	if token == "" || userID == "" {
		return ErrIncompleteCredentials
	}

	role := RoleNone
	if claims, err := ParseClaims(token); err == nil {
		role = claims.RoleOf()
	}
	rec := Record{Token: token, UserID: userID, Role: role}

	target, other := s.transient, s.durable
	if rememberMe {
		target, other = s.durable, s.transient
	}
	if err := target.Save(rec); err != nil {
		return err
	}
	// clearing the other slot is best effort
	if err := other.Clear(); err != nil {
		s.log.Warn().Err(err).Bool("remember_me", rememberMe).Msg("Failed to clear previous session slot")
	}

	s.log.Debug().Str("user_id", userID).Bool("remember_me", rememberMe).Msg("Session stored")
	s.set(Session{Token: token, UserID: userID, Role: role, Persisted: rememberMe})
	return nil
}

// Logout clears every slot it can and resets the state. The state is reset
// even when a slot fails to clear; the joined errors are returned.
func (s *Store) Logout() error {
	err := s.clearSlots()
	s.set(Session{})
	return err
}

// Expire drops a session the server rejected
func (s *Store) Expire() error {
	s.log.Info().Msg("Session expired")
	return s.Logout()
}

func (s *Store) clearSlots() error {
	var errs []error
	if err := s.durable.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear durable session slot")
		errs = append(errs, fmt.Errorf("durable slot: %w", err))
	}
	if err := s.transient.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear transient session slot")
		errs = append(errs, fmt.Errorf("transient slot: %w", err))
	}
	return errors.Join(errs...)
}

// Snapshot returns the current state
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the current token, empty when logged out
func (s *Store) Token() string {
	return s.Snapshot().Token
}

// IsAuthenticated is true only while a well-formed, unexpired token is held
func (s *Store) IsAuthenticated() bool {
	snap := s.Snapshot()
	if !snap.Present() {
		return false
	}
	_, err := checkToken(snap.Token, s.now())
	return err == nil
}

// Role decodes the role claim of the held token. It never fails: absent,
// malformed and expired tokens all yield RoleNone.
func (s *Store) Role() Role {
	snap := s.Snapshot()
	if !snap.Present() {
		return RoleNone
	}
	claims, err := checkToken(snap.Token, s.now())
	if err != nil {
		return RoleNone
	}
	return claims.RoleOf()
}

// Subscribe registers fn to be called with every new state. The returned
// function unregisters it.
func (s *Store) Subscribe(fn func(Session)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) set(state Session) {
	s.mu.Lock()
	s.state = state
	subs := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// String hides the token
func (s Session) String() string {
	if !s.Present() {
		return "anonymous"
	}
	return fmt.Sprintf("user %s (role %q, persisted %t)", s.UserID, s.Role, s.Persisted)
}
