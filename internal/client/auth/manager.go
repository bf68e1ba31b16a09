package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/client/session"
	"github.com/dmitrijs2005/assettrack/internal/logging"
	"github.com/dmitrijs2005/assettrack/internal/metrics"
)

type Status int

const (
	StatusInitializing Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// State is what pages see of the manager.
type State struct {
	IsAuthenticated bool
	IsLoading       bool
	User            *session.UserProfile
}

const (
	MsgNotAuthenticated = "You are not authenticated. Please log in."
	MsgSessionExpired   = "Your session has expired. Please log in again."
	MsgSaveFailed       = "Could not save your session. Please log in again."
)

var (
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrInitializing         = errors.New("auth state still initializing")
)

// CredentialStore is the slice of session.Store the manager uses.
type CredentialStore interface {
	Load(ctx context.Context) (*session.Credential, error)
	Save(ctx context.Context, token string, user session.UserProfile) error
	Clear(ctx context.Context) error
	Subscribe(fn func(session.Event)) (cancel func())
}

type Options struct {
	Store     CredentialStore
	Navigator Navigator
	Notifier  notify.Notifier
	Logger    logging.Logger
	Metrics   *metrics.Metrics
	// Observer sees every transition, starting with the initial one out of
	// Initializing.
	Observer func(prev, next State)
	Now      func() time.Time
}

// Manager is one browsing context's authentication state. Its methods are
// safe for concurrent use. No lock is held while calling the store, the
// navigator, the notifier or observers.
type Manager struct {
	store    CredentialStore
	nav      Navigator
	notifier notify.Notifier
	log      logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu       sync.Mutex
	status   Status
	user     *session.UserProfile
	observer func(prev, next State)
	watchers map[int]func(State)
	nextID   int

	unsubscribe func()
}

// NewManager builds the manager and synchronously settles its initial state
// from the store. A missing, corrupt, unreadable or expired credential
// leaves it Unauthenticated and the store cleared.
func NewManager(ctx context.Context, opts Options) *Manager {
	m := &Manager{
		store:    opts.Store,
		nav:      opts.Navigator,
		notifier: opts.Notifier,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
		status:   StatusInitializing,
		observer: opts.Observer,
		watchers: make(map[int]func(State)),
	}
	if m.notifier == nil {
		m.notifier = notify.Discard{}
	}
	if m.log == nil {
		m.log = logging.Nop{}
	}
	if m.now == nil {
		m.now = time.Now
	}

	user := m.readStore(ctx)
	if user != nil {
		m.transition(ctx, StatusAuthenticated, user)
	} else {
		m.transition(ctx, StatusUnauthenticated, nil)
	}
	m.unsubscribe = m.store.Subscribe(func(ev session.Event) {
		m.onStorageEvent(context.Background(), ev)
	})
	m.CheckRoute(ctx)
	return m
}

// readStore loads the credential and returns its user, or nil. Anything
// other than a clean, unexpired credential clears the store.
func (m *Manager) readStore(ctx context.Context) *session.UserProfile {
	cred, err := m.store.Load(ctx)
	switch {
	case err != nil:
		m.log.Warn(ctx, "stored credential unusable, clearing", "error", err)
	case cred == nil:
		return nil
	case cred.Expired(m.now()):
		m.log.Info(ctx, "stored token expired, clearing", "user", cred.User.Username)
	default:
		u := cred.User
		return &u
	}
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error(ctx, "clear credential failed", "error", err)
	}
	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) stateLocked() State {
	st := State{
		IsAuthenticated: m.status == StatusAuthenticated,
		IsLoading:       m.status == StatusInitializing,
	}
	if m.user != nil {
		u := *m.user
		st.User = &u
	}
	return st
}

// Watch registers fn for every later state change. The returned func
// removes it.
func (m *Manager) Watch(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// transition installs the new state and notifies observers. It reports
// whether anything changed.
func (m *Manager) transition(ctx context.Context, status Status, user *session.UserProfile) bool {
	m.mu.Lock()
	prev := m.stateLocked()
	prevStatus := m.status
	m.status = status
	m.user = user
	next := m.stateLocked()
	observer := m.observer
	watchers := make([]func(State), 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	if prevStatus == status && sameUser(prev.User, next.User) {
		return false
	}
	m.log.Debug(ctx, "auth state changed", "from", prevStatus, "to", status)
	if prevStatus == StatusAuthenticated {
		m.metrics.AuthChanged(false)
	}
	if status == StatusAuthenticated {
		m.metrics.AuthChanged(true)
	}
	if observer != nil {
		observer(prev, next)
	}
	for _, w := range watchers {
		w(next)
	}
	return true
}

func sameUser(a, b *session.UserProfile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Username == b.Username && a.IsStaff == b.IsStaff
}

// Login records a credential obtained from the backend. It is only valid
// while Unauthenticated. If the credential cannot be persisted the manager
// logs out and reports the failure to the user.
func (m *Manager) Login(ctx context.Context, token string, user session.UserProfile) error {
	switch m.Status() {
	case StatusInitializing:
		return ErrInitializing
	case StatusAuthenticated:
		return ErrAlreadyAuthenticated
	}

	if err := m.store.Save(ctx, token, user); err != nil {
		m.log.Error(ctx, "persist credential failed", "user", user.Username, "error", err)
		m.Logout(ctx)
		m.notifier.Notify(notify.Notice{Level: notify.Error, Message: MsgSaveFailed})
		return err
	}

	m.metrics.Login()
	m.log.Info(ctx, "logged in", "user", user.Username)
	if m.transition(ctx, StatusAuthenticated, &user) {
		m.CheckRoute(ctx)
	}
	return nil
}

// Logout clears the credential and resets navigation to the landing page,
// discarding page state. Valid from any state.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error(ctx, "clear credential failed", "error", err)
	}
	m.metrics.Logout()
	m.transition(ctx, StatusUnauthenticated, nil)
	if m.nav != nil {
		m.nav.Reset(PathLanding)
	}
}

// Expire ends a session the backend rejected. The user is told and sent to
// the login page. Repeated calls after the first only clear the store.
func (m *Manager) Expire(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error(ctx, "clear credential failed", "error", err)
	}
	if m.Status() != StatusAuthenticated {
		return
	}
	if !m.transition(ctx, StatusUnauthenticated, nil) {
		return
	}
	m.metrics.SessionExpired()
	m.log.Info(ctx, "session expired")
	m.notifier.Notify(notify.Notice{Level: notify.Error, Message: MsgSessionExpired})
	if m.nav != nil && !IsPublic(m.nav.Current()) {
		m.nav.Redirect(PathLogin)
	}
}

// onStorageEvent re-derives state from the store after another context
// changed the credential.
func (m *Manager) onStorageEvent(ctx context.Context, ev session.Event) {
	if ev.Key != session.KeyToken && ev.Key != session.KeyUser {
		return
	}
	if m.Status() == StatusInitializing {
		return
	}
	m.Refresh(ctx)
}

// Refresh re-reads the store and adopts whatever it holds.
func (m *Manager) Refresh(ctx context.Context) {
	user := m.readStore(ctx)
	changed := false
	if user != nil {
		changed = m.transition(ctx, StatusAuthenticated, user)
	} else {
		changed = m.transition(ctx, StatusUnauthenticated, nil)
	}
	if changed {
		m.CheckRoute(ctx)
	}
}

// CheckRoute redirects to the login page when the current path is
// protected and nobody is logged in. It never acts while loading and
// reports whether the current path may be shown.
func (m *Manager) CheckRoute(ctx context.Context) bool {
	st := m.State()
	if st.IsLoading || st.IsAuthenticated || m.nav == nil {
		return true
	}
	path := m.nav.Current()
	if IsPublic(path) {
		return true
	}

	m.log.Debug(ctx, "redirecting unauthenticated user", "from", path)
	m.metrics.LoginRedirect()
	m.nav.Redirect(PathLogin)
	m.notifier.Notify(notify.Notice{Level: notify.Info, Message: MsgNotAuthenticated})
	return false
}

// Navigate switches to path and applies the route check. It reports whether
// path is now shown.
func (m *Manager) Navigate(ctx context.Context, path string) bool {
	if m.nav == nil {
		return false
	}
	m.nav.Redirect(path)
	return m.CheckRoute(ctx)
}

// Close stops following other contexts.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}
