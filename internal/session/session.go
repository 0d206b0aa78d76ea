// Package session keeps the signed-in user's tokens and profile on the client
// side and announces session lifecycle changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"bookletku/internal/platform"
)

var ErrNoSession = errors.New("no active session")

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventSignedOut      EventType = "SIGNED_OUT"
)

type Event struct {
	Type EventType
	User *platform.User
}

const EVENT_BUFFER = 8

type Manager struct {
	auth   platform.Auth
	tables platform.Tables

	mu      sync.RWMutex
	current *platform.Session
	profile *platform.ProfileRow

	refreshMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func NewManager(auth platform.Auth, tables platform.Tables) *Manager {
	return &Manager{
		auth:   auth,
		tables: tables,
		subs:   make(map[int]chan Event),
	}
}

// --- Lifecycle ---

// SignUp registers an account and writes its profile row. Role defaults to
// "user"; granting "admin" needs an admin session on the platform side.
func (m *Manager) SignUp(ctx context.Context, email, password, name, role string) (platform.Session, error) {
	email = strings.TrimSpace(email)
	if role == "" {
		role = platform.RoleUser
	}

	sess, err := m.auth.SignUp(ctx, email, password, name)
	if err != nil {
		return platform.Session{}, err
	}

	profile := platform.ProfileRow{ID: sess.User.ID, Email: email, Name: name, Role: role}
	if err := m.tables.UpsertProfile(platform.WithAccessToken(ctx, sess.AccessToken), profile); err != nil {
		log.Printf("session: profile upsert for %s failed: %v", sess.User.ID, err)
		profile.Role = platform.RoleUser
	}

	m.set(&sess, &profile)
	m.emit(Event{Type: EventSignedIn, User: &sess.User})
	return sess, nil
}

func (m *Manager) SignIn(ctx context.Context, email, password string) (platform.Session, error) {
	sess, err := m.auth.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return platform.Session{}, err
	}

	profile := m.loadProfile(platform.WithAccessToken(ctx, sess.AccessToken), sess.User)
	m.set(&sess, &profile)
	m.emit(Event{Type: EventSignedIn, User: &sess.User})
	return sess, nil
}

// SignOut revokes the refresh token remotely and always clears local state.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == nil {
		return nil
	}

	err := m.auth.SignOut(ctx, cur.RefreshToken)
	if err != nil {
		log.Printf("session: remote sign-out failed: %v", err)
	}
	m.LocalSignOut()
	return err
}

// LocalSignOut drops the tokens without calling the platform, so a rejected
// token is never sent again.
func (m *Manager) LocalSignOut() {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.profile = nil
	m.mu.Unlock()

	if had {
		m.emit(Event{Type: EventSignedOut})
	}
}

// Refresh exchanges the refresh token for a new session. stale is the access
// token the caller saw rejected; if another caller already replaced it, the
// refresh is skipped. A rejected refresh token signs the session out locally.
func (m *Manager) Refresh(ctx context.Context, stale string) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == nil {
		return ErrNoSession
	}
	if stale != "" && cur.AccessToken != stale {
		return nil
	}

	next, err := m.auth.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		if errors.Is(err, platform.ErrInvalidRefreshToken) {
			log.Println("session: refresh token rejected, signing out")
			m.LocalSignOut()
		}
		return fmt.Errorf("refresh session: %w", err)
	}

	m.mu.Lock()
	m.current = &next
	m.mu.Unlock()

	m.emit(Event{Type: EventTokenRefreshed, User: &next.User})
	return nil
}

// RefreshProfile re-reads the profile row of the signed-in user.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == nil {
		return ErrNoSession
	}

	profile := m.loadProfile(m.Context(ctx), cur.User)
	m.mu.Lock()
	if m.current != nil && m.current.User.ID == profile.ID {
		m.profile = &profile
	}
	m.mu.Unlock()
	return nil
}

// --- Accessors ---

// Context attaches the current access token, or marks the call as a guest.
func (m *Manager) Context(ctx context.Context) context.Context {
	return platform.WithAccessToken(ctx, m.AccessToken())
}

func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.AccessToken
}

func (m *Manager) Current() (platform.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return platform.Session{}, false
	}
	return *m.current, true
}

func (m *Manager) Profile() (platform.ProfileRow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return platform.ProfileRow{}, false
	}
	return *m.profile, true
}

func (m *Manager) IsAdmin() bool {
	p, ok := m.Profile()
	return ok && p.Role == platform.RoleAdmin
}

// Subscribe returns a channel of lifecycle events and its release func.
// Slow readers miss events rather than block the session.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, EVENT_BUFFER)

	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

// Announce passes a lifecycle change of some other session to this
// manager's subscribers. The manager's own tokens are left alone, so a host
// can report each user's sign-ins on a shared guest manager.
func (m *Manager) Announce(ev Event) {
	m.emit(ev)
}

// --- Helpers ---

func (m *Manager) set(sess *platform.Session, profile *platform.ProfileRow) {
	m.mu.Lock()
	m.current = sess
	m.profile = profile
	m.mu.Unlock()
}

func (m *Manager) loadProfile(ctx context.Context, user platform.User) platform.ProfileRow {
	profile, err := m.tables.GetProfile(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			log.Printf("session: fetch profile %s: %v", user.ID, err)
		}
		return platform.ProfileRow{ID: user.ID, Email: user.Email, Name: user.Name, Role: platform.RoleUser}
	}
	return profile
}

func (m *Manager) emit(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("session: dropped %s event for a slow subscriber", ev.Type)
		}
	}
}
