package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bookletku/internal/platform"
)

type fakeAuth struct {
	mu         sync.Mutex
	refreshErr error
	refreshes  int
	signOuts   []string
	issued     int
}

func (f *fakeAuth) session(email string) platform.Session {
	f.issued++
	n := string(rune('0' + f.issued))
	return platform.Session{
		AccessToken:  "access-" + n,
		RefreshToken: "refresh-" + n,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         platform.User{ID: "u1", Email: email},
	}
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password, name string) (platform.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session(email), nil
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (platform.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if password != "secret" {
		return platform.Session{}, platform.ErrInvalidCredentials
	}
	return f.session(email), nil
}

func (f *fakeAuth) SignOut(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, refreshToken)
	return nil
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (platform.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return platform.Session{}, f.refreshErr
	}
	return f.session("owner@bookletku.id"), nil
}

type fakeProfiles struct {
	platform.Tables
	mu       sync.Mutex
	profiles map[string]platform.ProfileRow
	tokens   []string
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (platform.ProfileRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return platform.ProfileRow{}, platform.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) UpsertProfile(ctx context.Context, row platform.ProfileRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, platform.AccessToken(ctx))
	f.profiles[row.ID] = row
	return nil
}

func newTestManager() (*Manager, *fakeAuth, *fakeProfiles) {
	auth := &fakeAuth{}
	profiles := &fakeProfiles{profiles: map[string]platform.ProfileRow{}}
	return NewManager(auth, profiles), auth, profiles
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session event")
	}
	return Event{}
}

func TestSignUpWritesProfileWithNewToken(t *testing.T) {
	m, _, profiles := newTestManager()
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	sess, err := m.SignUp(context.Background(), " owner@bookletku.id ", "secret", "Sri", "")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	p, ok := m.Profile()
	if !ok || p.Role != platform.RoleUser || p.Email != "owner@bookletku.id" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if len(profiles.tokens) != 1 || profiles.tokens[0] != sess.AccessToken {
		t.Fatalf("profile upsert used tokens %v", profiles.tokens)
	}
	if ev := nextEvent(t, events); ev.Type != EventSignedIn {
		t.Fatalf("event = %s, want %s", ev.Type, EventSignedIn)
	}
}

func TestSignInLoadsProfileRole(t *testing.T) {
	m, _, profiles := newTestManager()
	profiles.profiles["u1"] = platform.ProfileRow{ID: "u1", Role: platform.RoleAdmin}

	if _, err := m.SignIn(context.Background(), "owner@bookletku.id", "wrong"); !errors.Is(err, platform.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := m.SignIn(context.Background(), "owner@bookletku.id", "secret"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !m.IsAdmin() {
		t.Fatal("expected admin profile")
	}
	if got := platform.AccessToken(m.Context(context.Background())); got == "" {
		t.Fatal("expected access token in context")
	}
}

func TestRefreshSkipsWhenTokenAlreadyReplaced(t *testing.T) {
	m, auth, _ := newTestManager()
	if _, err := m.SignIn(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}
	stale := m.AccessToken()

	if err := m.Refresh(context.Background(), stale); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := m.Refresh(context.Background(), stale); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if auth.refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1", auth.refreshes)
	}
	if m.AccessToken() == stale {
		t.Fatal("access token not replaced")
	}
}

func TestRejectedRefreshSignsOutLocally(t *testing.T) {
	m, auth, _ := newTestManager()
	if _, err := m.SignIn(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	auth.refreshErr = platform.ErrInvalidRefreshToken
	if err := m.Refresh(context.Background(), m.AccessToken()); !errors.Is(err, platform.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if _, ok := m.Current(); ok {
		t.Fatal("session should be cleared")
	}
	if ev := nextEvent(t, events); ev.Type != EventSignedOut {
		t.Fatalf("event = %s, want %s", ev.Type, EventSignedOut)
	}
	if err := m.Refresh(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSignOutRevokesAndClears(t *testing.T) {
	m, auth, _ := newTestManager()
	if _, err := m.SignIn(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}
	refresh := func() string { s, _ := m.Current(); return s.RefreshToken }()

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if len(auth.signOuts) != 1 || auth.signOuts[0] != refresh {
		t.Fatalf("signOuts = %v", auth.signOuts)
	}
	if m.AccessToken() != "" {
		t.Fatal("token should be dropped")
	}
	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut without session: %v", err)
	}
}

func TestAnnounceKeepsOwnSession(t *testing.T) {
	m, _, _ := newTestManager()
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	other := platform.User{ID: "u9", Email: "budi@mail.id"}
	m.Announce(Event{Type: EventSignedIn, User: &other})

	ev := nextEvent(t, events)
	if ev.Type != EventSignedIn || ev.User == nil || ev.User.ID != "u9" {
		t.Fatalf("event = %+v", ev)
	}
	if _, ok := m.Current(); ok {
		t.Fatal("announce must not sign the manager in")
	}
}

func TestCallRefreshSwapsTokens(t *testing.T) {
	auth := &fakeAuth{}
	c := NewCall(auth, "old-access", "old-refresh")

	if err := c.Refresh(context.Background(), "old-access"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	renewed, ok := c.Renewed()
	if !ok || renewed.AccessToken == "old-access" {
		t.Fatalf("renewed = %+v, %v", renewed, ok)
	}
	if got := platform.AccessToken(c.Context(context.Background())); got != renewed.AccessToken {
		t.Errorf("context token = %q", got)
	}
	if err := c.Refresh(context.Background(), "old-access"); err != nil || auth.refreshes != 1 {
		t.Errorf("stale refresh err=%v refreshes=%d", err, auth.refreshes)
	}

	c.LocalSignOut()
	if !c.SignedOut() || platform.AccessToken(c.Context(context.Background())) != "" {
		t.Error("call still carries credentials")
	}
	if err := c.Refresh(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}
