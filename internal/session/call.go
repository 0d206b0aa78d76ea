package session

import (
	"context"
	"fmt"
	"sync"

	"bookletku/internal/platform"
)

// Call holds the tokens a single API request arrived with. A refresh swaps
// them in place so the host can return the renewed pair to the client.
type Call struct {
	auth platform.Auth

	mu        sync.Mutex
	access    string
	refresh   string
	renewed   *platform.Session
	signedOut bool
}

func NewCall(auth platform.Auth, accessToken, refreshToken string) *Call {
	return &Call{auth: auth, access: accessToken, refresh: refreshToken}
}

func (c *Call) Context(ctx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return platform.WithAccessToken(ctx, c.access)
}

func (c *Call) Refresh(ctx context.Context, stale string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refresh == "" {
		return ErrNoSession
	}
	if stale != "" && c.access != stale {
		return nil
	}

	next, err := c.auth.Refresh(ctx, c.refresh)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	c.access = next.AccessToken
	c.refresh = next.RefreshToken
	c.renewed = &next
	return nil
}

// LocalSignOut drops the tokens; later calls run as a guest.
func (c *Call) LocalSignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = ""
	c.refresh = ""
	c.renewed = nil
	c.signedOut = true
}

// Renewed returns the session issued by a refresh during the call, if any.
func (c *Call) Renewed() (platform.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.renewed == nil {
		return platform.Session{}, false
	}
	return *c.renewed, true
}

// SignedOut reports whether the call's credentials were dropped.
func (c *Call) SignedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signedOut
}
