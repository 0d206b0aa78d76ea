package gateway

import (
	"context"
	"fmt"
	"log"

	"bookletku/internal/platform"
)

const MAX_AUTH_RETRIES = 2

// withAuthRetry runs op with the session's token. When the platform rejects
// the token it refreshes the session once and retries. If the refresh fails
// the session is dropped locally; reads (guestOK) then retry as a guest,
// writes return ErrAuthExpired.
func (g *Gateway) withAuthRetry(ctx context.Context, guestOK bool, op func(context.Context) error) error {
	if g.closed() {
		return ErrClosed
	}
	sessions := g.sessionsFor(ctx)
	refreshed := false
	for retries := 0; ; retries++ {
		callCtx := sessions.Context(ctx)
		err := op(callCtx)
		if err == nil || !platform.IsAuthError(err) {
			return err
		}
		if retries >= MAX_AUTH_RETRIES {
			return fmt.Errorf("%w: %w", ErrAuthExpired, err)
		}

		if !refreshed {
			refreshed = true
			log.Printf("gateway: token rejected (%v), refreshing session", err)
			rerr := sessions.Refresh(ctx, platform.AccessToken(callCtx))
			if rerr == nil {
				continue
			}
			log.Printf("gateway: session refresh failed: %v", rerr)
		}

		sessions.LocalSignOut()
		if !guestOK {
			return fmt.Errorf("%w: %w", ErrAuthExpired, err)
		}
		log.Println("gateway: retrying as guest")
	}
}
