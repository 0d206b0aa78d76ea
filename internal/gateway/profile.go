package gateway

import (
	"context"
	"fmt"

	"bookletku/internal/platform"
)

// Profile reads a user's profile row with the caller's credentials.
func (g *Gateway) Profile(ctx context.Context, userID string) (platform.ProfileRow, error) {
	var row platform.ProfileRow
	err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
		var err error
		row, err = g.deps.Tables.GetProfile(ctx, userID)
		return err
	})
	if err != nil {
		return platform.ProfileRow{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return row, nil
}
