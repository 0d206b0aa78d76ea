package gateway

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"bookletku/internal/catalog"
)

// UploadPhoto stores a menu photo and returns its public URL.
func (g *Gateway) UploadPhoto(ctx context.Context, u catalog.Upload) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	name := catalog.PhotoObjectName(u, time.Now())
	if err := g.upload(ctx, name, u, false); err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return g.deps.Storage.PublicURL(name), nil
}

// UploadAvatar stores a profile picture for ownerID and points the owner's
// profile at it.
func (g *Gateway) UploadAvatar(ctx context.Context, u catalog.Upload, ownerID string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", &catalog.ValidationError{Field: "owner", Message: "owner id is required"}
	}
	if err := u.Validate(); err != nil {
		return "", err
	}

	name := catalog.AvatarObjectName(u, ownerID, time.Now())
	if err := g.upload(ctx, name, u, true); err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	url := g.deps.Storage.PublicURL(name)

	err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
		return g.deps.Tables.UpdateProfileAvatar(ctx, ownerID, url)
	})
	if err != nil {
		log.Printf("gateway: set avatar for %s: %v", ownerID, err)
		return "", fmt.Errorf("update profile avatar: %w", err)
	}
	return url, nil
}

func (g *Gateway) upload(ctx context.Context, name string, u catalog.Upload, upsert bool) error {
	err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
		return g.deps.Storage.Upload(ctx, name, u.ContentType, bytes.NewReader(u.Data), upsert)
	})
	if err != nil {
		log.Printf("gateway: upload %s: %v", name, err)
	}
	return err
}
