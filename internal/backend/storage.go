package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bookletku/internal/platform"
)

const AVATAR_PREFIX = "avatars/"

// objectPath resolves name inside the bucket directory and refuses names
// that would escape it.
func (b *Backend) objectPath(name string) (string, error) {
	root := filepath.Join(b.opts.StorageDir, b.opts.Bucket)
	p := filepath.Join(root, filepath.FromSlash(name))
	if name == "" || !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return p, nil
}

// Upload stores an object. Menu photos need an admin; avatars need any
// signed-in user.
func (b *Backend) Upload(ctx context.Context, name, contentType string, body io.Reader, upsert bool) error {
	if strings.HasPrefix(name, AVATAR_PREFIX) {
		if _, err := b.requireUser(ctx); err != nil {
			return err
		}
	} else if _, err := b.requireAdmin(ctx); err != nil {
		return err
	}

	p, err := b.objectPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !upsert {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(p, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return platform.ErrObjectExists
	}
	if err != nil {
		return fmt.Errorf("open object: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("write object: %w", err)
	}
	return f.Close()
}

func (b *Backend) PublicURL(name string) string {
	base := strings.TrimRight(b.opts.PublicBaseURL, "/")
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", base, b.opts.Bucket, name)
}
