package catalog

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

const MAX_UPLOAD_BYTES = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Upload is a file received from the UI, held in memory so it can be re-sent
// after a token refresh.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

func (u Upload) Validate() error {
	if len(u.Data) == 0 {
		return invalid("file", "file is empty")
	}
	if len(u.Data) > MAX_UPLOAD_BYTES {
		return invalid("file", fmt.Sprintf("file is larger than %d bytes", MAX_UPLOAD_BYTES))
	}
	return nil
}

// Extension returns the file extension without the dot, taken from the file
// name or, failing that, from the media type.
func (u Upload) Extension() string {
	if ext := strings.TrimPrefix(path.Ext(u.FileName), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if ext, ok := imageExtensions[u.ContentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(u.ContentType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

// PhotoObjectName is unique per millisecond, which is all the menu editor needs.
func PhotoObjectName(u Upload, now time.Time) string {
	return fmt.Sprintf("menu-%d.%s", now.UnixMilli(), u.Extension())
}

func AvatarObjectName(u Upload, ownerID string, now time.Time) string {
	return fmt.Sprintf("avatars/%s-%d.%s", ownerID, now.UnixMilli(), u.Extension())
}
