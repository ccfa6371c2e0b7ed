package storage

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// PublicPrefix is the URL path segment images are served under.
const PublicPrefix = "eRepo"

// MaxImageBytes caps a single uploaded image.
const MaxImageBytes = 5 << 20

// Keys are random and never rewritten, so objects can be cached forever.
const immutableCacheControl = "public, max-age=31536000, immutable"

var (
	ErrInvalidKey       = errors.New("invalid object key")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// DetectImage sniffs the content type of data and returns it with the file
// extension used for stored keys. Only JPEG and PNG are accepted.
func DetectImage(data []byte) (contentType, ext string, err error) {
	contentType = http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	return contentType, ext, nil
}

// ContentTypeForKey maps a stored key back to its content type.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// NewImageKey returns a collision-resistant key such as
// "profile_photo-3f2a...e1.png".
func NewImageKey(field, ext string) string {
	return field + "-" + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

// PublicPath is the path stored on the profile and fetched by clients.
func PublicPath(key string) string {
	return PublicPrefix + "/" + key
}

// KeyFromPublicPath reverses PublicPath. Only the base name is kept so a
// stored path can never address an object outside the bucket.
func KeyFromPublicPath(p string) string {
	if p == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

// ValidateKey rejects keys that are empty, hidden, or contain separators.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.HasPrefix(key, ".") ||
		strings.ContainsAny(key, `/\`) {
		return ErrInvalidKey
	}
	return nil
}
