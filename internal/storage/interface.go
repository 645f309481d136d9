package storage

import (
	"context"
	"io"
)

// Kind is the top-level folder an upload lands in
type Kind string

const (
	KindAvatar    Kind = "avatars"
	KindProduct   Kind = "products"
	KindVideo     Kind = "videos"
	KindThumbnail Kind = "thumbnails"
)

// Valid reports whether k is a known upload kind
func (k Kind) Valid() bool {
	switch k {
	case KindAvatar, KindProduct, KindVideo, KindThumbnail:
		return true
	}
	return false
}

// Uploader stores user media and maps keys to public URLs
type Uploader interface {
	Upload(ctx context.Context, kind Kind, ownerID, filename string, body io.Reader) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
	PublicURL(key string) string
	KeyFromURL(url string) (string, bool)
	CheckBucketAccess(ctx context.Context) error
}

var _ Uploader = (*S3Uploader)(nil)
