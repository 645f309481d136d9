package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/reelhub/backend/internal/storage"
)

// StorageBaseURL prefixes every URL the fake uploader returns
const StorageBaseURL = "https://cdn.test/"

// Storage is an in-memory storage.Uploader
type Storage struct {
	mu      sync.Mutex
	Uploads []storage.Kind
	Deleted []string
	Err     error
}

var _ storage.Uploader = (*Storage)(nil)

func (f *Storage) Upload(_ context.Context, kind storage.Kind, ownerID, filename string, body io.Reader) (*storage.UploadResult, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	_, _ = io.ReadAll(body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uploads = append(f.Uploads, kind)
	key := fmt.Sprintf("%s/%s/%d-%s", kind, ownerID, len(f.Uploads), filename)
	return &storage.UploadResult{Key: key, URL: f.PublicURL(key)}, nil
}

func (f *Storage) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, key)
	return nil
}

func (f *Storage) PublicURL(key string) string { return StorageBaseURL + key }

func (f *Storage) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, StorageBaseURL) {
		return "", false
	}
	return strings.TrimPrefix(url, StorageBaseURL), true
}

func (f *Storage) CheckBucketAccess(context.Context) error { return f.Err }
