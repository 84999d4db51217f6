package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound indicates no object exists at the path (or the URL does not belong to the store).
var ErrNotFound = errors.New("blob not found")

// Store is the photo bucket. Objects are addressed by path; readers use the public URL.
type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (publicURL string, err error)
	PublicURL(path string) string
	// Fetch downloads an object given a public URL previously returned by this store.
	Fetch(ctx context.Context, publicURL string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	// PathFromURL maps a public URL back to its object path.
	PathFromURL(publicURL string) (string, bool)
}
