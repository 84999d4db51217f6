package blobstore

import (
	"context"
	"strings"
	"sync"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
)

// Store keeps objects in a map and serves them under a fake public base URL.
type Store struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
}

type object struct {
	data        []byte
	contentType string
}

func NewStore(baseURL string) *Store {
	if baseURL == "" {
		baseURL = "memory://photos"
	}
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]object),
	}
}

func (s *Store) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path = strings.TrimLeft(path, "/")
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[path] = object{data: buf, contentType: contentType}
	s.mu.Unlock()
	return s.PublicURL(path), nil
}

func (s *Store) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (s *Store) PathFromURL(publicURL string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	return strings.TrimPrefix(publicURL, prefix), true
}

func (s *Store) Fetch(ctx context.Context, publicURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := s.PathFromURL(publicURL)
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path = strings.TrimLeft(path, "/")
	if _, ok := s.objects[path]; !ok {
		return blobstore.ErrNotFound
	}
	delete(s.objects, path)
	return nil
}

// Paths lists stored object paths.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	return out
}
