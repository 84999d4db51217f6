// Package fs stores photos on the local filesystem behind a static file server.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
)

// Store writes objects under Root and exposes them at BaseURL/<path>.
type Store struct {
	root    string
	baseURL string
}

func NewStore(root, baseURL string) (*Store, error) {
	if root == "" {
		return nil, errors.New("blob root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory served as BaseURL.
func (s *Store) Root() string { return s.root }

func cleanPath(p string) (string, error) {
	p = path.Clean("/" + strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return p, nil
}

func (s *Store) Upload(ctx context.Context, p string, data []byte, contentType string) (string, error) {
	_ = contentType
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish blob: %w", err)
	}
	return s.PublicURL(clean), nil
}

func (s *Store) PublicURL(p string) string {
	return s.baseURL + "/" + strings.TrimLeft(p, "/")
}

func (s *Store) PathFromURL(publicURL string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	clean, err := cleanPath(strings.TrimPrefix(publicURL, prefix))
	if err != nil {
		return "", false
	}
	return clean, true
}

func (s *Store) Fetch(ctx context.Context, publicURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := s.PathFromURL(publicURL)
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(p)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return blobstore.ErrNotFound
	}
	return err
}
