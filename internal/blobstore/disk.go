package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore stores blobs under a root directory and serves them through the
// /media static route.
type DiskStore struct {
	root string
	base string
}

// NewDiskStore constructs a DiskStore. base is the externally reachable
// origin, e.g. http://localhost:8083.
func NewDiskStore(root, base string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &DiskStore{root: root, base: strings.TrimRight(base, "/")}, nil
}

// Root returns the on-disk directory blobs are written to.
func (s *DiskStore) Root() string {
	return s.root
}

// Upload writes the blob and returns its public URL.
func (s *DiskStore) Upload(ctx context.Context, path string, r io.Reader) (string, error) {
	clean, err := s.cleanPath(path)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.PublicURL(clean), nil
}

// Delete removes a stored object.
func (s *DiskStore) Delete(ctx context.Context, path string) error {
	clean, err := s.cleanPath(path)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if os.IsNotExist(err) {
		return ErrObjectNotFound
	}
	return err
}

// PublicURL returns the URL the object is served from.
func (s *DiskStore) PublicURL(path string) string {
	return s.base + "/media/" + strings.TrimLeft(path, "/")
}

// PathFromURL maps a public URL back to the object path.
func (s *DiskStore) PathFromURL(url string) (string, bool) {
	prefix := s.base + "/media/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func (s *DiskStore) cleanPath(path string) (string, error) {
	clean := strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+path)), "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid blob path %q", path)
	}
	return clean, nil
}
