package blobstore

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("blob object not found")

// Store persists uploaded media blobs and hands back durable public URLs.
type Store interface {
	Upload(ctx context.Context, path string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
	// PathFromURL maps a public URL produced by this store back to its
	// object path; ok is false for foreign URLs.
	PathFromURL(url string) (string, bool)
}
