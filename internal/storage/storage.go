// Package storage moves media artifacts between the local working directory
// and durable object storage.
package storage

import (
	"context"
	"errors"
)

// ErrSignedUploadUnsupported is returned by backends that cannot mint
// browser-facing upload URLs.
var ErrSignedUploadUnsupported = errors.New("signed upload urls not supported by this backend")

// ArtifactStore persists and retrieves media artifacts by storage path.
// Paths are bucket-relative, e.g. "clips/{videoID}/{name}.mp4".
type ArtifactStore interface {
	// Put uploads the file at localPath to storagePath.
	Put(ctx context.Context, localPath, storagePath, contentType string) error

	// Fetch downloads storagePath into localPath, creating parent directories.
	Fetch(ctx context.Context, storagePath, localPath string) error

	// PublicRef returns a reference callers can use to retrieve the artifact
	// directly: a public URL for object storage, a filesystem path locally.
	PublicRef(storagePath string) string

	// SignedUploadURL mints a URL a client can PUT the original video to.
	SignedUploadURL(ctx context.Context, storagePath string) (string, error)
}
