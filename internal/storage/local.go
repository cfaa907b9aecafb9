package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps artifacts under a root directory on disk. Used by the
// one-shot CLI mode and by tests.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) Put(ctx context.Context, localPath, storagePath, contentType string) error {
	dst := filepath.Join(l.root, filepath.FromSlash(storagePath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	return copyFile(localPath, dst)
}

func (l *LocalStore) Fetch(ctx context.Context, storagePath, localPath string) error {
	src := filepath.Join(l.root, filepath.FromSlash(storagePath))
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("artifact %s: %w", storagePath, err)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	return copyFile(src, localPath)
}

func (l *LocalStore) PublicRef(storagePath string) string {
	return filepath.Join(l.root, filepath.FromSlash(storagePath))
}

func (l *LocalStore) SignedUploadURL(ctx context.Context, storagePath string) (string, error) {
	return "", ErrSignedUploadUnsupported
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Sync()
}
