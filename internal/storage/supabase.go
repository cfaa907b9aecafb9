package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore keeps artifacts in a Supabase storage bucket.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

// NewSupabaseStore builds a store for one bucket using the service key.
func NewSupabaseStore(supabaseURL, serviceKey, bucket string) (*SupabaseStore, error) {
	if supabaseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	client := storage_go.NewClient(supabaseURL+"/storage/v1", serviceKey, nil)
	return &SupabaseStore{client: client, bucket: bucket}, nil
}

func (s *SupabaseStore) Put(ctx context.Context, localPath, storagePath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	upsert := true
	_, err = s.client.UploadFile(s.bucket, storagePath, f, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", storagePath, err)
	}
	return nil
}

func (s *SupabaseStore) Fetch(ctx context.Context, storagePath, localPath string) error {
	data, err := s.client.DownloadFile(s.bucket, storagePath)
	if err != nil {
		return fmt.Errorf("download %s: %w", storagePath, err)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return nil
}

func (s *SupabaseStore) PublicRef(storagePath string) string {
	resp := s.client.GetPublicUrl(s.bucket, storagePath)
	return resp.SignedURL
}

func (s *SupabaseStore) SignedUploadURL(ctx context.Context, storagePath string) (string, error) {
	resp, err := s.client.CreateSignedUploadUrl(s.bucket, storagePath)
	if err != nil {
		return "", fmt.Errorf("create signed upload url: %w", err)
	}
	return resp.Url, nil
}
