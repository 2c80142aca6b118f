package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// MediaConfig locates the storage bucket for generated media.
type MediaConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// SupabaseMedia uploads generated images to a storage bucket and hands back
// public URLs for transcript entries.
type SupabaseMedia struct {
	client *supabase.Client
	url    string
	bucket string
}

// NewSupabaseMedia builds the storage client.
func NewSupabaseMedia(cfg MediaConfig) (*SupabaseMedia, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("store: create supabase client: %w", err)
	}
	return &SupabaseMedia{client: client, url: cfg.URL, bucket: cfg.Bucket}, nil
}

// Upload stores the bytes under key and returns the public object URL.
func (s *SupabaseMedia) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store: upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.bucket, key), nil
}
