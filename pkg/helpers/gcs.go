package helpers

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// NewGCSClient creates a Google Cloud Storage client. If credsPath is empty,
// Application Default Credentials are used.
func NewGCSClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	if credsPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

// UploadedAsset is what the media host hands back after a successful upload.
// AssetID (the object path) is what Delete needs later.
type UploadedAsset struct {
	URL     string
	AssetID string
}

// GCSMediaStore uploads and deletes image assets in a single bucket.
// Objects are named <folder>/<uuid><ext> so re-uploads never collide.
type GCSMediaStore struct {
	Client *storage.Client
	Bucket string
}

func NewGCSMediaStore(client *storage.Client, bucket string) *GCSMediaStore {
	return &GCSMediaStore{Client: client, Bucket: bucket}
}

func (s *GCSMediaStore) Upload(ctx context.Context, folder, filename, contentType string, r io.Reader) (UploadedAsset, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join(folder, uuid.NewString()+ext))

	wc := s.Client.Bucket(s.Bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // disable chunking for small files
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return UploadedAsset{}, err
	}
	if err := wc.Close(); err != nil {
		return UploadedAsset{}, err
	}
	return UploadedAsset{URL: PublicURL(s.Bucket, objectPath), AssetID: objectPath}, nil
}

func (s *GCSMediaStore) Delete(ctx context.Context, assetID string) error {
	return s.Client.Bucket(s.Bucket).Object(assetID).Delete(ctx)
}

// PublicURL builds a public URL for an object (assuming public read access).
func PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}
