package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSOffsiteTarget replicates archives to a Google Cloud Storage bucket.
type GCSOffsiteTarget struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSOffsiteTarget creates a GCS offsite target. Without an explicit
// credentials file the default application credentials apply.
func NewGCSOffsiteTarget(ctx context.Context, config *GCSTarget) (*GCSOffsiteTarget, error) {
	if config == nil || config.Bucket == "" {
		return nil, NewConfigError("gcs offsite target requires a bucket", nil)
	}

	var client *storage.Client
	var err error

	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, NewIOError("failed to create GCS client", err)
	}

	prefix := config.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &GCSOffsiteTarget{
		client: client,
		bucket: config.Bucket,
		prefix: prefix,
	}, nil
}

// Upload streams the archive file into the bucket.
func (gt *GCSOffsiteTarget) Upload(ctx context.Context, localPath, name string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive for upload: %w", err)
	}
	defer file.Close()

	objectName := gt.prefix + name
	object := gt.client.Bucket(gt.bucket).Object(objectName)

	writer := object.NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	writer.Metadata = map[string]string{
		"archive-name": name,
	}

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write archive to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to upload archive to GCS: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", gt.bucket, objectName), nil
}

// GetType returns the provider type.
func (gt *GCSOffsiteTarget) GetType() OffsiteProvider {
	return OffsiteProviderGCS
}
