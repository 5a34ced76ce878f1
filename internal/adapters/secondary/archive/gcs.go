package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	output "churn-insight-service/internal/core/ports/output"
)

type gcsArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchive keeps raw uploads as objects in bucket under prefix.
func NewGCSArchive(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (output.RawArchive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing archive bucket name")
	}
	opts = append(ClientOptionsFromEnv(), opts...)
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &gcsArchive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// ClientOptionsFromEnv reads service account credentials from
// GOOGLE_APPLICATION_CREDENTIALS_JSON (inline) or GOOGLE_APPLICATION_CREDENTIALS (file).
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	opts := []option.ClientOption{}
	if creds == "" {
		return opts
	}
	if strings.HasPrefix(creds, "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}

func (a *gcsArchive) objectName(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if a.prefix == "" {
		return clean, nil
	}
	return path.Join(a.prefix, clean), nil
}

func (a *gcsArchive) Put(ctx context.Context, key string, data []byte) (string, error) {
	name, err := a.objectName(key)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, name), nil
}

func (a *gcsArchive) Close() error {
	return a.client.Close()
}

var _ output.RawArchive = (*gcsArchive)(nil)
