package imaging

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCSUploader implements Uploader on top of a Google Cloud Storage bucket.
type GCSUploader struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// NewGCSUploader creates an uploader writing into the given bucket.
// publicBaseURL overrides the default public object URL prefix; leave it
// empty to use storage.googleapis.com.
func NewGCSUploader(client *storage.Client, bucket, publicBaseURL string) *GCSUploader {
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://storage.googleapis.com/%s", bucket)
	}
	return &GCSUploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// Upload writes the payload to the bucket and returns its public URI.
// Object names are prefixed with a random token so that re-uploads of the
// same file never collide.
func (u *GCSUploader) Upload(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	object := fmt.Sprintf("images/%s-%s", uuid.NewString(), path.Base(name))
	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write image %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to store image %q: %w", name, err)
	}
	return fmt.Sprintf("%s/%s", u.publicBaseURL, object), nil
}

// Delete removes the object referenced by the public URI.
func (u *GCSUploader) Delete(ctx context.Context, uri string) error {
	object := strings.TrimPrefix(uri, u.publicBaseURL+"/")
	if object == uri {
		return fmt.Errorf("uri %q does not belong to bucket %q", uri, u.bucket)
	}
	err := u.client.Bucket(u.bucket).Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete image %q: %w", uri, err)
	}
	return nil
}
