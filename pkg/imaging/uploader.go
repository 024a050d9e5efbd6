// Package imaging provides the image hosting client used when persisting
// product and variant images.
package imaging

import (
	"context"
)

// Uploader stores image payloads and returns publicly reachable URIs.
// Failures are per-resource; callers decide whether one failure aborts
// a larger operation.
type Uploader interface {
	// Upload stores the payload under a derived object name and returns
	// the remote URI of the stored image.
	Upload(ctx context.Context, name string, contentType string, data []byte) (string, error)

	// Delete removes a previously uploaded image by its remote URI.
	// Deleting an object that is already gone is not an error.
	Delete(ctx context.Context, uri string) error
}
