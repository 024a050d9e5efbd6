package persist

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrAccessDenied    = errors.New("access denied")

	// ErrUploadFailure aborts a save before any store write. It is always
	// wrapped with the name of the resource that failed to upload.
	ErrUploadFailure = errors.New("image upload failed")
)
