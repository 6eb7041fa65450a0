package upload

import "errors"

// Sentinel errors for upload operations.
var (
	// ErrUploadRejected is the parent of every error caused by the uploaded content itself.
	ErrUploadRejected = errors.New("upload rejected")

	// ErrNotImage is returned when the content is not an image.
	ErrNotImage = errors.New("only images are allowed")

	// ErrTooLarge is returned when the content exceeds MaxImageSize.
	ErrTooLarge = errors.New("image exceeds the maximum size")

	// ErrEmpty is returned when no content was uploaded.
	ErrEmpty = errors.New("no file uploaded")

	// ErrNotFound is returned when the requested image does not exist.
	ErrNotFound = errors.New("image not found")

	// ErrInvalidName is returned when an object name contains characters the service never generates.
	ErrInvalidName = errors.New("invalid image name")
)
