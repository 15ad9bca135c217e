package validate

import (
	"fmt"
	"strings"
)

// DefaultMaxUploadBytes caps reference image uploads.
const DefaultMaxUploadBytes = 10 << 20 // 10 MiB

// Upload checks a reference image upload before it is forwarded to a
// backend. Only the container-level properties are verified here; pixel
// inspection happens inside the service.
func Upload(contentType string, size int64, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("file must be an image, got %q", contentType)
	}
	if size <= 0 {
		return fmt.Errorf("empty upload")
	}
	if size > maxBytes {
		return fmt.Errorf("upload exceeds maximum size of %d bytes", maxBytes)
	}
	return nil
}
