package port

import (
	"context"
	"io"
)

// ObjectStorage addresses all persisted artifacts by hierarchical key
// (uploads/..., temp/..., outputs/...), never by local path.
type ObjectStorage interface {
	Download(ctx context.Context, objectKey string, destPath string) error
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectKey string) error
}
