package port

import (
	"context"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

// FrameSegmenter converts one source image into one or more fixed-size
// frames, materialized as independently readable files under outputDir.
// Frames are returned in top-to-bottom order and the slice is never empty on
// success.
type FrameSegmenter interface {
	Segment(ctx context.Context, imagePath string, outputDir string, sourceIndex int) ([]entity.Frame, error)
}
