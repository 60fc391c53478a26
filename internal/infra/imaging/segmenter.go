package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"

	_ "image/gif"
	_ "image/jpeg"
)

// Segmenter cuts an arbitrarily sized source image into frames of at most
// targetWidth x targetHeight. All emitted frames have even dimensions.
type Segmenter struct {
	targetWidth  int
	targetHeight int
	logger       *zap.Logger
}

func NewSegmenter(targetWidth, targetHeight int, logger *zap.Logger) *Segmenter {
	return &Segmenter{targetWidth: targetWidth, targetHeight: targetHeight, logger: logger}
}

func (s *Segmenter) Segment(ctx context.Context, imagePath string, outputDir string, sourceIndex int) ([]entity.Frame, error) {
	src, err := decodeImage(imagePath)
	if err != nil {
		return nil, &entity.DecodeError{Path: imagePath, Err: err}
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	base := strippedBase(imagePath)

	// Already the target size: re-emit untouched as a single frame.
	if w == s.targetWidth && h == s.targetHeight {
		framePath := filepath.Join(outputDir, fmt.Sprintf("%s_full.png", base))
		if err := savePNG(src, framePath); err != nil {
			return nil, err
		}
		return []entity.Frame{{
			Path: framePath, Width: w, Height: h,
			SegmentIndex: 0, SourceIndex: sourceIndex,
		}}, nil
	}

	// Short image: scale to target height, then pad to target width.
	if h <= s.targetHeight {
		newHeight := s.targetHeight
		newWidth := evenFloor(int(float64(w) / float64(h) * float64(newHeight)))
		if newWidth <= 0 {
			newWidth = 2
		}

		scaled := scaleTo(src, newWidth, newHeight)
		if newWidth < s.targetWidth {
			scaled = padCanvas(scaled, s.targetWidth, newHeight)
			newWidth = s.targetWidth
		}

		framePath := filepath.Join(outputDir, fmt.Sprintf("%s_resized.png", base))
		if err := savePNG(scaled, framePath); err != nil {
			return nil, err
		}
		s.logger.Debug("resized image to fit target",
			zap.String("frame", framePath),
			zap.Int("width", newWidth),
			zap.Int("height", newHeight),
		)
		return []entity.Frame{{
			Path: framePath, Width: newWidth, Height: newHeight,
			SegmentIndex: 0, SourceIndex: sourceIndex,
		}}, nil
	}

	// Tall image: split into vertical segments of target height.
	segmentCount := int(math.Ceil(float64(h) / float64(s.targetHeight)))
	s.logger.Debug("cropping image into segments",
		zap.String("image", imagePath),
		zap.Int("segments", segmentCount),
		zap.Int("width", w),
		zap.Int("height", h),
	)

	frames := make([]entity.Frame, 0, segmentCount)
	for i := 0; i < segmentCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		yOffset := i * s.targetHeight
		segHeight := s.targetHeight
		if remaining := h - yOffset; remaining < segHeight {
			segHeight = remaining
		}
		if segHeight <= 0 {
			s.logger.Warn("skipping empty segment", zap.Int("segment", i), zap.Int("y_offset", yOffset))
			continue
		}

		segWidth := w
		if segWidth > s.targetWidth {
			segWidth = s.targetWidth
		}
		segWidth = evenFloor(segWidth)
		segHeight = evenFloor(segHeight)
		if segWidth <= 0 || segHeight <= 0 {
			s.logger.Warn("skipping degenerate segment",
				zap.Int("segment", i),
				zap.Int("width", segWidth),
				zap.Int("height", segHeight),
			)
			continue
		}

		rect := image.Rect(bounds.Min.X, bounds.Min.Y+yOffset, bounds.Min.X+segWidth, bounds.Min.Y+yOffset+segHeight)
		cropped := cropTo(src, rect)
		final := coverCrop(cropped, s.targetWidth, segHeight)

		framePath := filepath.Join(outputDir, fmt.Sprintf("%s_crop_%d.png", base, i))
		if err := savePNG(final, framePath); err != nil {
			return nil, err
		}
		frames = append(frames, entity.Frame{
			Path: framePath, Width: s.targetWidth, Height: segHeight,
			SegmentIndex: len(frames), SourceIndex: sourceIndex,
		})
	}

	if len(frames) == 0 {
		return nil, &entity.DecodeError{Path: imagePath, Err: fmt.Errorf("no usable segments")}
	}
	return frames, nil
}

// ScaleFile resamples the image at srcPath to exactly w x h and writes it to
// destPath as PNG. Used by the assembler's pre-encode resize pass.
func ScaleFile(srcPath, destPath string, w, h int) error {
	src, err := decodeImage(srcPath)
	if err != nil {
		return &entity.DecodeError{Path: srcPath, Err: err}
	}
	return savePNG(scaleTo(src, w, h), destPath)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func savePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode frame png: %w", err)
	}
	return nil
}

func evenFloor(n int) int {
	return n - n%2
}

func strippedBase(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// scaleTo resamples src to exactly w x h.
func scaleTo(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// padCanvas places src at the origin of a black w x h canvas.
func padCanvas(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, src.Bounds(), src, src.Bounds().Min, draw.Over)
	return dst
}

func cropTo(src image.Image, rect image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return dst
}

// coverCrop scales src so that it covers w x h, then center-crops the excess.
func coverCrop(src image.Image, w, h int) image.Image {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == w && sh == h {
		return src
	}

	scale := math.Max(float64(w)/float64(sw), float64(h)/float64(sh))
	scaledW := int(math.Ceil(float64(sw) * scale))
	scaledH := int(math.Ceil(float64(sh) * scale))
	scaled := scaleTo(src, scaledW, scaledH)

	offX := (scaledW - w) / 2
	offY := (scaledH - h) / 2
	return cropTo(scaled, image.Rect(offX, offY, offX+w, offY+h))
}
