// Package tesseract shells out to the tesseract CLI for dialogue OCR.
package tesseract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toonreel/toonreel-render-service/internal/infra/imaging"
)

type Extractor struct {
	language string
	psm      string
	logger   *zap.Logger
}

func NewExtractor(language string, logger *zap.Logger) *Extractor {
	// PSM 6 assumes a uniform block of text, which fits dialogue bubbles
	// better than full page analysis.
	return &Extractor{language: language, psm: "6", logger: logger}
}

func (e *Extractor) ExtractText(ctx context.Context, imagePath string) (string, error) {
	prepared := filepath.Join(os.TempDir(), uuid.New().String()+".png")
	if err := imaging.PrepareForOCR(imagePath, prepared); err != nil {
		return "", err
	}
	defer os.Remove(prepared)

	cmd := exec.CommandContext(ctx, "tesseract",
		prepared, "stdout",
		"-l", e.language,
		"--psm", e.psm,
	)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}

	text := strings.TrimSpace(string(output))
	e.logger.Debug("ocr extracted text",
		zap.String("image", filepath.Base(imagePath)),
		zap.Int("length", len(text)),
	)
	return text, nil
}
