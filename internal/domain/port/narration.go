package port

import (
	"context"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

// NarrationSynthesizer produces one narration clip per text unit. It never
// fails the run: empty text or provider errors yield an invalid clip and the
// caller applies the fallback display duration.
type NarrationSynthesizer interface {
	Synthesize(ctx context.Context, text, langCode, outPath string) entity.NarrationClip
}
