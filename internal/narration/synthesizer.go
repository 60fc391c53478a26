// Package narration wraps a speech synthesis provider and owns duration
// measurement and failure fallback for narration clips.
package narration

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
	"github.com/toonreel/toonreel-render-service/internal/domain/port"
)

type Synthesizer struct {
	tts     port.SpeechSynthesizer
	prober  port.DurationProber
	timeout time.Duration
	logger  *zap.Logger
}

func NewSynthesizer(tts port.SpeechSynthesizer, prober port.DurationProber, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{tts: tts, prober: prober, timeout: timeout, logger: logger}
}

// Synthesize produces one narration clip at outPath. It never fails the run:
// empty text and provider errors yield an invalid clip (no asset, duration 0)
// and the caller substitutes the fallback display duration. Duration is
// always measured from the written asset, never estimated from text length.
func (s *Synthesizer) Synthesize(ctx context.Context, text, langCode, outPath string) entity.NarrationClip {
	if text == "" {
		return entity.NarrationClip{}
	}

	ttsCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	audio, err := s.tts.Synthesize(ttsCtx, text, langCode)
	if err != nil {
		s.logger.Warn("narration synthesis failed, using fallback duration",
			zap.String("lang", langCode),
			zap.Error(&entity.SynthesisError{Text: text, Err: err}),
		)
		return entity.NarrationClip{}
	}

	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		s.logger.Warn("could not write narration clip", zap.String("path", outPath), zap.Error(err))
		return entity.NarrationClip{}
	}

	duration, err := s.prober.Duration(ctx, outPath)
	if err != nil {
		s.logger.Warn("could not measure narration duration", zap.String("path", outPath), zap.Error(err))
		os.Remove(outPath)
		return entity.NarrationClip{}
	}

	return entity.NarrationClip{Path: outPath, Duration: duration, Valid: true}
}
