package port

import "context"

// SpeechSynthesizer turns text into encoded audio bytes (mp3).
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, langCode string) ([]byte, error)
}

// DurationProber measures the playback duration of a media file in seconds.
type DurationProber interface {
	Duration(ctx context.Context, mediaPath string) (float64, error)
}
