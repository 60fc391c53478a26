package port

import (
	"context"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

type AssemblyInput struct {
	Entries    []entity.TimelineEntry
	AudioPaths []string // valid narration clips, timeline order
	WorkDir    string
}

type AssemblyResult struct {
	VideoPath     string
	VideoDuration float64
	Muxed         bool // false when no narration clip existed (silent video)
}

// VideoAssembler renders the timeline into the final video file. All
// intermediates it creates live under WorkDir and are removed before it
// returns, success or not.
type VideoAssembler interface {
	Assemble(ctx context.Context, input AssemblyInput) (*AssemblyResult, error)
}
