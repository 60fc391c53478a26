package entity

// Frame is one fixed-size image destined for one display interval in the
// output video. Width and height are always even (libx264/yuv420p constraint).
type Frame struct {
	Path         string
	Width        int
	Height       int
	SegmentIndex int // position within the source image's segments
	SourceIndex  int // position of the source image within the run
}

// TextUnit is the dialogue text associated with one source image. Segmenting
// an image into several frames does not split its text.
type TextUnit struct {
	Raw           string
	Cleaned       string
	Spoken        string
	Translated    string
	Language      string
	ForeignTokens []string
}

// NarrationClip is a synthesized speech asset plus its measured duration.
// Valid is false when synthesis failed; such clips carry no audio asset and
// the timeline substitutes the fallback display duration.
type NarrationClip struct {
	Path     string
	Duration float64
	Valid    bool
}

// TimelineEntry pairs a frame with its exact display duration in seconds.
type TimelineEntry struct {
	FramePath string
	Duration  float64
}
