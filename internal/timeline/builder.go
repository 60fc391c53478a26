// Package timeline orders (frame, display duration) pairs and emits the
// concat list consumed by the video encoder.
package timeline

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

// DefaultFallback is the display duration, in seconds, for frames whose
// narration clip is missing or invalid.
const DefaultFallback = 1.0

// DurationPolicy decides how a source image's narration duration is spread
// over the frames derived from it.
type DurationPolicy string

const (
	// PolicyReplicate gives every derived frame the full source duration.
	// This matches the reference behavior and inflates total video length
	// when an image is split.
	PolicyReplicate DurationPolicy = "replicate"
	// PolicyDivide splits the source duration evenly across its frames, so
	// the visual timeline stays aligned with the narration.
	PolicyDivide DurationPolicy = "divide"
)

func ParsePolicy(s string) (DurationPolicy, error) {
	switch DurationPolicy(strings.ToLower(s)) {
	case PolicyReplicate:
		return PolicyReplicate, nil
	case PolicyDivide:
		return PolicyDivide, nil
	default:
		return "", fmt.Errorf("unknown frame duration policy %q", s)
	}
}

// Build produces one timeline entry per frame, in the given frame order.
// durations is indexed by the frames' SourceIndex; a missing or non-positive
// duration falls back to fallback seconds.
func Build(frames []entity.Frame, durations []float64, policy DurationPolicy, fallback float64) []entity.TimelineEntry {
	perSource := make(map[int]int, len(durations))
	if policy == PolicyDivide {
		for _, f := range frames {
			perSource[f.SourceIndex]++
		}
	}

	entries := make([]entity.TimelineEntry, 0, len(frames))
	for _, f := range frames {
		d := fallback
		if f.SourceIndex >= 0 && f.SourceIndex < len(durations) && durations[f.SourceIndex] > 0 {
			d = durations[f.SourceIndex]
			if policy == PolicyDivide {
				if n := perSource[f.SourceIndex]; n > 1 {
					d /= float64(n)
				}
			}
		}
		entries = append(entries, entity.TimelineEntry{FramePath: f.Path, Duration: d})
	}
	return entries
}

// TotalDuration sums the display durations of all entries.
func TotalDuration(entries []entity.TimelineEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Duration
	}
	return total
}

// WriteConcatList emits the literal contract of the ffmpeg concat demuxer:
// a `file '<path>'` / `duration <seconds>` line pair per entry, with the last
// file repeated so the final duration is honored.
func WriteConcatList(w io.Writer, entries []entity.TimelineEntry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "file '%s'\nduration %s\n", EscapePath(e.FramePath), formatSeconds(e.Duration)); err != nil {
			return err
		}
	}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		if _, err := fmt.Fprintf(w, "file '%s'\n", EscapePath(last.FramePath)); err != nil {
			return err
		}
	}
	return nil
}

// EscapePath single-quote-escapes a path for the concat demuxer.
func EscapePath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

func formatSeconds(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}
