package timeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

func frame(path string, source int) entity.Frame {
	return entity.Frame{Path: path, SourceIndex: source}
}

func TestBuildOneEntryPerFrame(t *testing.T) {
	frames := []entity.Frame{
		frame("a_0.png", 0),
		frame("a_1.png", 0),
		frame("b_0.png", 1),
	}
	entries := Build(frames, []float64{4, 2}, PolicyReplicate, DefaultFallback)

	require.Len(t, entries, 3)
	assert.Equal(t, "a_0.png", entries[0].FramePath)
	assert.Equal(t, "a_1.png", entries[1].FramePath)
	assert.Equal(t, "b_0.png", entries[2].FramePath)
}

func TestBuildReplicateRepeatsSourceDuration(t *testing.T) {
	frames := []entity.Frame{
		frame("a_0.png", 0),
		frame("a_1.png", 0),
		frame("a_2.png", 0),
	}
	entries := Build(frames, []float64{6}, PolicyReplicate, DefaultFallback)

	for _, e := range entries {
		assert.Equal(t, 6.0, e.Duration)
	}
	assert.Equal(t, 18.0, TotalDuration(entries))
}

func TestBuildDivideSplitsSourceDuration(t *testing.T) {
	frames := []entity.Frame{
		frame("a_0.png", 0),
		frame("a_1.png", 0),
		frame("a_2.png", 0),
		frame("b_0.png", 1),
	}
	entries := Build(frames, []float64{6, 3}, PolicyDivide, DefaultFallback)

	assert.Equal(t, 2.0, entries[0].Duration)
	assert.Equal(t, 2.0, entries[1].Duration)
	assert.Equal(t, 2.0, entries[2].Duration)
	assert.Equal(t, 3.0, entries[3].Duration)
	assert.Equal(t, 9.0, TotalDuration(entries))
}

func TestBuildFallsBackForMissingDurations(t *testing.T) {
	frames := []entity.Frame{
		frame("a.png", 0),
		frame("b.png", 1),
		frame("c.png", 5), // out of range
	}
	entries := Build(frames, []float64{0, 2.5}, PolicyReplicate, 1.5)

	assert.Equal(t, 1.5, entries[0].Duration)
	assert.Equal(t, 2.5, entries[1].Duration)
	assert.Equal(t, 1.5, entries[2].Duration)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("replicate")
	require.NoError(t, err)
	assert.Equal(t, PolicyReplicate, p)

	p, err = ParsePolicy("DIVIDE")
	require.NoError(t, err)
	assert.Equal(t, PolicyDivide, p)

	_, err = ParsePolicy("bogus")
	assert.Error(t, err)
}

func TestWriteConcatListFormat(t *testing.T) {
	entries := []entity.TimelineEntry{
		{FramePath: "/tmp/a.png", Duration: 2.5},
		{FramePath: "/tmp/b.png", Duration: 3},
	}

	var sb strings.Builder
	require.NoError(t, WriteConcatList(&sb, entries))

	want := "file '/tmp/a.png'\n" +
		"duration 2.5\n" +
		"file '/tmp/b.png'\n" +
		"duration 3\n" +
		"file '/tmp/b.png'\n"
	assert.Equal(t, want, sb.String())
}

func TestWriteConcatListEmpty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteConcatList(&sb, nil))
	assert.Empty(t, sb.String())
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, `it'\''s.png`, EscapePath("it's.png"))
	assert.Equal(t, "/tmp/plain.png", EscapePath("/tmp/plain.png"))
}
