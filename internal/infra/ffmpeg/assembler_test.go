package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
	"github.com/toonreel/toonreel-render-service/internal/domain/port"
)

type recordedCall struct {
	name string
	args []string
}

func stubRunner(calls *[]recordedCall, failOn string) runnerFunc {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name: name, args: args})
		out := args[len(args)-1]
		if failOn != "" && filepath.Base(out) == failOn {
			return []byte("ffmpeg exploded"), errors.New("exit status 1")
		}
		return nil, nil
	}
}

func writeFramePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 10, 10))))
}

func setupEntries(t *testing.T, workDir string, n int) []entity.TimelineEntry {
	t.Helper()
	entries := make([]entity.TimelineEntry, n)
	for i := range entries {
		path := filepath.Join(workDir, fmt.Sprintf("frame_%d.png", i))
		writeFramePNG(t, path)
		entries[i] = entity.TimelineEntry{FramePath: path, Duration: float64(i + 1)}
	}
	return entries
}

func TestAssembleSilentVideoWhenNoNarration(t *testing.T) {
	workDir := t.TempDir()
	a := NewAssembler(8, 6, 1.0, zap.NewNop())
	var calls []recordedCall
	a.run = stubRunner(&calls, "")

	result, err := a.Assemble(context.Background(), port.AssemblyInput{
		Entries: setupEntries(t, workDir, 2),
		WorkDir: workDir,
	})
	require.NoError(t, err)

	assert.False(t, result.Muxed)
	assert.Equal(t, filepath.Join(workDir, "silent.mp4"), result.VideoPath)
	assert.Equal(t, 3.0, result.VideoDuration)

	require.Len(t, calls, 1)
	assert.Equal(t, "ffmpeg", calls[0].name)
	assert.Contains(t, calls[0].args, "libx264")
	assert.Contains(t, calls[0].args, "yuv420p")
}

func TestAssembleMuxesNarration(t *testing.T) {
	workDir := t.TempDir()
	a := NewAssembler(8, 6, 1.0, zap.NewNop())
	var calls []recordedCall
	a.run = stubRunner(&calls, "")

	audioPath := filepath.Join(workDir, "clip_0.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("mp3"), 0o644))

	result, err := a.Assemble(context.Background(), port.AssemblyInput{
		Entries:    setupEntries(t, workDir, 2),
		AudioPaths: []string{audioPath},
		WorkDir:    workDir,
	})
	require.NoError(t, err)

	assert.True(t, result.Muxed)
	assert.Equal(t, filepath.Join(workDir, "final.mp4"), result.VideoPath)

	// silent video, audio concat, mux
	require.Len(t, calls, 3)
	assert.Contains(t, calls[1].args, "copy")
	assert.Contains(t, calls[2].args, "aac")
	assert.NotContains(t, calls[2].args, "-af", "tempo 1.0 must not add an atempo filter")
}

func TestAssembleCleansUpIntermediates(t *testing.T) {
	workDir := t.TempDir()
	a := NewAssembler(8, 6, 1.0, zap.NewNop())
	var calls []recordedCall
	a.run = stubRunner(&calls, "")

	_, err := a.Assemble(context.Background(), port.AssemblyInput{
		Entries: setupEntries(t, workDir, 2),
		WorkDir: workDir,
	})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(workDir, "enc_000.png"))
	assert.NoFileExists(t, filepath.Join(workDir, "enc_001.png"))
	assert.NoFileExists(t, filepath.Join(workDir, "frames.txt"))
}

func TestAssembleEncodeFailureIsEncodeError(t *testing.T) {
	workDir := t.TempDir()
	a := NewAssembler(8, 6, 1.0, zap.NewNop())
	var calls []recordedCall
	a.run = stubRunner(&calls, "silent.mp4")

	_, err := a.Assemble(context.Background(), port.AssemblyInput{
		Entries: setupEntries(t, workDir, 1),
		WorkDir: workDir,
	})

	var encodeErr *entity.EncodeError
	require.True(t, errors.As(err, &encodeErr))
	assert.Equal(t, "silent-video", encodeErr.Stage)
}

func TestAssembleMuxFailureIsMuxError(t *testing.T) {
	workDir := t.TempDir()
	a := NewAssembler(8, 6, 1.0, zap.NewNop())
	var calls []recordedCall
	a.run = stubRunner(&calls, "final.mp4")

	audioPath := filepath.Join(workDir, "clip_0.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("mp3"), 0o644))

	_, err := a.Assemble(context.Background(), port.AssemblyInput{
		Entries:    setupEntries(t, workDir, 1),
		AudioPaths: []string{audioPath},
		WorkDir:    workDir,
	})

	var muxErr *entity.MuxError
	require.True(t, errors.As(err, &muxErr))
}

func TestMuxArgsAppliesConfiguredTempo(t *testing.T) {
	a := NewAssembler(8, 6, 1.5, zap.NewNop())
	args := a.muxArgs("v.mp4", "a.mp3", "out.mp4")
	assert.Contains(t, args, "-af")
	assert.Contains(t, args, "atempo=1.5")

	a = NewAssembler(8, 6, 1.0, zap.NewNop())
	args = a.muxArgs("v.mp4", "a.mp3", "out.mp4")
	assert.NotContains(t, args, "-af")
}
