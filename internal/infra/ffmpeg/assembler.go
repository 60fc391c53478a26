package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
	"github.com/toonreel/toonreel-render-service/internal/domain/port"
	"github.com/toonreel/toonreel-render-service/internal/infra/imaging"
	"github.com/toonreel/toonreel-render-service/internal/timeline"
)

// Assembler renders a timeline and its narration clips into the final video.
// The pipeline is linear: scale frames, encode silent video from the concat
// list, concatenate audio (passthrough), mux. Audio tempo is applied at the
// mux only; a multiplier other than 1.0 deliberately desynchronizes narration
// from frame timing.
type Assembler struct {
	encodeWidth  int
	encodeHeight int
	audioTempo   float64
	logger       *zap.Logger
	run          runnerFunc
}

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func NewAssembler(encodeWidth, encodeHeight int, audioTempo float64, logger *zap.Logger) *Assembler {
	return &Assembler{
		encodeWidth:  encodeWidth,
		encodeHeight: encodeHeight,
		audioTempo:   audioTempo,
		logger:       logger,
		run:          runCombined,
	}
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (a *Assembler) Assemble(ctx context.Context, input port.AssemblyInput) (*port.AssemblyResult, error) {
	var intermediates []string
	defer func() {
		for _, p := range intermediates {
			os.Remove(p)
		}
	}()

	// Second resize pass: every frame goes to the fixed encode resolution
	// regardless of segmentation size.
	scaled := make([]entity.TimelineEntry, len(input.Entries))
	for i, e := range input.Entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		scaledPath := filepath.Join(input.WorkDir, fmt.Sprintf("enc_%03d.png", i))
		if err := imaging.ScaleFile(e.FramePath, scaledPath, a.encodeWidth, a.encodeHeight); err != nil {
			return nil, &entity.EncodeError{Stage: "scale-frames", Err: err}
		}
		intermediates = append(intermediates, scaledPath)
		scaled[i] = entity.TimelineEntry{FramePath: scaledPath, Duration: e.Duration}
	}

	listPath := filepath.Join(input.WorkDir, "frames.txt")
	if err := writeConcatFile(listPath, scaled); err != nil {
		return nil, &entity.EncodeError{Stage: "concat-list", Err: err}
	}
	intermediates = append(intermediates, listPath)

	silentPath := filepath.Join(input.WorkDir, "silent.mp4")
	if output, err := a.run(ctx, "ffmpeg", a.silentVideoArgs(listPath, silentPath)...); err != nil {
		return nil, &entity.EncodeError{Stage: "silent-video", Err: fmt.Errorf("%w, output: %s", err, output)}
	}

	result := &port.AssemblyResult{
		VideoPath:     silentPath,
		VideoDuration: timeline.TotalDuration(input.Entries),
	}

	// No narration at all: the silent video is the final artifact.
	if len(input.AudioPaths) == 0 {
		a.logger.Info("no narration clips, emitting silent video",
			zap.Int("frames", len(input.Entries)),
			zap.Float64("duration_secs", result.VideoDuration),
		)
		return result, nil
	}

	audioListPath := filepath.Join(input.WorkDir, "audio.txt")
	if err := writeAudioConcatFile(audioListPath, input.AudioPaths); err != nil {
		return nil, &entity.EncodeError{Stage: "audio-list", Err: err}
	}
	intermediates = append(intermediates, audioListPath)

	concatAudioPath := filepath.Join(input.WorkDir, "narration.mp3")
	if output, err := a.run(ctx, "ffmpeg", concatAudioArgs(audioListPath, concatAudioPath)...); err != nil {
		return nil, &entity.EncodeError{Stage: "concat-audio", Err: fmt.Errorf("%w, output: %s", err, output)}
	}
	intermediates = append(intermediates, concatAudioPath)

	finalPath := filepath.Join(input.WorkDir, "final.mp4")
	if output, err := a.run(ctx, "ffmpeg", a.muxArgs(silentPath, concatAudioPath, finalPath)...); err != nil {
		os.Remove(finalPath)
		return nil, &entity.MuxError{Err: fmt.Errorf("%w, output: %s", err, output)}
	}
	intermediates = append(intermediates, silentPath)

	a.logger.Info("video assembled",
		zap.Int("frames", len(input.Entries)),
		zap.Int("clips", len(input.AudioPaths)),
		zap.Float64("duration_secs", result.VideoDuration),
		zap.Float64("audio_tempo", a.audioTempo),
	)

	result.VideoPath = finalPath
	result.Muxed = true
	return result, nil
}

func (a *Assembler) silentVideoArgs(listPath, outPath string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y",
		outPath,
	}
}

func concatAudioArgs(listPath, outPath string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outPath,
	}
}

func (a *Assembler) muxArgs(videoPath, audioPath, outPath string) []string {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
	}
	if a.audioTempo != 1.0 {
		args = append(args, "-af", "atempo="+strconv.FormatFloat(a.audioTempo, 'f', -1, 64))
	}
	return append(args, "-y", outPath)
}

func writeConcatFile(path string, entries []entity.TimelineEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return timeline.WriteConcatList(f, entries)
}

func writeAudioConcatFile(path string, audioPaths []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, p := range audioPaths {
		if _, err := fmt.Fprintf(f, "file '%s'\n", timeline.EscapePath(p)); err != nil {
			return err
		}
	}
	return nil
}
