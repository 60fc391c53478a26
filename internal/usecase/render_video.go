package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"
	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
	"github.com/toonreel/toonreel-render-service/internal/domain/port"
	"github.com/toonreel/toonreel-render-service/internal/infra/metrics"
	"github.com/toonreel/toonreel-render-service/internal/textnorm"
	"github.com/toonreel/toonreel-render-service/internal/timeline"
)

type RenderVideoUseCase struct {
	repo       port.JobRepository
	storage    port.ObjectStorage
	segmenter  port.FrameSegmenter
	ocr        port.TextExtractor
	translator port.Translator
	narrator   port.NarrationSynthesizer
	assembler  port.VideoAssembler
	publisher  port.StatusPublisher
	dlq        port.DLQPublisher
	notifier   port.FailureNotifier
	logger     *zap.Logger
	cfg        RenderVideoConfig
}

type RenderVideoConfig struct {
	TempDir          string
	MaxRetries       int
	ItemConcurrency  int
	DurationPolicy   timeline.DurationPolicy
	FallbackDuration float64
}

func NewRenderVideoUseCase(
	repo port.JobRepository,
	storage port.ObjectStorage,
	segmenter port.FrameSegmenter,
	ocr port.TextExtractor,
	translator port.Translator,
	narrator port.NarrationSynthesizer,
	assembler port.VideoAssembler,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg RenderVideoConfig,
) *RenderVideoUseCase {
	if cfg.ItemConcurrency <= 0 {
		cfg.ItemConcurrency = 1
	}
	if cfg.FallbackDuration <= 0 {
		cfg.FallbackDuration = timeline.DefaultFallback
	}
	return &RenderVideoUseCase{
		repo:       repo,
		storage:    storage,
		segmenter:  segmenter,
		ocr:        ocr,
		translator: translator,
		narrator:   narrator,
		assembler:  assembler,
		publisher:  publisher,
		dlq:        dlq,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

func (uc *RenderVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "RenderVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.RenderRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}
	if err := msg.Validate(); err != nil {
		uc.logger.Error("invalid render request", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "invalid_message: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.Int("job.images", len(msg.Items)),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.Int("images", len(msg.Items)))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewRenderJob(msg.UserID, narrationLanguage(msg.Language), len(msg.Items), uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

// itemResult collects one source image's per-item outputs. Results are
// slice-indexed by original position so the fan-in stays deterministic no
// matter the completion order.
type itemResult struct {
	frames []entity.Frame
	text   entity.TextUnit
	clip   entity.NarrationClip
}

func (uc *RenderVideoUseCase) runPipeline(
	ctx context.Context,
	job *entity.RenderJob,
	msg entity.RenderRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	language := narrationLanguage(msg.Language)

	// Fan-out: per-image download, OCR, cleanup, segmentation and narration
	// are independent; concurrency is bounded so we never spawn unbounded
	// external processes.
	prepStart := time.Now()
	prepCtx, spanPrep := tracer.Start(ctx, "prepare_items")
	results := make([]itemResult, len(msg.Items))

	g, gctx := errgroup.WithContext(prepCtx)
	sem := semaphore.NewWeighted(int64(uc.cfg.ItemConcurrency))
	for i, item := range msg.Items {
		i, item := i, item
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return uc.processItem(gctx, workDir, job.ID, i, item, language, &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		spanPrep.End()
		log.Error("per-image processing failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "prepare_items: "+err.Error(), log)
	}
	spanPrep.End()
	metrics.JobStageDuration.WithLabelValues("prepare").Observe(time.Since(prepStart).Seconds())

	// Fan-in: the ordered reduce over all per-item outputs.
	var frames []entity.Frame
	durations := make([]float64, len(results))
	var audioPaths []string
	for i, r := range results {
		frames = append(frames, r.frames...)
		if r.clip.Valid {
			durations[i] = r.clip.Duration
			audioPaths = append(audioPaths, r.clip.Path)
		}
	}
	metrics.FramesSegmentedTotal.Add(float64(len(frames)))

	entries := timeline.Build(frames, durations, uc.cfg.DurationPolicy, uc.cfg.FallbackDuration)

	asmStart := time.Now()
	asmCtx, spanAsm := tracer.Start(ctx, "assemble_video")
	result, err := uc.assembler.Assemble(asmCtx, port.AssemblyInput{
		Entries:    entries,
		AudioPaths: audioPaths,
		WorkDir:    workDir,
	})
	spanAsm.End()
	if err != nil {
		log.Error("video assembly failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "assemble_video: "+err.Error(), log)
	}
	metrics.JobStageDuration.WithLabelValues("assemble").Observe(time.Since(asmStart).Seconds())

	persistStart := time.Now()
	persistCtx, spanPersist := tracer.Start(ctx, "persist_video")
	videoKey := fmt.Sprintf("outputs/video_%s.mp4", uuid.New().String())
	if err := uc.uploadFile(persistCtx, videoKey, result.VideoPath, "video/mp4"); err != nil {
		spanPersist.End()
		log.Error("video upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "persist_video: "+err.Error(), log)
	}
	spanPersist.End()
	metrics.JobStageDuration.WithLabelValues("persist").Observe(time.Since(persistStart).Seconds())

	job.MarkCompleted(videoKey, len(frames), result.VideoDuration)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", len(frames)),
		zap.Float64("duration_secs", result.VideoDuration),
		zap.Bool("muxed", result.Muxed),
		zap.String("video_key", videoKey),
	)

	return nil
}

func (uc *RenderVideoUseCase) processItem(
	ctx context.Context,
	workDir string,
	jobID uuid.UUID,
	index int,
	item entity.RenderItem,
	language string,
	out *itemResult,
) error {
	itemDir := filepath.Join(workDir, fmt.Sprintf("item_%03d", index))
	if err := os.MkdirAll(itemDir, 0o755); err != nil {
		return fmt.Errorf("create item dir: %w", err)
	}

	imagePath := filepath.Join(itemDir, "source"+imageExt(item.ImageKey))
	if err := uc.storage.Download(ctx, item.ImageKey, imagePath); err != nil {
		return err
	}

	unit := uc.resolveText(ctx, item, imagePath)

	if language == "en" {
		unit.Translated = item.TranslatedText
		if unit.Translated == "" {
			translated, err := uc.translator.Translate(ctx, unit.Spoken, "vi", "en")
			if err != nil {
				return err
			}
			unit.Translated = translated
		}
	}
	uc.snapshotText(ctx, jobID, index, unit)

	frames, err := uc.segmenter.Segment(ctx, imagePath, itemDir, index)
	if err != nil {
		return err
	}

	speakText := unit.Spoken
	if language == "en" && unit.Translated != "" {
		speakText = unit.Translated
	}

	clip := uc.narrator.Synthesize(ctx, speakText, language, filepath.Join(itemDir, "narration.mp3"))
	if speakText != "" && !clip.Valid {
		metrics.NarrationFailuresTotal.Inc()
	}

	out.frames = frames
	out.text = unit
	out.clip = clip
	return nil
}

// resolveText prefers user-edited text from the request and falls back to
// OCR. Either way the result goes through the full cleanup so the spoken
// text is consistent.
func (uc *RenderVideoUseCase) resolveText(ctx context.Context, item entity.RenderItem, imagePath string) entity.TextUnit {
	raw := item.Text
	if raw == "" {
		extracted, err := uc.ocr.ExtractText(ctx, imagePath)
		if err != nil {
			uc.logger.Warn("ocr failed, continuing with placeholder text",
				zap.String("image_key", item.ImageKey),
				zap.Error(err),
			)
		}
		raw = extracted
	}
	return textnorm.Normalize(raw)
}

// snapshotText persists the cleaned and translated text under a temp/ key.
// Best effort: a failed snapshot never fails the run.
func (uc *RenderVideoUseCase) snapshotText(ctx context.Context, jobID uuid.UUID, index int, unit entity.TextUnit) {
	content := unit.Spoken
	if unit.Translated != "" {
		content += "\n" + unit.Translated
	}
	key := fmt.Sprintf("temp/%s/text_%03d.txt", jobID.String(), index)
	reader := strings.NewReader(content)
	if err := uc.storage.Upload(ctx, key, reader, int64(len(content)), "text/plain; charset=utf-8"); err != nil {
		uc.logger.Warn("could not snapshot text", zap.String("key", key), zap.Error(err))
	}
}

func (uc *RenderVideoUseCase) uploadFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	return uc.storage.Upload(ctx, key, f, info.Size(), contentType)
}

func (uc *RenderVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.RenderJob,
	msg entity.RenderRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return &entity.RetryableError{
		Attempt: job.Attempt,
		Err:     fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg),
	}
}

func (uc *RenderVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.RenderJob,
	msg entity.RenderRequestMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), errMsg)
	}

	return nil
}

func (uc *RenderVideoUseCase) publishStatus(ctx context.Context, job *entity.RenderJob, log *zap.Logger) {
	statusMsg := entity.RenderStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		FrameCount:   job.FrameCount,
		Duration:     job.VideoDuration,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// narrationLanguage mirrors the upload surface: anything other than an
// explicit "en" narrates in Vietnamese.
func narrationLanguage(lang string) string {
	if strings.EqualFold(lang, "en") {
		return "en"
	}
	return "vi"
}

func imageExt(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif":
		return ext
	default:
		return ".png"
	}
}
