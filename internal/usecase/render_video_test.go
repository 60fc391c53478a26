package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
	"github.com/toonreel/toonreel-render-service/internal/domain/port"
	"github.com/toonreel/toonreel-render-service/internal/timeline"
)

type fakeRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entity.RenderJob
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]*entity.RenderJob)}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.RenderJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.RenderJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.RenderJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return job, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads []string
}

func (s *fakeStorage) Download(_ context.Context, _ string, destPath string) error {
	return os.WriteFile(destPath, []byte("image-bytes"), 0o644)
}

func (s *fakeStorage) Upload(_ context.Context, objectKey string, reader io.Reader, _ int64, _ string) error {
	if _, err := io.ReadAll(reader); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, objectKey)
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, _ string) error { return nil }

func (s *fakeStorage) uploadedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

type fakeSegmenter struct {
	framesPerImage int
	err            error
}

func (f *fakeSegmenter) Segment(_ context.Context, _ string, outputDir string, sourceIndex int) ([]entity.Frame, error) {
	if f.err != nil {
		return nil, f.err
	}
	frames := make([]entity.Frame, f.framesPerImage)
	for j := range frames {
		frames[j] = entity.Frame{
			Path:         filepath.Join(outputDir, fmt.Sprintf("seg_%d.png", j)),
			Width:        120,
			Height:       160,
			SegmentIndex: j,
			SourceIndex:  sourceIndex,
		}
	}
	return frames, nil
}

type fakeOCR struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeOCR) ExtractText(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "translated: " + text, nil
}

type fakeNarrator struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeNarrator) Synthesize(_ context.Context, text, _, outPath string) entity.NarrationClip {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if text == "" {
		return entity.NarrationClip{}
	}
	return entity.NarrationClip{Path: outPath, Duration: 2.0, Valid: true}
}

type fakeAssembler struct {
	mu    sync.Mutex
	input *port.AssemblyInput
	err   error
}

func (f *fakeAssembler) Assemble(_ context.Context, input port.AssemblyInput) (*port.AssemblyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.input = &input
	videoPath := filepath.Join(input.WorkDir, "final.mp4")
	if err := os.WriteFile(videoPath, []byte("video-bytes"), 0o644); err != nil {
		return nil, err
	}
	return &port.AssemblyResult{
		VideoPath:     videoPath,
		VideoDuration: timeline.TotalDuration(input.Entries),
		Muxed:         len(input.AudioPaths) > 0,
	}, nil
}

type fakeStatusPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *fakeStatusPublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeStatusPublisher) last(t *testing.T) entity.RenderStatusMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.messages)
	var msg entity.RenderStatusMessage
	require.NoError(t, json.Unmarshal(p.messages[len(p.messages)-1], &msg))
	return msg
}

type fakeDLQ struct {
	mu      sync.Mutex
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	emails []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, userEmail)
	return nil
}

type testDeps struct {
	repo       *fakeRepo
	storage    *fakeStorage
	segmenter  *fakeSegmenter
	ocr        *fakeOCR
	translator *fakeTranslator
	narrator   *fakeNarrator
	assembler  *fakeAssembler
	status     *fakeStatusPublisher
	dlq        *fakeDLQ
	notifier   *fakeNotifier
}

func newUseCase(t *testing.T, deps *testDeps) *RenderVideoUseCase {
	t.Helper()
	return NewRenderVideoUseCase(
		deps.repo, deps.storage, deps.segmenter, deps.ocr, deps.translator,
		deps.narrator, deps.assembler,
		deps.status, deps.dlq, deps.notifier,
		zap.NewNop(),
		RenderVideoConfig{
			TempDir:          t.TempDir(),
			MaxRetries:       3,
			ItemConcurrency:  2,
			DurationPolicy:   timeline.PolicyReplicate,
			FallbackDuration: 1.0,
		},
	)
}

func defaultDeps() *testDeps {
	return &testDeps{
		repo:       newFakeRepo(),
		storage:    &fakeStorage{},
		segmenter:  &fakeSegmenter{framesPerImage: 2},
		ocr:        &fakeOCR{text: "hello there"},
		translator: &fakeTranslator{},
		narrator:   &fakeNarrator{},
		assembler:  &fakeAssembler{},
		status:     &fakeStatusPublisher{},
		dlq:        &fakeDLQ{},
		notifier:   &fakeNotifier{},
	}
}

func requestMsg(t *testing.T, msg entity.RenderRequestMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestExecuteHappyPath(t *testing.T) {
	deps := defaultDeps()
	uc := newUseCase(t, deps)

	jobID := uuid.New()
	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:  jobID,
		UserID: "user-1",
		Items: []entity.RenderItem{
			{ImageKey: "uploads/user-1/page1.png", Text: "trang mot"},
			{ImageKey: "uploads/user-1/page2.png", Text: "trang hai"},
		},
	})

	require.NoError(t, uc.Execute(context.Background(), body))

	job, err := deps.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 4, job.FrameCount)
	assert.Equal(t, 8.0, job.VideoDuration)
	assert.True(t, strings.HasPrefix(job.VideoKey, "outputs/video_"))

	status := deps.status.last(t)
	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, entity.JobStatusCompleted, status.Status)
	assert.Equal(t, 4, status.FrameCount)

	assert.Empty(t, deps.dlq.reasons)
	assert.Zero(t, deps.ocr.calls, "items with text must not run OCR")
	assert.Zero(t, deps.translator.calls, "vietnamese jobs must not translate")
}

func TestExecuteFramesStayInItemOrder(t *testing.T) {
	deps := defaultDeps()
	uc := newUseCase(t, deps)

	items := make([]entity.RenderItem, 4)
	for i := range items {
		items[i] = entity.RenderItem{ImageKey: fmt.Sprintf("uploads/p%d.png", i), Text: "van ban"}
	}
	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:  uuid.New(),
		UserID: "user-1",
		Items:  items,
	})

	require.NoError(t, uc.Execute(context.Background(), body))

	require.NotNil(t, deps.assembler.input)
	entries := deps.assembler.input.Entries
	require.Len(t, entries, 8)
	for i, e := range entries {
		wantDir := fmt.Sprintf("item_%03d", i/2)
		assert.Contains(t, e.FramePath, wantDir, "entry %d out of order", i)
	}
}

func TestExecuteUploadsVideoAndSnapshots(t *testing.T) {
	deps := defaultDeps()
	uc := newUseCase(t, deps)

	jobID := uuid.New()
	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:  jobID,
		UserID: "user-1",
		Items:  []entity.RenderItem{{ImageKey: "uploads/p.png", Text: "van ban"}},
	})

	require.NoError(t, uc.Execute(context.Background(), body))

	keys := deps.storage.uploadedKeys()
	var videoKeys, snapshotKeys int
	for _, k := range keys {
		switch {
		case strings.HasPrefix(k, "outputs/video_"):
			videoKeys++
		case strings.HasPrefix(k, "temp/"+jobID.String()+"/"):
			snapshotKeys++
		}
	}
	assert.Equal(t, 1, videoKeys)
	assert.Equal(t, 1, snapshotKeys)
}

func TestExecuteRunsOCRWhenItemHasNoText(t *testing.T) {
	deps := defaultDeps()
	uc := newUseCase(t, deps)

	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:  uuid.New(),
		UserID: "user-1",
		Items:  []entity.RenderItem{{ImageKey: "uploads/p.png"}},
	})

	require.NoError(t, uc.Execute(context.Background(), body))

	assert.Equal(t, 1, deps.ocr.calls)
	require.Len(t, deps.narrator.texts, 1)
	assert.NotEmpty(t, deps.narrator.texts[0])
}

func TestExecuteTranslatesForEnglishJobs(t *testing.T) {
	deps := defaultDeps()
	uc := newUseCase(t, deps)

	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:    uuid.New(),
		UserID:   "user-1",
		Language: "en",
		Items:    []entity.RenderItem{{ImageKey: "uploads/p.png", Text: "van ban"}},
	})

	require.NoError(t, uc.Execute(context.Background(), body))

	assert.Equal(t, 1, deps.translator.calls)
	require.Len(t, deps.narrator.texts, 1)
	assert.True(t, strings.HasPrefix(deps.narrator.texts[0], "translated: "))
}

func TestExecuteMalformedMessageGoesToDLQ(t *testing.T) {
	deps := defaultDeps()
	uc := newUseCase(t, deps)

	require.NoError(t, uc.Execute(context.Background(), []byte(`{invalid json`)))

	require.Len(t, deps.dlq.reasons, 1)
	assert.True(t, strings.HasPrefix(deps.dlq.reasons[0], "unmarshal_error"))
	assert.Empty(t, deps.status.messages)
}

func TestExecuteInvalidMessageGoesToDLQ(t *testing.T) {
	deps := defaultDeps()
	uc := newUseCase(t, deps)

	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:  uuid.New(),
		UserID: "user-1",
		Items:  nil,
	})

	require.NoError(t, uc.Execute(context.Background(), body))

	require.Len(t, deps.dlq.reasons, 1)
	assert.True(t, strings.HasPrefix(deps.dlq.reasons[0], "invalid_message"))
}

func TestExecuteDecodeFailureIsRetryable(t *testing.T) {
	deps := defaultDeps()
	deps.segmenter.err = &entity.DecodeError{Path: "p.png", Err: errors.New("corrupt")}
	uc := newUseCase(t, deps)

	jobID := uuid.New()
	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:  jobID,
		UserID: "user-1",
		Items:  []entity.RenderItem{{ImageKey: "uploads/p.png", Text: "van ban"}},
	})

	err := uc.Execute(context.Background(), body)
	require.Error(t, err, "a retryable failure must nack the message")

	var retryable *entity.RetryableError
	require.True(t, errors.As(err, &retryable))
	assert.Equal(t, 1, retryable.Attempt)

	job, findErr := deps.repo.FindByID(context.Background(), jobID)
	require.NoError(t, findErr)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt)

	assert.Empty(t, deps.dlq.reasons)
	status := deps.status.last(t)
	assert.Equal(t, entity.JobStatusFailed, status.Status)
}

func TestExecuteExhaustedRetriesGoPermanent(t *testing.T) {
	deps := defaultDeps()
	uc := newUseCase(t, deps)

	job := entity.NewRenderJob("user-1", "vi", 1, 3)
	job.Attempt = 3
	require.NoError(t, deps.repo.Create(context.Background(), job))

	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:     job.ID,
		UserID:    "user-1",
		Items:     []entity.RenderItem{{ImageKey: "uploads/p.png", Text: "van ban"}},
		UserEmail: "user@test.local",
	})

	require.NoError(t, uc.Execute(context.Background(), body), "permanent failures must ack the message")

	stored, err := deps.repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, stored.Status)

	require.Len(t, deps.dlq.reasons, 1)
	assert.Contains(t, deps.dlq.reasons[0], "max retries")
	assert.Equal(t, []string{"user@test.local"}, deps.notifier.emails)
}

func TestExecuteAssemblyFailureIsRetryable(t *testing.T) {
	deps := defaultDeps()
	deps.assembler.err = &entity.EncodeError{Stage: "silent-video", Err: errors.New("exit status 1")}
	uc := newUseCase(t, deps)

	jobID := uuid.New()
	body := requestMsg(t, entity.RenderRequestMessage{
		JobID:  jobID,
		UserID: "user-1",
		Items:  []entity.RenderItem{{ImageKey: "uploads/p.png", Text: "van ban"}},
	})

	require.Error(t, uc.Execute(context.Background(), body))

	job, err := deps.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Empty(t, deps.dlq.reasons)
}
