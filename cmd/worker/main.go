package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/toonreel/toonreel-render-service/internal/infra/config"
	"github.com/toonreel/toonreel-render-service/internal/infra/email"
	"github.com/toonreel/toonreel-render-service/internal/infra/ffmpeg"
	"github.com/toonreel/toonreel-render-service/internal/infra/gtranslate"
	"github.com/toonreel/toonreel-render-service/internal/infra/gtts"
	"github.com/toonreel/toonreel-render-service/internal/infra/imaging"
	"github.com/toonreel/toonreel-render-service/internal/infra/metrics"
	miniostorage "github.com/toonreel/toonreel-render-service/internal/infra/minio"
	"github.com/toonreel/toonreel-render-service/internal/infra/postgres"
	"github.com/toonreel/toonreel-render-service/internal/infra/rabbitmq"
	"github.com/toonreel/toonreel-render-service/internal/infra/tesseract"
	"github.com/toonreel/toonreel-render-service/internal/infra/tracing"
	"github.com/toonreel/toonreel-render-service/internal/narration"
	"github.com/toonreel/toonreel-render-service/internal/timeline"
	"github.com/toonreel/toonreel-render-service/internal/usecase"
	"github.com/toonreel/toonreel-render-service/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting toonreel-render-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.MinIOBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)

	providerTimeout := time.Duration(cfg.ProviderTimeoutMs) * time.Millisecond
	httpClient := &http.Client{Timeout: providerTimeout}

	segmenter := imaging.NewSegmenter(cfg.TargetFrameWidth, cfg.TargetFrameHeight, log)
	extractor := tesseract.NewExtractor(cfg.OCRLanguage, log)
	translator := gtranslate.NewTranslator(cfg.TranslateEndpoint, httpClient, log)
	tts := gtts.NewSynthesizer(cfg.TTSEndpoint, httpClient, log)
	narrator := narration.NewSynthesizer(tts, ffmpeg.NewProber(), providerTimeout, log)
	assembler := ffmpeg.NewAssembler(cfg.EncodeWidth, cfg.EncodeHeight, cfg.AudioTempo, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	policy, err := timeline.ParsePolicy(cfg.FrameDurationPolicy)
	fatalOnErr(err, "parse frame duration policy")

	// Use case
	uc := usecase.NewRenderVideoUseCase(
		repo, storage, segmenter, extractor, translator,
		narrator, assembler,
		statusPub, dlqPub, notifier,
		log,
		usecase.RenderVideoConfig{
			TempDir:          cfg.TempDir,
			MaxRetries:       cfg.MaxRetries,
			ItemConcurrency:  cfg.ItemConcurrency,
			DurationPolicy:   policy,
			FallbackDuration: cfg.FallbackDurationSec,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQRequestQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("toonreel-render-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("toonreel-render-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
