package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/framehook/captiond/internal/adapters/ffmpeg"
	"github.com/framehook/captiond/internal/adapters/llm"
	"github.com/framehook/captiond/internal/adapters/retrieval"
	"github.com/framehook/captiond/internal/adapters/transcribe"
	"github.com/framehook/captiond/internal/adapters/vlm"
	"github.com/framehook/captiond/internal/adapters/webhook"
	appconfig "github.com/framehook/captiond/internal/config"
	"github.com/framehook/captiond/internal/core/ports"
	"github.com/framehook/captiond/internal/core/services"
	"github.com/framehook/captiond/pkg/kernel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting captiond")

	if err := run(logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", "reason", err)
	}
	cfg := appconfig.FromEnv()

	// Process-wide outbound HTTP pool, shared by retrieval and delivery.
	httpClient := retrieval.NewPooledHTTPClient()

	s3Fetcher, err := retrieval.NewS3Fetcher(ctx, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.AWSRegion, cfg.S3Endpoint)
	if err != nil {
		return fmt.Errorf("failed to init S3 fetcher: %w", err)
	}
	retriever := retrieval.NewClient(logger, retrieval.NewHTTPFetcher(httpClient), s3Fetcher)

	transcoder := ffmpeg.NewTranscoder(logger, cfg.FFmpegTimeout, cfg.AudioExtractFormat, cfg.AudioExtractBitrate)

	// Transcription is a soft dependency: without a credential the
	// capability stays disabled and jobs run without transcripts.
	var transcriber ports.Transcriber
	if cfg.GroqAPIKey != "" {
		transcriber = transcribe.NewWhisper(logger, cfg.GroqAPIKey, cfg.WhisperModel)
		logger.Info("whisper client initialized", "model", cfg.WhisperModel)
	} else {
		logger.Warn("GROQ_API_KEY not set - audio transcription disabled")
	}

	// Chat degrades the same way: a failed construction disables the
	// capability, never the process.
	var chatProvider ports.ChatProvider
	if p, err := llm.Build(cfg.LLMProvider); err != nil {
		logger.Warn("LLM client init failed", "error", err)
	} else {
		chatProvider = p
		logger.Info("LLM client initialized", "provider", cfg.LLMProvider, "model", p.Model())
	}

	// Vision runtime: load failure leaves health degraded, not a crash.
	model := vlm.NewRuntime(logger, cfg.RuntimeURL, cfg.ModelID, cfg.Quantization, cfg.AttentionImpl)
	if err := model.Load(ctx); err != nil {
		logger.Error("model load failed", "error", err)
	}
	defer func() {
		if err := model.Unload(context.Background()); err != nil {
			logger.Warn("model unload failed", "error", err)
		}
	}()

	engine := services.NewCaptionEngine(logger, model, transcoder, services.EngineConfig{
		PromptFilePath:  cfg.PromptFilePath,
		DefaultPrompt:   appconfig.DefaultPrompt,
		MaxTokens:       cfg.MaxTokens,
		UseTranscript:   cfg.UseAudioGuardrail,
		VideoExtensions: appconfig.VideoExtensions,
	})

	policy := services.NewAudioPolicy(logger, retriever, transcoder, cfg.AudioSourceMode, appconfig.AudioExtensions)
	notifier := webhook.NewNotifier(logger, httpClient, cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout)

	orch := services.NewOrchestrator(
		logger, retriever, policy, transcriber, engine, chatProvider, notifier,
		cfg.UseAudioGuardrail,
		services.ChatDefaults{
			SystemPrompt: cfg.ChatSystemPrompt,
			MaxTokens:    cfg.ChatMaxTokens,
			Temperature:  cfg.ChatTemperature,
		},
	)

	scheduler := services.NewJobScheduler(logger, services.SchedulerConfig{
		MaxConcurrentJobs: cfg.JobConcurrency,
	})
	scheduler.Start(ctx)

	apiServer := kernel.NewServer(logger, scheduler, orch, engine, cfg)

	c := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: c.Handler(apiServer.Handler()),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting api server", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
