package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/smarttrash/smarttrash/internal/capture"
	"github.com/smarttrash/smarttrash/internal/config"
	"github.com/smarttrash/smarttrash/internal/engine"
	"github.com/smarttrash/smarttrash/internal/store"
)

// app is the wired pipeline and everything it holds open.
type app struct {
	store    *store.FileStore
	pipeline *engine.Pipeline
	closers  []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func openStore(cfg config.Config) (*store.FileStore, error) {
	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	s, err := store.Load(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("load database: %w", err)
	}
	return s, nil
}

// newApp builds the store and pipeline from cfg. The caller must Close it.
func newApp(ctx context.Context, cfg config.Config, opts ...engine.PipelineOption) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = s

	cam, err := a.camera(cfg)
	if err != nil {
		return nil, err
	}
	sink, err := newImageSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	labeler, err := newLabeler(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mc, err := a.modelClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.pipeline = engine.NewPipeline(engine.DefaultSteps(cam, sink, labeler, mc, s), opts...)
	ok = true
	return a, nil
}

func (a *app) camera(cfg config.Config) (engine.Camera, error) {
	if cfg.CameraImage != "" {
		log.Info().Str("path", cfg.CameraImage).Msg("using image file as camera")
		return &capture.FileCamera{Path: cfg.CameraImage}, nil
	}
	dev, err := capture.OpenDevice(cfg.CameraID)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.CameraID, err)
	}
	a.closers = append(a.closers, dev)
	log.Info().Int("id", cfg.CameraID).Msg("camera opened")
	return dev, nil
}

func newImageSink(ctx context.Context, cfg config.Config) (engine.ImageSink, error) {
	if cfg.S3Bucket != "" {
		client, err := capture.NewS3Client(ctx, cfg.S3Region)
		if err != nil {
			return nil, err
		}
		log.Info().Str("bucket", cfg.S3Bucket).Str("region", cfg.S3Region).Msg("storing images in S3")
		return capture.NewS3Sink(client, cfg.S3Bucket, ""), nil
	}
	return capture.NewDirSink(cfg.StoragePath)
}

func newLabeler(ctx context.Context, cfg config.Config) (engine.Labeler, error) {
	if cfg.UseVisionStub() {
		log.Warn().Str("provider", cfg.VisionProvider).Msg("no vision credentials, using stub labeller")
		return &engine.StubLabeler{}, nil
	}

	switch cfg.VisionProvider {
	case config.ProviderGemini:
		log.Info().Str("model", cfg.GeminiModel).Msg("using Gemini labeller")
		return engine.NewGeminiLabeler(ctx, cfg.GeminiKey, engine.WithGeminiModel(cfg.GeminiModel))
	default:
		var opts []option.ClientOption
		if cfg.VisionAPIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.VisionAPIKey))
		} else if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		log.Info().Msg("using Cloud Vision labeller")
		return engine.NewCloudVisionLabeler(ctx, opts...)
	}
}

func (a *app) modelClient(ctx context.Context, cfg config.Config) (engine.ModelClient, error) {
	var mc engine.ModelClient
	switch {
	case cfg.UseStubs():
		log.Warn().Str("provider", cfg.LLMProvider).Msg("no API key for LLM provider, using stub model client")
		mc = &engine.StubModelClient{}
	case cfg.LLMProvider == config.ProviderClaude:
		log.Info().Str("model", cfg.AnthropicModel).Msg("using Claude model client")
		mc = engine.NewClaudeClient(cfg.AnthropicKey,
			engine.WithClaudeModel(cfg.AnthropicModel),
			engine.WithClaudeTimeout(cfg.HTTPTimeout))
	case cfg.LLMProvider == config.ProviderGemini:
		log.Info().Str("model", cfg.GeminiModel).Msg("using Gemini model client")
		gc, err := engine.NewGeminiClient(ctx, cfg.GeminiKey, engine.WithGeminiModel(cfg.GeminiModel))
		if err != nil {
			return nil, err
		}
		mc = gc
	case cfg.LLMProvider == config.ProviderOllama:
		log.Info().Str("url", cfg.OllamaURL).Str("model", cfg.OllamaModel).Msg("using Ollama model client")
		mc = engine.NewOllamaClient(cfg.OllamaURL, engine.WithOllamaModel(cfg.OllamaModel))
	default:
		log.Info().Str("model", cfg.OpenAIModel).Msg("using OpenAI model client")
		mc = engine.NewOpenAIClient(cfg.OpenAIKey,
			engine.WithModel(cfg.OpenAIModel),
			engine.WithBaseURL(cfg.OpenAIBaseURL),
			engine.WithTimeout(cfg.HTTPTimeout))
	}

	if cfg.AnalysisCachePath == "" {
		return mc, nil
	}
	db, err := store.OpenSQLite(cfg.AnalysisCachePath)
	if err != nil {
		return nil, fmt.Errorf("open analysis cache: %w", err)
	}
	a.closers = append(a.closers, db)
	cache, err := store.NewAnalysisCache(db)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.AnalysisCachePath).Msg("analysis caching enabled")
	return engine.NewCachedModelClient(mc, cache), nil
}
