package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/bdougie/trafficwatch/internal/analyzer"
	"github.com/bdougie/trafficwatch/internal/annotator"
	"github.com/bdougie/trafficwatch/internal/config"
	"github.com/bdougie/trafficwatch/internal/embeddings"
	"github.com/bdougie/trafficwatch/internal/pipeline"
	"github.com/bdougie/trafficwatch/internal/publish"
	"github.com/bdougie/trafficwatch/internal/report"
	"github.com/bdougie/trafficwatch/internal/storage"
	"github.com/bdougie/trafficwatch/internal/video"
)

func runAnalysis(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.CheckCredentials(); err != nil {
		return err
	}

	runID := uuid.New()
	logger = logger.With("run", runID.String())

	var client *genai.Client
	if cfg.Provider == config.ProviderGemini || (cfg.Postgres.Enabled && cfg.Gemini.EmbeddingModel != "") {
		var err error
		client, err = analyzer.NewGeminiClient(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return err
		}
	}

	service, err := newService(ctx, cfg, client, logger)
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		RunID: runID,
		Analyzer: analyzer.NewAnalyzer(service, analyzer.Options{
			PollInterval:   cfg.PollInterval,
			RequestTimeout: cfg.RequestTimeout,
		}, logger),
		Parser:       report.NewParser(cfg.InstantEventDuration, logger),
		Report:       storage.NewJSONStorage(cfg.OutputJSON),
		NewAnnotator: annotatorFactory(cfg, logger),
		Logger:       logger,
	}

	if cfg.Postgres.Enabled {
		videoName := strings.TrimSuffix(filepath.Base(cfg.InputVideo), filepath.Ext(cfg.InputVideo))
		db, err := openPostgres(ctx, cfg, runID, videoName, client, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		p.Sinks = append(p.Sinks, db)
	}

	if cfg.Minio.Enabled {
		pub, err := openPublisher(ctx, cfg)
		if err != nil {
			return err
		}
		p.Publisher = pub
	}

	result, err := p.Run(ctx, cfg.InputVideo, cfg.OutputVideo)
	if errors.Is(err, pipeline.ErrNoAnalysis) {
		return err
	}
	if result != nil && len(result.Violations) > 0 {
		logger.Info("run finished", "violations", len(result.Violations),
			"report", result.ReportPath, "video", result.VideoPath)
	}
	return err
}

func runFromReport(ctx context.Context, cfg *config.Config, reportPath string, logger *slog.Logger) error {
	p := &pipeline.Pipeline{
		RunID:        uuid.New(),
		NewAnnotator: annotatorFactory(cfg, logger),
		Logger:       logger,
	}
	if cfg.Minio.Enabled {
		pub, err := openPublisher(ctx, cfg)
		if err != nil {
			return err
		}
		p.Publisher = pub
	}

	_, err := p.Annotate(ctx, reportPath, cfg.InputVideo, cfg.OutputVideo)
	return err
}

func runSearch(ctx context.Context, cfg *config.Config, query string, limit int, logger *slog.Logger) error {
	if !cfg.Postgres.Enabled || cfg.Gemini.EmbeddingModel == "" {
		return errors.New("search needs postgres.enabled and gemini.embedding_model")
	}
	if cfg.Gemini.APIKey == "" {
		return fmt.Errorf("%w: set gemini.api_key or GOOGLE_API_KEY", config.ErrMissingCredential)
	}

	client, err := analyzer.NewGeminiClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		return err
	}
	db, err := openPostgres(ctx, cfg, uuid.Nil, "", client, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.SearchSimilar(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matching violations found.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s - %s (%s, %ds-%ds)\n   %s\n",
			i+1, r.Similarity, r.Name, r.Subject, r.Video, r.StartTime, r.EndTime, r.Description)
	}
	return nil
}

func newService(ctx context.Context, cfg *config.Config, client *genai.Client, logger *slog.Logger) (analyzer.Service, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return analyzer.NewOpenAIService(analyzer.OpenAIConfig{
			APIKey:        cfg.OpenAI.APIKey,
			BaseURL:       cfg.OpenAI.BaseURL,
			Model:         cfg.OpenAI.Model,
			FrameInterval: cfg.OpenAI.FrameInterval,
			WorkDir:       cfg.WorkDir,
		}, nil, logger), nil
	case config.ProviderOllama:
		ollamaCfg := analyzer.OllamaConfig{
			BaseURL:       cfg.Ollama.BaseURL,
			Port:          cfg.Ollama.Port,
			Model:         cfg.Ollama.Model,
			FrameInterval: cfg.Ollama.FrameInterval,
			WorkDir:       cfg.WorkDir,
		}
		describer, err := analyzer.NewAgent(ctx, ollamaCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vision agent: %w", err)
		}
		return analyzer.NewOllamaService(describer, ollamaCfg, nil, logger), nil
	default:
		return analyzer.NewGeminiService(client, cfg.Gemini.Model), nil
	}
}

func annotatorFactory(cfg *config.Config, logger *slog.Logger) func() (pipeline.VideoAnnotator, error) {
	return func() (pipeline.VideoAnnotator, error) {
		a, err := annotator.New(annotator.FontConfig{
			BoldPath:    cfg.Fonts.Bold,
			BoldSize:    cfg.Fonts.BoldSize,
			RegularPath: cfg.Fonts.Regular,
			RegularSize: cfg.Fonts.RegularSize,
		}, video.Codec{Name: cfg.Video.Codec, Tag: cfg.Video.Tag}, logger)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, runID uuid.UUID, videoName string, client *genai.Client, logger *slog.Logger) (*storage.PostgresStorage, error) {
	pgCfg := storage.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.Name,
	}
	if err := storage.InitSchema(ctx, pgCfg, cfg.Postgres.EmbeddingDims); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	var embedder *embeddings.Service
	if client != nil && cfg.Gemini.EmbeddingModel != "" {
		embedder = embeddings.NewService(embeddings.NewGeminiEmbedder(client, cfg.Gemini.EmbeddingModel))
	}
	return storage.NewPostgresStorage(ctx, pgCfg, runID, videoName, embedder, logger)
}

func openPublisher(ctx context.Context, cfg *config.Config) (*publish.Store, error) {
	return publish.New(ctx, publish.Options{
		Endpoint:   cfg.Minio.Endpoint,
		Region:     cfg.Minio.Region,
		BucketName: cfg.Minio.BucketName,
		AccessKey:  cfg.Minio.AccessKey,
		SecretKey:  cfg.Minio.SecretKey,
		UseSSL:     cfg.Minio.UseSSL,
	})
}
