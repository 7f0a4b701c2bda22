package analyzer

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bdougie/trafficwatch/internal/extractor"
	"github.com/bdougie/trafficwatch/internal/models"
)

const (
	defaultOpenAIModel   = "gpt-4o"
	defaultFrameInterval = 2
	maxTokens            = 4096
)

// FrameExtractor samples stills from a video. extractor.ExtractFrames satisfies it.
type FrameExtractor func(ctx context.Context, videoPath, outputDir string, interval int, logger *slog.Logger) ([]models.FrameSample, error)

// frameStore is the local stand-in for an upload: frames sampled into a
// temporary directory that Delete removes.
type frameStore struct {
	workDir  string
	interval int
	extract  FrameExtractor
	logger   *slog.Logger
}

func newFrameStore(workDir string, interval int, extract FrameExtractor, logger *slog.Logger) frameStore {
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	if extract == nil {
		extract = extractor.ExtractFrames
	}
	return frameStore{workDir: workDir, interval: interval, extract: extract, logger: logger}
}

func (f frameStore) upload(ctx context.Context, path string) (Handle, error) {
	dir, err := os.MkdirTemp(f.workDir, "trafficwatch-frames-")
	if err != nil {
		return Handle{}, fmt.Errorf("failed to create frame directory: %w", err)
	}

	frames, err := f.extract(ctx, path, dir, f.interval, f.logger)
	if err != nil {
		os.RemoveAll(dir)
		return Handle{}, err
	}

	h := Handle{
		Name:        dir,
		DisplayName: filepath.Base(path),
		URI:         filepath.Join(dir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))),
		MIMEType:    "image/jpeg",
		State:       StateReady,
	}
	if len(frames) == 0 {
		h.State = StateFailed
	}
	return h, nil
}

func (f frameStore) status(h Handle) (State, error) {
	frames, err := extractor.ListFrames(h.URI, f.interval)
	if err != nil {
		return StateFailed, err
	}
	if len(frames) == 0 {
		return StateFailed, nil
	}
	return StateReady, nil
}

func (f frameStore) frames(h Handle) ([]models.FrameSample, error) {
	frames, err := extractor.ListFrames(h.URI, f.interval)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames found in '%s'", h.URI)
	}
	return frames, nil
}

func (f frameStore) delete(h Handle) error {
	return os.RemoveAll(h.Name)
}

// OpenAIService sends sampled frames to an OpenAI-compatible chat endpoint
// in a single request.
type OpenAIService struct {
	*openai.Client
	Model string
	store frameStore
}

// OpenAIConfig configures an OpenAIService
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	FrameInterval int
	WorkDir       string
}

// NewOpenAIService creates a service; BaseURL may point at any compatible
// server such as Ollama's /v1 endpoint.
func NewOpenAIService(cfg OpenAIConfig, extract FrameExtractor, logger *slog.Logger) *OpenAIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIService{
		Client: openai.NewClientWithConfig(clientCfg),
		Model:  model,
		store:  newFrameStore(cfg.WorkDir, cfg.FrameInterval, extract, logger),
	}
}

func (s *OpenAIService) Upload(ctx context.Context, path string) (Handle, error) {
	return s.store.upload(ctx, path)
}

func (s *OpenAIService) Status(ctx context.Context, h Handle) (State, error) {
	return s.store.status(h)
}

func (s *OpenAIService) Generate(ctx context.Context, h Handle, prompt string) (string, error) {
	frames, err := s.store.frames(h)
	if err != nil {
		return "", err
	}

	parts := make([]openai.ChatMessagePart, 0, len(frames)*2)
	for _, frame := range frames {
		data, err := os.ReadFile(frame.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read frame: %w", err)
		}
		parts = append(parts,
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: "Frame at " + clock(frame.Offset),
			},
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		)
	}

	req := openai.ChatCompletionRequest{
		Model:     s.Model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt + framePrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}

	resp, err := s.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion")
	}

	return resp.Choices[0].Message.Content, nil
}

func (s *OpenAIService) Delete(ctx context.Context, h Handle) error {
	return s.store.delete(h)
}

// clock formats seconds as MM:SS.
func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
