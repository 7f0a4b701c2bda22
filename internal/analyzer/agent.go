package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"

	"github.com/bdougie/trafficwatch/internal/report"
)

const (
	defaultOllamaModel = "llama3.2-vision:11b"
	maxWorkers         = 4
)

// OllamaConfig configures the local Ollama agent
type OllamaConfig struct {
	BaseURL       string
	Port          int
	Model         string
	FrameInterval int
	WorkDir       string
}

// Describer answers a prompt about one image
type Describer interface {
	Describe(ctx context.Context, prompt, imagePath string) (string, error)
}

type agentDescriber struct {
	agent *agent.DefaultAgent
}

func (d agentDescriber) Describe(ctx context.Context, prompt, imagePath string) (string, error) {
	response := d.agent.Run(
		ctx,
		agent.WithInput(prompt),
		agent.WithImagePath(imagePath),
	)
	if response.Err != nil {
		return "", response.Err
	}

	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}

	// Get the model's response (not the prompt)
	return response.Messages[len(response.Messages)-1].Content, nil
}

// NewAgent initializes a vision agent on a local Ollama server
func NewAgent(ctx context.Context, cfg OllamaConfig, logger *slog.Logger) (Describer, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 11434
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}

	// Check if Ollama is running
	tagsURL := fmt.Sprintf("%s:%d/api/tags", cfg.BaseURL, cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama is not reachable at %s: %w", tagsURL, err)
	}
	resp.Body.Close()

	opts := &ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	}
	provider := ollama.NewProvider(opts)

	model := &types.Model{
		ID: cfg.Model,
	}
	provider.UseModel(ctx, model)

	agentConf := &agent.NewAgentConfig{
		Provider:     provider,
		Logger:       logger,
		SystemPrompt: "You are a traffic safety analyst reviewing still frames from a road video. You answer only with the requested markdown table or the requested single sentence.",
	}

	return agentDescriber{agent: agent.NewAgent(agentConf)}, nil
}

// OllamaService asks a local vision agent about each sampled frame and
// merges the per-frame tables into one report.
type OllamaService struct {
	describer Describer
	store     frameStore
	logger    *slog.Logger
}

// NewOllamaService creates a service over describer
func NewOllamaService(describer Describer, cfg OllamaConfig, extract FrameExtractor, logger *slog.Logger) *OllamaService {
	return &OllamaService{
		describer: describer,
		store:     newFrameStore(cfg.WorkDir, cfg.FrameInterval, extract, logger),
		logger:    logger,
	}
}

func (s *OllamaService) Upload(ctx context.Context, path string) (Handle, error) {
	return s.store.upload(ctx, path)
}

func (s *OllamaService) Status(ctx context.Context, h Handle) (State, error) {
	return s.store.status(h)
}

// Generate describes frames on a small worker pool. A frame that fails is
// skipped; the call fails only when every frame does.
func (s *OllamaService) Generate(ctx context.Context, h Handle, prompt string) (string, error) {
	frames, err := s.store.frames(h)
	if err != nil {
		return "", err
	}

	// one slot per frame keeps the merged rows in frame order
	answers := make([]string, len(frames))
	errs := make([]error, len(frames))
	work := make(chan int, len(frames))

	remaining := atomic.Int64{}
	remaining.Store(int64(len(frames)))

	var wg sync.WaitGroup
	for w := 0; w < min(maxWorkers, len(frames)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				frame := frames[i]
				input := fmt.Sprintf("%s%s\n\nThis is frame %d of %d, captured at %s.", prompt, framePrompt, i+1, len(frames), clock(frame.Offset))
				answers[i], errs[i] = s.describer.Describe(ctx, input, frame.Path)
				if errs[i] != nil {
					s.logger.Warn("frame analysis failed", "frame", frame.Path, "error", errs[i])
				} else {
					s.logger.Debug("frame analyzed", "frame", frame.Path, "content", answers[i])
				}
				s.logger.Debug("frames remaining", "remaining", remaining.Add(-1), "total", len(frames))
			}
		}()
	}
	for i := range frames {
		work <- i
	}
	close(work)
	wg.Wait()

	var (
		rows     []string
		failures int
		lastErr  error
	)
	for i, content := range answers {
		if errs[i] != nil {
			failures++
			lastErr = errs[i]
			continue
		}
		if strings.Contains(content, report.NoIssuesPhrase) {
			continue
		}
		for _, line := range strings.Split(content, "\n") {
			if strings.Contains(line, "|") {
				rows = append(rows, strings.TrimSpace(line))
			}
		}
	}

	if failures == len(frames) {
		return "", fmt.Errorf("all %d frames failed: %w", failures, lastErr)
	}
	if len(rows) == 0 {
		return NoIssuesSentence, nil
	}
	return strings.Join(rows, "\n"), nil
}

func (s *OllamaService) Delete(ctx context.Context, h Handle) error {
	return s.store.delete(h)
}
