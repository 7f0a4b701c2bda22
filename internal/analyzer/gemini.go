package analyzer

import (
	"context"
	"fmt"
	"path/filepath"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-pro"

type geminiFiles interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiService analyzes videos through the Gemini Files API
type GeminiService struct {
	files  geminiFiles
	models geminiModels
	model  string
}

// NewGeminiClient creates a Gemini API client for apiKey
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiService creates a service that uses model, e.g. "gemini-2.5-pro"
func NewGeminiService(client *genai.Client, model string) *GeminiService {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiService{
		files:  client.Files,
		models: client.Models,
		model:  model,
	}
}

func (s *GeminiService) Upload(ctx context.Context, path string) (Handle, error) {
	file, err := s.files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		DisplayName: filepath.Base(path),
		MIMEType:    videoMIMEType(path),
	})
	if err != nil {
		return Handle{}, err
	}
	return geminiHandle(file), nil
}

func (s *GeminiService) Status(ctx context.Context, h Handle) (State, error) {
	file, err := s.files.Get(ctx, h.Name, nil)
	if err != nil {
		return StateFailed, err
	}
	return geminiState(file.State), nil
}

func (s *GeminiService) Generate(ctx context.Context, h Handle, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromURI(h.URI, h.MIMEType, genai.RoleUser),
	}
	resp, err := s.models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt, genai.RoleUser),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (s *GeminiService) Delete(ctx context.Context, h Handle) error {
	_, err := s.files.Delete(ctx, h.Name, nil)
	return err
}

func geminiHandle(file *genai.File) Handle {
	return Handle{
		Name:        file.Name,
		DisplayName: file.DisplayName,
		URI:         file.URI,
		MIMEType:    file.MIMEType,
		State:       geminiState(file.State),
	}
}

// geminiState maps file states; anything that is neither processing nor
// failed is usable.
func geminiState(s genai.FileState) State {
	switch s {
	case genai.FileStateProcessing:
		return StateProcessing
	case genai.FileStateFailed:
		return StateFailed
	default:
		return StateReady
	}
}
