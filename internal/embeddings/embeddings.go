package embeddings

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// Service wraps an Embedder with a cache keyed by content
type Service struct {
	embedder Embedder
	cache    sync.Map // content -> []float32
}

// NewService creates a new embedding service
func NewService(embedder Embedder) *Service {
	return &Service{embedder: embedder}
}

// GetEmbedding returns the embedding for content, generating it on first use
func (s *Service) GetEmbedding(ctx context.Context, content string) ([]float32, error) {
	if cached, ok := s.cache.Load(content); ok {
		if embedding, valid := cached.([]float32); valid {
			return embedding, nil
		}
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	s.cache.Store(content, embedding)
	return embedding, nil
}

// GeminiEmbedder generates embeddings with the Gemini API
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder using model, e.g. "text-embedding-004"
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

func (g *GeminiEmbedder) Embed(ctx context.Context, content string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(content), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embeddings in response")
	}
	return resp.Embeddings[0].Values, nil
}
