package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/trafficwatch/internal/models"
)

// Storage defines the interface for persisting a run's violations
type Storage interface {
	// AddViolation records a single violation
	AddViolation(ctx context.Context, v models.Violation) error

	// Flush ensures all pending violations are saved
	Flush() error
}

// JSONStorage collects violations and writes them as one indented JSON array.
type JSONStorage struct {
	violations []models.Violation
	mu         sync.Mutex
	path       string
}

// NewJSONStorage creates a storage that writes to path on Flush
func NewJSONStorage(path string) *JSONStorage {
	return &JSONStorage{
		violations: []models.Violation{},
		path:       path,
	}
}

// Path returns the destination file.
func (s *JSONStorage) Path() string { return s.path }

// AddViolation adds a violation to the pending report
func (s *JSONStorage) AddViolation(ctx context.Context, v models.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, v)
	return nil
}

// Flush writes the report to disk, replacing any previous file.
func (s *JSONStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for report: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.violations, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	// replace atomically
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write report %s: %w", s.path, err)
	}
	return nil
}

// SaveViolations adds every violation to store and flushes it.
func SaveViolations(ctx context.Context, store Storage, violations []models.Violation) error {
	for _, v := range violations {
		if err := store.AddViolation(ctx, v); err != nil {
			return err
		}
	}
	return store.Flush()
}

// ReadViolations loads a report previously written by JSONStorage.
func ReadViolations(path string) ([]models.Violation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var violations []models.Violation
	if err := json.Unmarshal(data, &violations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return violations, nil
}
