package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultRequestTimeout = 1000 * time.Second
)

// Options tunes an Analyzer
type Options struct {
	Prompt         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// Analyzer uploads a video, waits for the service to process it, asks for a
// report and always releases the upload afterwards.
type Analyzer struct {
	service Service
	opts    Options
	logger  *slog.Logger

	// sleep waits between status checks
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAnalyzer creates an Analyzer backed by service
func NewAnalyzer(service Service, opts Options, logger *slog.Logger) *Analyzer {
	if opts.Prompt == "" {
		opts.Prompt = SystemPrompt
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	return &Analyzer{
		service: service,
		opts:    opts,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Analyze returns the model's raw report for the video at path. A failed
// remote state yields ErrProcessingFailed and any service error ErrRequest.
func (a *Analyzer) Analyze(ctx context.Context, path string) (string, error) {
	a.logger.Info("uploading file", "path", path)
	handle, err := a.service.Upload(ctx, path)
	if err != nil {
		a.logger.Error("upload failed", "path", path, "error", err)
		return "", fmt.Errorf("%w: upload: %w", ErrRequest, err)
	}
	a.logger.Info("uploaded file", "display_name", handle.DisplayName, "name", handle.Name)

	defer func() {
		a.logger.Info("deleting uploaded file", "name", handle.Name)
		if err := a.service.Delete(context.WithoutCancel(ctx), handle); err != nil {
			a.logger.Warn("failed to delete uploaded file", "name", handle.Name, "error", err)
		}
	}()

	a.logger.Info("waiting for video processing")
	state := handle.State
	for state == StateProcessing {
		if err := a.sleep(ctx, a.opts.PollInterval); err != nil {
			return "", err
		}
		state, err = a.service.Status(ctx, handle)
		if err != nil {
			a.logger.Error("status check failed", "name", handle.Name, "error", err)
			return "", fmt.Errorf("%w: status: %w", ErrRequest, err)
		}
		a.logger.Debug("polled file state", "name", handle.Name, "state", state)
	}

	if state == StateFailed {
		a.logger.Error("video processing failed", "name", handle.Name)
		return "", fmt.Errorf("%w: %s", ErrProcessingFailed, handle.Name)
	}

	a.logger.Info("video processed, starting analysis")
	genCtx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()

	text, err := a.service.Generate(genCtx, handle, a.opts.Prompt)
	if err != nil {
		a.logger.Error("error during model call", "error", err)
		return "", fmt.Errorf("%w: generate: %w", ErrRequest, err)
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
