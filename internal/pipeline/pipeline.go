package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bdougie/trafficwatch/internal/models"
	"github.com/bdougie/trafficwatch/internal/publish"
	"github.com/bdougie/trafficwatch/internal/report"
	"github.com/bdougie/trafficwatch/internal/storage"
)

// ErrNoAnalysis is returned when the model produced no usable report.
var ErrNoAnalysis = errors.New("failed to get a valid analysis")

// VideoAnalyzer turns a video into the model's raw report text
type VideoAnalyzer interface {
	Analyze(ctx context.Context, path string) (string, error)
}

// VideoAnnotator writes an annotated copy of a video
type VideoAnnotator interface {
	Annotate(ctx context.Context, inputPath, outputPath string, violations []models.Violation) error
	Close() error
}

// Publisher uploads a finished artifact and returns where it lives
type Publisher interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

type Pipeline struct {
	RunID    uuid.UUID
	Analyzer VideoAnalyzer
	Parser   *report.Parser
	Report   *storage.JSONStorage
	// Sinks receive the same violations after the JSON report
	Sinks []storage.Storage
	// NewAnnotator is called only when there is something to draw
	NewAnnotator func() (VideoAnnotator, error)
	Publisher    Publisher
	Logger       *slog.Logger
}

// Result describes what a run produced. Empty paths were not written.
type Result struct {
	RunID      uuid.UUID
	Violations []models.Violation
	ReportPath string
	VideoPath  string
	Published  []string
}

// Run analyzes inputVideo and, when violations are found, writes the report,
// the extra sinks and the annotated video. Failures after analysis are
// logged and joined into the returned error; later steps still run.
func (p *Pipeline) Run(ctx context.Context, inputVideo, outputVideo string) (*Result, error) {
	logger := p.logger()
	result := &Result{RunID: p.RunID}

	logger.Info("analyzing video", "video", inputVideo)
	text, err := p.Analyzer.Analyze(ctx, inputVideo)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrNoAnalysis, err)
	}
	if text == "" {
		return result, ErrNoAnalysis
	}
	logger.Info("analysis report received", "report", text)

	result.Violations = p.Parser.Parse(text)
	if len(result.Violations) == 0 {
		logger.Info("no violations to report")
		return result, nil
	}
	logger.Info("violations parsed", "count", len(result.Violations))

	var errs []error
	if err := p.saveReport(ctx, result); err != nil {
		errs = append(errs, err)
	}
	for _, sink := range p.Sinks {
		if err := storage.SaveViolations(ctx, sink, result.Violations); err != nil {
			logger.Error("failed to save violations", "error", err)
			errs = append(errs, err)
		}
	}
	if err := p.annotate(ctx, inputVideo, outputVideo, result); err != nil {
		errs = append(errs, err)
	}
	p.publish(ctx, result)

	return result, errors.Join(errs...)
}

// Annotate skips analysis and draws violations from an existing report.
func (p *Pipeline) Annotate(ctx context.Context, reportPath, inputVideo, outputVideo string) (*Result, error) {
	logger := p.logger()
	result := &Result{RunID: p.RunID}

	violations, err := storage.ReadViolations(reportPath)
	if err != nil {
		return result, err
	}
	result.Violations = violations
	if len(violations) == 0 {
		logger.Info("report has no violations", "report", reportPath)
		return result, nil
	}

	err = p.annotate(ctx, inputVideo, outputVideo, result)
	p.publish(ctx, result)
	return result, err
}

func (p *Pipeline) saveReport(ctx context.Context, result *Result) error {
	if p.Report == nil {
		return nil
	}
	if err := storage.SaveViolations(ctx, p.Report, result.Violations); err != nil {
		p.logger().Error("failed to save report", "error", err)
		return err
	}
	result.ReportPath = p.Report.Path()
	p.logger().Info("report saved", "path", result.ReportPath)
	return nil
}

func (p *Pipeline) annotate(ctx context.Context, inputVideo, outputVideo string, result *Result) error {
	if p.NewAnnotator == nil {
		return nil
	}
	a, err := p.NewAnnotator()
	if err != nil {
		p.logger().Error("cannot annotate video", "error", err)
		return err
	}
	defer a.Close()

	if err := a.Annotate(ctx, inputVideo, outputVideo, result.Violations); err != nil {
		p.logger().Error("failed to annotate video", "error", err)
		return err
	}
	result.VideoPath = outputVideo
	return nil
}

// publish failures never fail the run
func (p *Pipeline) publish(ctx context.Context, result *Result) {
	if p.Publisher == nil {
		return
	}
	for _, path := range []string{result.ReportPath, result.VideoPath} {
		if path == "" {
			continue
		}
		url, err := p.Publisher.Upload(ctx, path, publish.ObjectKey(p.RunID.String(), path))
		if err != nil {
			p.logger().Warn("failed to publish artifact", "path", path, "error", err)
			continue
		}
		p.logger().Info("artifact published", "url", url)
		result.Published = append(result.Published, url)
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
