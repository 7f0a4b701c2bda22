package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/trafficwatch/internal/annotator"
	"github.com/bdougie/trafficwatch/internal/models"
	"github.com/bdougie/trafficwatch/internal/report"
	"github.com/bdougie/trafficwatch/internal/storage"
)

const twoRows = `| Violation / Hazard | Subject | Timestamp | Description |
|---|---|---|---|
| Riding Without a Helmet | Red Bajaj Pulsar | 00:03 - 00:09 | Rider has no helmet. |
| Hit-and-Run | White SUV | 00:15 | Vehicle leaves the scene. |`

type fakeAnalyzer struct {
	text string
	err  error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

type fakeAnnotator struct {
	calls      int
	violations []models.Violation
	err        error
	closed     bool
}

func (f *fakeAnnotator) Annotate(ctx context.Context, in, out string, violations []models.Violation) error {
	f.calls++
	f.violations = violations
	return f.err
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

type memorySink struct {
	got     []models.Violation
	flushed bool
}

func (m *memorySink) AddViolation(ctx context.Context, v models.Violation) error {
	m.got = append(m.got, v)
	return nil
}

func (m *memorySink) Flush() error {
	m.flushed = true
	return nil
}

type fakePublisher struct {
	keys []string
	err  error
}

func (f *fakePublisher) Upload(ctx context.Context, localPath, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "http://minio/bucket/" + key, nil
}

func newPipeline(t *testing.T, a VideoAnalyzer, ann *fakeAnnotator) (*Pipeline, string) {
	t.Helper()
	reportPath := filepath.Join(t.TempDir(), "analysis_report.json")
	p := &Pipeline{
		RunID:    uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		Analyzer: a,
		Parser:   report.NewParser(2, nil),
		Report:   storage.NewJSONStorage(reportPath),
		NewAnnotator: func() (VideoAnnotator, error) {
			return ann, nil
		},
	}
	return p, reportPath
}

func TestRunWritesAllOutputs(t *testing.T) {
	ann := &fakeAnnotator{}
	sink := &memorySink{}
	pub := &fakePublisher{}
	p, reportPath := newPipeline(t, &fakeAnalyzer{text: twoRows}, ann)
	p.Sinks = []storage.Storage{sink}
	p.Publisher = pub

	result, err := p.Run(context.Background(), "traffic_video.mp4", "annotated_video.mp4")
	require.NoError(t, err)

	require.Len(t, result.Violations, 2)
	assert.Equal(t, 15, result.Violations[1].StartTime)
	assert.Equal(t, 17, result.Violations[1].EndTime)
	assert.Equal(t, reportPath, result.ReportPath)
	assert.Equal(t, "annotated_video.mp4", result.VideoPath)

	saved, err := storage.ReadViolations(reportPath)
	require.NoError(t, err)
	assert.Equal(t, result.Violations, saved)

	assert.Equal(t, result.Violations, sink.got)
	assert.True(t, sink.flushed)
	assert.Equal(t, 1, ann.calls)
	assert.True(t, ann.closed)
	assert.Equal(t, []string{
		"7d444840-9dc0-11d1-b245-5ffdce74fad2/analysis_report.json",
		"7d444840-9dc0-11d1-b245-5ffdce74fad2/annotated_video.mp4",
	}, pub.keys)
	assert.Len(t, result.Published, 2)
}

func TestRunAnalysisFailure(t *testing.T) {
	ann := &fakeAnnotator{}
	p, reportPath := newPipeline(t, &fakeAnalyzer{err: errors.New("quota exceeded")}, ann)

	_, err := p.Run(context.Background(), "in.mp4", "out.mp4")
	assert.ErrorIs(t, err, ErrNoAnalysis)
	assert.Zero(t, ann.calls)
	assert.NoFileExists(t, reportPath)
}

func TestRunEmptyResponse(t *testing.T) {
	p, _ := newPipeline(t, &fakeAnalyzer{}, &fakeAnnotator{})
	_, err := p.Run(context.Background(), "in.mp4", "out.mp4")
	assert.ErrorIs(t, err, ErrNoAnalysis)
}

func TestRunNoViolationsSkipsOutputs(t *testing.T) {
	ann := &fakeAnnotator{}
	p, reportPath := newPipeline(t, &fakeAnalyzer{text: "No traffic violations, criminal activities, or road safety hazards were observed in the video."}, ann)

	result, err := p.Run(context.Background(), "in.mp4", "out.mp4")
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
	assert.Zero(t, ann.calls)
	assert.NoFileExists(t, reportPath)
}

func TestRunReportFailureStillAnnotates(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	ann := &fakeAnnotator{}
	p, _ := newPipeline(t, &fakeAnalyzer{text: twoRows}, ann)
	p.Report = storage.NewJSONStorage(filepath.Join(blocker, "report.json"))

	result, err := p.Run(context.Background(), "in.mp4", "out.mp4")
	assert.Error(t, err)
	assert.Empty(t, result.ReportPath)
	assert.Equal(t, 1, ann.calls)
	assert.Equal(t, "out.mp4", result.VideoPath)
}

func TestRunFontFailureKeepsReport(t *testing.T) {
	p, reportPath := newPipeline(t, &fakeAnalyzer{text: twoRows}, nil)
	p.NewAnnotator = func() (VideoAnnotator, error) {
		return nil, annotator.ErrFontUnavailable
	}

	result, err := p.Run(context.Background(), "in.mp4", "out.mp4")
	assert.ErrorIs(t, err, annotator.ErrFontUnavailable)
	assert.FileExists(t, reportPath)
	assert.Equal(t, reportPath, result.ReportPath)
	assert.Empty(t, result.VideoPath)
}

func TestRunAnnotateFailure(t *testing.T) {
	ann := &fakeAnnotator{err: annotator.ErrOpenInput}
	pub := &fakePublisher{}
	p, _ := newPipeline(t, &fakeAnalyzer{text: twoRows}, ann)
	p.Publisher = pub

	result, err := p.Run(context.Background(), "missing.mp4", "out.mp4")
	assert.ErrorIs(t, err, annotator.ErrOpenInput)
	assert.True(t, ann.closed)
	assert.Empty(t, result.VideoPath)
	assert.Len(t, pub.keys, 1)
}

func TestRunPublishFailureIsNotFatal(t *testing.T) {
	p, _ := newPipeline(t, &fakeAnalyzer{text: twoRows}, &fakeAnnotator{})
	p.Publisher = &fakePublisher{err: errors.New("connection refused")}

	result, err := p.Run(context.Background(), "in.mp4", "out.mp4")
	require.NoError(t, err)
	assert.Empty(t, result.Published)
}

func TestAnnotateFromReport(t *testing.T) {
	ann := &fakeAnnotator{}
	p, reportPath := newPipeline(t, &fakeAnalyzer{err: errors.New("must not be called")}, ann)

	want := []models.Violation{{Name: "Stray Animals on Road", Subject: "Stray dog", StartTime: 4, EndTime: 6, Description: "Dog crosses."}}
	require.NoError(t, storage.SaveViolations(context.Background(), storage.NewJSONStorage(reportPath), want))

	result, err := p.Annotate(context.Background(), reportPath, "in.mp4", "out.mp4")
	require.NoError(t, err)
	assert.Equal(t, want, ann.violations)
	assert.Equal(t, "out.mp4", result.VideoPath)
}

func TestAnnotateFromMissingReport(t *testing.T) {
	ann := &fakeAnnotator{}
	p, _ := newPipeline(t, &fakeAnalyzer{}, ann)

	_, err := p.Annotate(context.Background(), filepath.Join(t.TempDir(), "nope.json"), "in.mp4", "out.mp4")
	assert.Error(t, err)
	assert.Zero(t, ann.calls)
}
