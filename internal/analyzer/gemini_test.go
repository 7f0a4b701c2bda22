package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeFiles struct {
	uploadCfg *genai.UploadFileConfig
	state     genai.FileState
	deleted   string
}

func (f *fakeFiles) UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error) {
	f.uploadCfg = config
	return &genai.File{
		Name:        "files/xyz",
		DisplayName: config.DisplayName,
		URI:         "https://example.invalid/files/xyz",
		MIMEType:    config.MIMEType,
		State:       genai.FileStateProcessing,
	}, nil
}

func (f *fakeFiles) Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error) {
	return &genai.File{Name: name, State: f.state}, nil
}

func (f *fakeFiles) Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error) {
	f.deleted = name
	return &genai.DeleteFileResponse{}, nil
}

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "| Overspeeding | Red car | 00:02 | Fast. |"}}},
		}},
	}, nil
}

func TestGeminiServiceLifecycle(t *testing.T) {
	files := &fakeFiles{state: genai.FileStateActive}
	models := &fakeModels{}
	svc := &GeminiService{files: files, models: models, model: "gemini-2.5-pro"}
	ctx := context.Background()

	h, err := svc.Upload(ctx, "/videos/traffic_video.mp4")
	require.NoError(t, err)
	assert.Equal(t, "traffic_video.mp4", files.uploadCfg.DisplayName)
	assert.Equal(t, "video/mp4", files.uploadCfg.MIMEType)
	assert.Equal(t, StateProcessing, h.State)

	state, err := svc.Status(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StateReady, state)

	text, err := svc.Generate(ctx, h, "PROMPT")
	require.NoError(t, err)
	assert.Equal(t, "| Overspeeding | Red car | 00:02 | Fast. |", text)
	assert.Equal(t, "gemini-2.5-pro", models.model)
	require.Len(t, models.contents, 1)
	require.Len(t, models.contents[0].Parts, 1)
	require.NotNil(t, models.contents[0].Parts[0].FileData)
	assert.Equal(t, h.URI, models.contents[0].Parts[0].FileData.FileURI)
	require.NotNil(t, models.config.SystemInstruction)
	assert.Equal(t, "PROMPT", models.config.SystemInstruction.Parts[0].Text)

	require.NoError(t, svc.Delete(ctx, h))
	assert.Equal(t, "files/xyz", files.deleted)
}

func TestGeminiServiceGenerateError(t *testing.T) {
	svc := &GeminiService{files: &fakeFiles{}, models: &fakeModels{err: errors.New("quota")}}
	_, err := svc.Generate(context.Background(), Handle{Name: "files/x"}, "p")
	assert.Error(t, err)
}

func TestGeminiState(t *testing.T) {
	assert.Equal(t, StateProcessing, geminiState(genai.FileStateProcessing))
	assert.Equal(t, StateFailed, geminiState(genai.FileStateFailed))
	assert.Equal(t, StateReady, geminiState(genai.FileStateActive))
	assert.Equal(t, StateReady, geminiState(genai.FileStateUnspecified))
}
