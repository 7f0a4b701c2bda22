package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when the selected provider needs an API key
// and none is configured.
var ErrMissingCredential = errors.New("missing API credential")

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	InputVideo           string        `yaml:"input_video"`
	OutputVideo          string        `yaml:"output_video"`
	OutputJSON           string        `yaml:"output_json"`
	InstantEventDuration int           `yaml:"instant_event_duration"`
	Provider             string        `yaml:"provider"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	WorkDir              string        `yaml:"work_dir"`

	Gemini struct {
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		EmbeddingModel string `yaml:"embedding_model"`
	} `yaml:"gemini"`

	OpenAI struct {
		APIKey        string `yaml:"api_key"`
		BaseURL       string `yaml:"base_url"`
		Model         string `yaml:"model"`
		FrameInterval int    `yaml:"frame_interval"`
	} `yaml:"openai"`

	Ollama struct {
		BaseURL       string `yaml:"base_url"`
		Port          int    `yaml:"port"`
		Model         string `yaml:"model"`
		FrameInterval int    `yaml:"frame_interval"`
	} `yaml:"ollama"`

	Fonts struct {
		Bold        string  `yaml:"bold"`
		BoldSize    float64 `yaml:"bold_size"`
		Regular     string  `yaml:"regular"`
		RegularSize float64 `yaml:"regular_size"`
	} `yaml:"fonts"`

	Video struct {
		Codec string `yaml:"codec"`
		Tag   string `yaml:"tag"`
	} `yaml:"video"`

	Postgres struct {
		Enabled       bool   `yaml:"enabled"`
		Host          string `yaml:"host"`
		Port          string `yaml:"port"`
		User          string `yaml:"user"`
		Password      string `yaml:"password"`
		Name          string `yaml:"name"`
		EmbeddingDims int    `yaml:"embedding_dims"`
	} `yaml:"postgres"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{
		InputVideo:           "traffic_video.mp4",
		OutputVideo:          "annotated_video.mp4",
		OutputJSON:           "analysis_report.json",
		InstantEventDuration: 2,
		Provider:             ProviderGemini,
		PollInterval:         10 * time.Second,
		RequestTimeout:       1000 * time.Second,
	}
	cfg.Gemini.Model = "gemini-2.5-pro"
	cfg.OpenAI.Model = "gpt-4o"
	cfg.OpenAI.FrameInterval = 2
	cfg.Ollama.BaseURL = "http://localhost"
	cfg.Ollama.Port = 11434
	cfg.Ollama.Model = "llama3.2-vision:11b"
	cfg.Ollama.FrameInterval = 2
	cfg.Fonts.Bold = "Inter-Bold.ttf"
	cfg.Fonts.BoldSize = 28
	cfg.Fonts.Regular = "Inter-Regular.ttf"
	cfg.Fonts.RegularSize = 22
	cfg.Video.Codec = "mpeg4"
	cfg.Video.Tag = "mp4v"
	cfg.Postgres.Host = "localhost"
	cfg.Postgres.Port = "5432"
	cfg.Postgres.EmbeddingDims = 768
	return cfg
}

// LoadEnv reads a .env file into the environment if one exists. Variables
// already set are left alone.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" && c.Postgres.Password == "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" && c.Minio.AccessKey == "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" && c.Minio.SecretKey == "" {
		c.Minio.SecretKey = v
	}
}

// Validate checks values that do not depend on the run mode
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.InputVideo == "" || c.OutputVideo == "" || c.OutputJSON == "" {
		return errors.New("input_video, output_video and output_json must be set")
	}
	if c.InstantEventDuration < 0 {
		return fmt.Errorf("instant_event_duration must not be negative, got %d", c.InstantEventDuration)
	}
	if c.Fonts.BoldSize <= 0 || c.Fonts.RegularSize <= 0 {
		return errors.New("font sizes must be positive")
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		return errors.New("minio requires endpoint and bucketName")
	}
	return nil
}

// CheckCredentials reports ErrMissingCredential when analysis with the
// selected provider, or Postgres embeddings, would need a key that is unset.
func (c *Config) CheckCredentials() error {
	switch c.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("%w: set gemini.api_key or GOOGLE_API_KEY", ErrMissingCredential)
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
			return fmt.Errorf("%w: set openai.api_key or OPENAI_API_KEY", ErrMissingCredential)
		}
	}
	if c.Postgres.Enabled && c.Gemini.EmbeddingModel != "" && c.Gemini.APIKey == "" {
		return fmt.Errorf("%w: embeddings need gemini.api_key or GOOGLE_API_KEY", ErrMissingCredential)
	}
	return nil
}
