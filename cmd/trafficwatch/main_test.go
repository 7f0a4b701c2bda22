package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/trafficwatch/internal/config"
)

func TestParseArgs(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	opts, err := parseArgs([]string{"--video", "in.mp4", "--provider", "ollama", "--limit", "3", "--debug"})
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", opts.configPath)
	assert.Equal(t, "in.mp4", opts.video)
	assert.Equal(t, "ollama", opts.provider)
	assert.Equal(t, 3, opts.limit)
	assert.True(t, opts.debug)
}

func TestParseArgsErrors(t *testing.T) {
	_, err := parseArgs([]string{"--video"})
	assert.Error(t, err)

	_, err = parseArgs([]string{"--bogus"})
	assert.Error(t, err)

	_, err = parseArgs([]string{"--limit", "many"})
	assert.Error(t, err)

	_, err = parseArgs([]string{"--help"})
	assert.ErrorIs(t, err, errHelp)
}

func TestParseArgsConfigFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/trafficwatch.yaml")
	opts, err := parseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/trafficwatch.yaml", opts.configPath)
}

func TestOptionsApply(t *testing.T) {
	cfg := config.Default()
	options{output: "out.mp4", json: "out.json"}.apply(cfg)
	assert.Equal(t, "traffic_video.mp4", cfg.InputVideo)
	assert.Equal(t, "out.mp4", cfg.OutputVideo)
	assert.Equal(t, "out.json", cfg.OutputJSON)
	assert.Equal(t, config.ProviderGemini, cfg.Provider)
}
