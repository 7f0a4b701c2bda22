package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"log/slog"

	"github.com/lmittmann/tint"

	"github.com/bdougie/trafficwatch/internal/config"
)

const usage = `Usage: trafficwatch [flags]

  --config path      YAML config file (default config.yaml, or $CONFIG_PATH)
  --video path       input video
  --output path      annotated output video
  --json path        JSON report
  --provider name    gemini, openai or ollama
  --from-report path annotate from an existing JSON report, skipping analysis
  --search query     search stored violations by similarity (needs postgres)
  --limit n          number of search results (default 5)
  --debug            verbose logging`

type options struct {
	configPath string
	video      string
	output     string
	json       string
	provider   string
	fromReport string
	search     string
	limit      int
	debug      bool
}

func parseArgs(args []string) (options, error) {
	opts := options{configPath: "config.yaml", limit: 5}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		opts.configPath = v
	}

	value := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s needs a value", args[i])
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		var err error
		switch args[i] {
		case "--config":
			opts.configPath, err = value(i)
			i++
		case "--video":
			opts.video, err = value(i)
			i++
		case "--output":
			opts.output, err = value(i)
			i++
		case "--json":
			opts.json, err = value(i)
			i++
		case "--provider":
			opts.provider, err = value(i)
			i++
		case "--from-report":
			opts.fromReport, err = value(i)
			i++
		case "--search":
			opts.search, err = value(i)
			i++
		case "--limit":
			var s string
			if s, err = value(i); err == nil {
				opts.limit, err = strconv.Atoi(s)
			}
			i++
		case "--debug":
			opts.debug = true
		case "-h", "--help":
			return opts, errHelp
		default:
			return opts, fmt.Errorf("unknown flag %s", args[i])
		}
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

var errHelp = errors.New("help requested")

// apply lets flags win over the config file
func (o options) apply(cfg *config.Config) {
	if o.video != "" {
		cfg.InputVideo = o.video
	}
	if o.output != "" {
		cfg.OutputVideo = o.output
	}
	if o.json != "" {
		cfg.OutputJSON = o.json
	}
	if o.provider != "" {
		cfg.Provider = o.provider
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		fmt.Println(usage)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)

	if err := config.LoadEnv(".env"); err != nil {
		logger.Warn("ignoring .env", "error", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logger.Error("failed to load config", "path", opts.configPath, "error", err)
		os.Exit(1)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	switch {
	case opts.search != "":
		err = runSearch(ctx, cfg, opts.search, opts.limit, logger)
	case opts.fromReport != "":
		err = runFromReport(ctx, cfg, opts.fromReport, logger)
	default:
		err = runAnalysis(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("trafficwatch failed", "error", err)
		os.Exit(1)
	}
}
