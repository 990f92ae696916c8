// Snowline is a conversational weather assistant for Stevens Pass.
//
// It serves an embedded chat UI over a websocket, answering questions with
// live NOAA forecast data, NWAC avalanche forecasts, expert snow forecasts,
// and WSDOT pass conditions. A cron-style scheduler runs a comprehensive
// snow analysis at fixed hours and posts it to Slack. Configuration is
// loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	snowline serve              Start the chat server and scheduler
//	snowline init [dir]         Initialize a working directory with defaults
//	snowline ask <question>     Ask a single question (for testing)
//	snowline analyze            Run one snow analysis and print it
//	snowline version            Print version and build information
//	snowline -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/tyemill/snowline-agent/internal/agent"
	"github.com/tyemill/snowline-agent/internal/analysis"
	"github.com/tyemill/snowline-agent/internal/buildinfo"
	"github.com/tyemill/snowline-agent/internal/config"
	"github.com/tyemill/snowline-agent/internal/llm"
	"github.com/tyemill/snowline-agent/internal/memory"
	"github.com/tyemill/snowline-agent/internal/noaa"
	"github.com/tyemill/snowline-agent/internal/notify"
	"github.com/tyemill/snowline-agent/internal/nwac"
	"github.com/tyemill/snowline-agent/internal/poobah"
	"github.com/tyemill/snowline-agent/internal/scheduler"
	"github.com/tyemill/snowline-agent/internal/search"
	"github.com/tyemill/snowline-agent/internal/tools"
	"github.com/tyemill/snowline-agent/internal/web"
	"github.com/tyemill/snowline-agent/internal/wsdot"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run], keeping os.Exit and os.Args out of the
// application logic so the lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the snowline command. Arguments are
// parsed by hand; the flag package relies on package-level globals that
// interfere with calling run concurrently from tests, and the argument
// surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: snowline ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "analyze":
		return runAnalyze(ctx, stdout, stderr, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Snowline - Stevens Pass Weather Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: snowline [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the chat server and analysis scheduler")
	fmt.Fprintln(w, "  init [dir]   Initialize a working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  analyze      Run one snow analysis and print it")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/snowline/config.yaml, /etc/snowline/config.yaml")
	return nil
}

// runAsk handles "snowline ask <question>". It boots the full tool registry
// but no store, scheduler, or web server, processes a single question, and
// streams the answer to stdout.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath string, args []string) error {
	logger := newLogger(stderr, slog.LevelWarn, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	model, err := createModelClient(cfg)
	if err != nil {
		return err
	}
	if err := model.Ping(ctx); err != nil {
		return fmt.Errorf("%s provider unreachable: %w", cfg.Provider, err)
	}

	registry := buildRegistry(logger, cfg, model)
	loop := agent.NewLoop(logger, model, registry)

	question := strings.Join(args, " ")
	streamed := false
	result, err := loop.Run(ctx, question, nil, func(token string) {
		streamed = true
		fmt.Fprint(stdout, token)
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if streamed {
		fmt.Fprintln(stdout)
	} else {
		fmt.Fprintln(stdout, result.FinalText)
	}
	return nil
}

// runAnalyze handles "snowline analyze": one full analysis run, printed to
// stdout instead of posted to Slack.
func runAnalyze(ctx context.Context, stdout, stderr io.Writer, configPath string) error {
	logger := newLogger(stderr, slog.LevelInfo, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	model, err := createModelClient(cfg)
	if err != nil {
		return err
	}
	if err := model.Ping(ctx); err != nil {
		return fmt.Errorf("%s provider unreachable: %w", cfg.Provider, err)
	}

	analyzer := analysis.New(logger, model,
		noaa.NewClient(""),
		nwac.New("", model),
		poobah.New(""),
		filepath.Join(cfg.DataDir, "analysis_prompts"),
	)

	text, err := analyzer.Run(ctx)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	fmt.Fprintln(stdout, text)
	return nil
}

// runServe handles "snowline serve", the primary operating mode: loads
// config, opens the conversation store, builds the tool registry, starts
// the analysis scheduler, and serves the chat UI until SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Snowline", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure now that the desired level and format are known. The
	// initial Info-level text logger covers only the startup banner.
	if cfg.LogLevel != "" || cfg.LogFormat != "" {
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			if level, err = config.ParseLogLevel(cfg.LogLevel); err != nil {
				return err
			}
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"provider", cfg.Provider,
	)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// Conversation store. Persists across restarts so a returning browser
	// session can be replayed into the prompt window.
	dbPath := filepath.Join(cfg.DataDir, "snowline.db")
	store, err := memory.NewStore(dbPath, 100)
	if err != nil {
		return fmt.Errorf("open conversation store %s: %w", dbPath, err)
	}
	defer store.Close()
	logger.Info("conversation store opened", "path", dbPath)

	model, err := createModelClient(cfg)
	if err != nil {
		return err
	}
	if err := model.Ping(ctx); err != nil {
		// Startup proceeds anyway; the chat layer re-checks per message
		// and tells the user when the provider is down.
		logger.Warn("model provider unreachable at startup", "provider", cfg.Provider, "error", err)
	}

	registry := buildRegistry(logger, cfg, model)
	logger.Info("tools registered", "tools", registry.Names())

	// Scheduled analysis. Failures are logged and the cadence continues;
	// Slack delivery is skipped entirely when no bot token is configured.
	if cfg.Schedule.Enabled {
		analyzer := analysis.New(logger, model,
			noaa.NewClient(""),
			nwac.New("", model),
			poobah.New(""),
			filepath.Join(cfg.DataDir, "analysis_prompts"),
		)

		var deliver scheduler.DeliverFunc
		if notifier := notify.NewFromToken(logger, cfg.Slack.BotToken, cfg.Slack.Channel); notifier != nil {
			deliver = notifier.PostAnalysis
			logger.Info("Slack delivery configured", "channel", cfg.Slack.Channel)
		} else {
			logger.Warn("Slack not configured - scheduled analyses will only be logged")
		}

		sched, err := scheduler.New(logger, cfg.Schedule.Cron, analyzer.Run, deliver)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		defer sched.Stop()
	} else {
		logger.Info("analysis scheduler disabled")
	}

	chat := web.NewServer(web.Options{
		Logger:   logger,
		Loop:     agent.NewLoop(logger, model, registry),
		Gateway:  model,
		Registry: registry,
		Store:    store,
		Dedup:    notify.NewDedup(512),
		Provider: cfg.Provider,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           chat.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("chat server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Snowline stopped")
	return nil
}

// buildRegistry wires every agent capability. Registration order is the
// order capabilities appear in the prompt preamble.
func buildRegistry(logger *slog.Logger, cfg *config.Config, model llm.Client) *tools.Registry {
	noaaClient := noaa.NewClient("")
	forecaster := nwac.New("", model)
	scraper := poobah.New("")

	mgr := search.NewManager("duckduckgo")
	mgr.Register(search.NewDuckDuckGo(""))

	// The comprehensive report embeds the avalanche forecast for the
	// default zone so one tool call covers a "should I go" question.
	avalanche := func(ctx context.Context) (string, error) {
		return forecaster.Forecast(ctx, nwac.DefaultZone), nil
	}

	analyzer := analysis.New(logger, model, noaaClient, forecaster, scraper,
		filepath.Join(cfg.DataDir, "analysis_prompts"))

	registry := tools.NewRegistry()
	registry.Register(search.Tool(mgr))
	registry.Register(nwac.Tool(forecaster))
	registry.Register(noaa.AFDTool(noaaClient))
	registry.Register(poobah.Tool(scraper))
	registry.Register(noaa.ComprehensiveTool(noaaClient, avalanche))
	registry.Register(analysis.Tool(analyzer))
	if cfg.WSDOT.Configured() {
		registry.Register(wsdot.Tool(wsdot.NewClient("", cfg.WSDOT.AccessCode)))
	} else {
		logger.Warn("WSDOT access code not configured - pass conditions tool unavailable")
	}

	return registry
}

// createModelClient builds the LLM gateway for the configured provider.
func createModelClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.Provider {
	case "", "ollama":
		return llm.NewOllamaClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, &llm.OllamaOptions{
			Temperature: cfg.Ollama.Temperature,
			TopP:        cfg.Ollama.TopP,
			TopK:        cfg.Ollama.TopK,
			NumCtx:      cfg.Ollama.NumCtx,
			NumPredict:  cfg.Ollama.NumPredict,
		}), nil
	case "openai":
		if !cfg.OpenAI.Configured() {
			return nil, fmt.Errorf("provider is openai but openai.api_key is not set")
		}
		return llm.NewOpenAIClient("", cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature, cfg.OpenAI.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q (expected ollama or openai)", cfg.Provider)
	}
}

// newLogger creates a structured logger writing to w at the given level
// and format. Format must be "text" or "json"; anything else falls back
// to text. All Snowline log output goes through slog.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty that exact path is used; otherwise [config.FindConfig]
// searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
