// Command clubnote is the entry point for the clubnote chat assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/clubnote/internal/app"
	"github.com/MrWong99/clubnote/internal/config"
	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/resilience"
	"github.com/MrWong99/clubnote/internal/transcript/align"
	"github.com/MrWong99/clubnote/internal/transcript/diarize"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/clubnote/pkg/provider/llm/openai"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
	"github.com/MrWong99/clubnote/pkg/provider/stt/deepgram"
	oastt "github.com/MrWong99/clubnote/pkg/provider/stt/openai"
	"github.com/MrWong99/clubnote/pkg/provider/stt/whisper"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "clubnote: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "clubnote: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger, closeLog := newLogger(cfg.Server, &level)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("clubnote starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.Setup(ctx, observe.TelemetryConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithMetricsHandler(tel.Handler()))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_ *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.TimeoutChanged {
			application.Runner().SetTimeout(d.NewTimeout)
			slog.Info("pipeline timeout changed", "timeout", d.NewTimeout)
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		go watcher.Run(ctx)
		go reloadOnHangup(ctx, watcher)
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// Hosted backends share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if optBool(entry.Options, "diarize") {
			opts = append(opts, deepgram.WithDiarize(true))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		return oastt.New(entry.APIKey, opts...)
	})

	// ── Optional transcript stages ────────────────────────────────────────────

	reg.RegisterDiarizer("pyannote", func(entry config.ProviderEntry) (diarize.Provider, error) {
		var opts []diarize.Option
		if entry.APIKey != "" {
			opts = append(opts, diarize.WithToken(entry.APIKey))
		}
		if lo, hi := optInt(entry.Options, "min_speakers"), optInt(entry.Options, "max_speakers"); lo > 0 || hi > 0 {
			opts = append(opts, diarize.WithSpeakerRange(lo, hi))
		}
		return diarize.NewHTTP(entry.BaseURL, opts...)
	})

	reg.RegisterAligner("whisperx", func(entry config.ProviderEntry) (align.Aligner, error) {
		return align.NewHTTP(entry.BaseURL)
	})

	// words trusts the recogniser's own word timings.
	reg.RegisterAligner("words", func(config.ProviderEntry) (align.Aligner, error) {
		return align.Words{}, nil
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// reloadOnHangup forces a config reload whenever the process gets SIGHUP.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := w.Check(true); err != nil {
				slog.Warn("config reload on SIGHUP failed", "err", err)
			}
		}
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// Fallback entries are chained behind the primary with a circuit breaker each.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	pc := cfg.Providers
	ps := &app.Providers{}
	fbCfg := resilience.FallbackConfig{Metrics: observe.DefaultMetrics()}

	if pc.LLM.Name != "" {
		p, err := reg.CreateLLM(pc.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", pc.LLM.Name, err)
		}
		if len(pc.LLMFallback) > 0 {
			fb := resilience.NewLLMFallback(p, pc.LLM.Name, fbCfg)
			for _, e := range pc.LLMFallback {
				alt, err := reg.CreateLLM(e)
				if err != nil {
					return nil, fmt.Errorf("create llm fallback %q: %w", e.Name, err)
				}
				fb.AddFallback(e.Name, alt)
			}
			p = fb
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", pc.LLM.Name, "fallbacks", len(pc.LLMFallback))
	}

	if pc.VisionLLM.Name != "" {
		p, err := reg.CreateLLM(pc.VisionLLM)
		if err != nil {
			return nil, fmt.Errorf("create vision llm provider %q: %w", pc.VisionLLM.Name, err)
		}
		ps.VisionLLM = p
		slog.Info("provider created", "kind", "vision_llm", "name", pc.VisionLLM.Name)
	}

	if pc.STT.Name != "" {
		t, err := reg.CreateSTT(pc.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", pc.STT.Name, err)
		}
		if len(pc.STTFallback) > 0 {
			fb := resilience.NewSTTFallback(t, pc.STT.Name, fbCfg)
			for _, e := range pc.STTFallback {
				alt, err := reg.CreateSTT(e)
				if err != nil {
					return nil, fmt.Errorf("create stt fallback %q: %w", e.Name, err)
				}
				fb.AddFallback(e.Name, alt)
			}
			t = fb
		}
		ps.STT = t
		slog.Info("provider created", "kind", "stt", "name", pc.STT.Name, "fallbacks", len(pc.STTFallback))
	}

	if pc.Diarizer.Name != "" {
		d, err := reg.CreateDiarizer(pc.Diarizer)
		if err != nil {
			return nil, fmt.Errorf("create diarizer %q: %w", pc.Diarizer.Name, err)
		}
		ps.Diarizer = d
		slog.Info("provider created", "kind", "diarizer", "name", pc.Diarizer.Name)
	}

	if pc.Aligner.Name != "" {
		a, err := reg.CreateAligner(pc.Aligner)
		if err != nil {
			return nil, fmt.Errorf("create aligner %q: %w", pc.Aligner.Name, err)
		}
		ps.Aligner = a
		slog.Info("provider created", "kind", "aligner", "name", pc.Aligner.Name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        clubnote, startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Vision LLM", cfg.Providers.VisionLLM.Name, cfg.Providers.VisionLLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Diarizer", cfg.Providers.Diarizer.Name, "")
	printProvider("Aligner", cfg.Providers.Aligner.Name, "")
	printRow("History", string(cfg.History.Backend))
	printRow("Forms", enabled(cfg.Forms.Enabled()))
	printRow("Discord", enabled(cfg.Transports.Discord.Token != ""))
	printRow("WebSocket", enabled(cfg.Transports.WebSocket.Enabled))
	printRow("MCP", enabled(cfg.MCP.Enabled))
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "(disabled)"
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger writes text logs to stderr and, when log_file is set, to a
// rotated file as well. The returned func closes the file.
func newLogger(sc config.ServerConfig, level *slog.LevelVar) (*slog.Logger, func()) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if sc.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   sc.LogFile,
			MaxSize:    sc.LogMaxSizeMB,
			MaxBackups: sc.LogMaxBackups,
			MaxAge:     sc.LogMaxAgeDays,
			Compress:   sc.LogCompress,
		}
		w = io.MultiWriter(os.Stderr, lj)
		closeFn = func() { _ = lj.Close() }
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

func optBool(opts map[string]any, key string) bool {
	b, _ := opts[key].(bool)
	return b
}

// optInt accepts both YAML ints and floats.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
