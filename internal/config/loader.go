package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":      {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "openai-native"},
	"stt":      {"deepgram", "whisper", "whisper-native", "openai"},
	"diarizer": {"pyannote"},
	"aligner":  {"whisperx", "words"},
}

// Defaults applied by [LoadFromReader] before validation.
const (
	DefaultListenAddr        = ":8080"
	DefaultTimeout           = 5 * time.Minute
	DefaultTargetLanguage    = "zh-TW"
	DefaultScript            = "traditional"
	DefaultMaxConcurrentRuns = 4
	DefaultWebSocketPath     = "/ws"
	DefaultMCPPath           = "/mcp"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults and validates
// the result. An empty document is a valid all-defaults config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields that have a sensible default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Pipeline.Timeout == 0 {
		cfg.Pipeline.Timeout = DefaultTimeout
	}
	if cfg.Pipeline.TargetLanguage == "" {
		cfg.Pipeline.TargetLanguage = DefaultTargetLanguage
	}
	if cfg.Pipeline.Script == "" {
		cfg.Pipeline.Script = DefaultScript
	}
	if cfg.Pipeline.MaxConcurrentRuns == 0 {
		cfg.Pipeline.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = HistoryMemory
	}
	if cfg.Transports.WebSocket.Path == "" {
		cfg.Transports.WebSocket.Path = DefaultWebSocketPath
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	for name, v := range map[string]int{
		"log_max_size_mb":  cfg.Server.LogMaxSizeMB,
		"log_max_backups":  cfg.Server.LogMaxBackups,
		"log_max_age_days": cfg.Server.LogMaxAgeDays,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("server.%s must not be negative", name))
		}
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.VisionLLM.Name)
	for _, e := range cfg.Providers.LLMFallback {
		validateProviderName("llm", e.Name)
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	for _, e := range cfg.Providers.STTFallback {
		validateProviderName("stt", e.Name)
	}
	validateProviderName("diarizer", cfg.Providers.Diarizer.Name)
	validateProviderName("aligner", cfg.Providers.Aligner.Name)
	for i, e := range cfg.Providers.LLMFallback {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallback[%d].name is required", i))
		}
	}
	for i, e := range cfg.Providers.STTFallback {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallback[%d].name is required", i))
		}
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; note, form and promo flows will fail")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; audio input will fail")
	}

	// Pipeline
	if cfg.Pipeline.Timeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.timeout %s must not be negative", cfg.Pipeline.Timeout))
	}
	if cfg.Pipeline.MaxConcurrentRuns < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_concurrent_runs %d must not be negative", cfg.Pipeline.MaxConcurrentRuns))
	}
	switch cfg.Pipeline.Script {
	case "", "none", "traditional", "simplified":
	default:
		errs = append(errs, fmt.Errorf("pipeline.script %q is invalid; valid values: none, traditional, simplified", cfg.Pipeline.Script))
	}

	// History
	switch {
	case cfg.History.Backend != "" && !cfg.History.Backend.IsValid():
		errs = append(errs, fmt.Errorf("history.backend %q is invalid; valid values: memory, postgres, sqlite", cfg.History.Backend))
	case cfg.History.Backend == HistoryPostgres && cfg.History.PostgresDSN == "":
		errs = append(errs, errors.New("history.postgres_dsn is required when backend is postgres"))
	case cfg.History.Backend == HistorySQLite && cfg.History.SQLitePath == "":
		errs = append(errs, errors.New("history.sqlite_path is required when backend is sqlite"))
	}

	// Forms
	if f := cfg.Forms; f.Enabled() && (f.ClientID == "" || f.ClientSecret == "" || f.RefreshToken == "") {
		errs = append(errs, errors.New("forms requires client_id, client_secret and refresh_token together"))
	}
	if !cfg.Forms.Enabled() {
		slog.Warn("forms credentials not configured; the form flow will reply with an error")
	}

	// HTTP paths
	if cfg.Transports.WebSocket.Enabled && !strings.HasPrefix(cfg.Transports.WebSocket.Path, "/") {
		errs = append(errs, fmt.Errorf("transports.websocket.path %q must start with /", cfg.Transports.WebSocket.Path))
	}
	if cfg.MCP.Enabled && !strings.HasPrefix(cfg.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	// Telemetry
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %.2f is out of range [0, 1]", r))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
