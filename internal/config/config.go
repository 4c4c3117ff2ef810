// Package config provides the configuration schema, loader, and provider
// registry for the clubnote bot.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// HistoryBackend selects the chat-history store.
type HistoryBackend string

const (
	HistoryMemory   HistoryBackend = "memory"
	HistoryPostgres HistoryBackend = "postgres"
	HistorySQLite   HistoryBackend = "sqlite"
)

// IsValid reports whether b is a recognised backend.
func (b HistoryBackend) IsValid() bool {
	switch b {
	case HistoryMemory, HistoryPostgres, HistorySQLite:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	History    HistoryConfig    `yaml:"history"`
	Forms      FormsConfig      `yaml:"forms"`
	Shortener  ShortenerConfig  `yaml:"shortener"`
	Location   LocationConfig   `yaml:"location"`
	Transports TransportsConfig `yaml:"transports"`
	MCP        MCPConfig        `yaml:"mcp"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, receives a copy of every log line and is rotated
	// according to the LogMax* knobs.
	LogFile        string `yaml:"log_file"`
	LogMaxSizeMB   int    `yaml:"log_max_size_mb"`
	LogMaxBackups  int    `yaml:"log_max_backups"`
	LogMaxAgeDays  int    `yaml:"log_max_age_days"`
	LogCompress    bool   `yaml:"log_compress"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation serves each model
// slot. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`

	// VisionLLM is used for requests carrying images. Empty reuses LLM.
	VisionLLM ProviderEntry `yaml:"vision_llm"`

	// LLMFallback lists providers tried in order when LLM fails.
	LLMFallback []ProviderEntry `yaml:"llm_fallback"`

	STT         ProviderEntry   `yaml:"stt"`
	STTFallback []ProviderEntry `yaml:"stt_fallback"`

	// Diarizer and Aligner are optional; empty disables the remote stage.
	Diarizer ProviderEntry `yaml:"diarizer"`
	Aligner  ProviderEntry `yaml:"aligner"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig tunes audio processing.
type PipelineConfig struct {
	// Timeout bounds one run end to end.
	Timeout time.Duration `yaml:"timeout"`

	// Language forces the transcription language. Empty auto-detects.
	Language string `yaml:"language"`

	// TargetLanguage is the presentation language of transcripts.
	TargetLanguage string `yaml:"target_language"`

	// Script is "traditional" or "simplified". Empty disables rewriting.
	Script string `yaml:"script"`

	// ScriptDictionary is an optional OpenCC-format override dictionary.
	ScriptDictionary string `yaml:"script_dictionary"`

	TempDir    string `yaml:"temp_dir"`
	FFmpegPath string `yaml:"ffmpeg_path"`

	// MaxConcurrentRuns caps pipeline runs across all users.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
}

// HistoryConfig selects the chat-history store.
type HistoryConfig struct {
	Backend     HistoryBackend `yaml:"backend"`
	PostgresDSN string         `yaml:"postgres_dsn"`
	SQLitePath  string         `yaml:"sqlite_path"`
}

// FormsConfig holds Google Forms credentials. Leaving all fields empty
// disables the form flow.
type FormsConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	BaseURL      string `yaml:"base_url"`
}

// Enabled reports whether any credential is configured.
func (f FormsConfig) Enabled() bool {
	return f.ClientID != "" || f.ClientSecret != "" || f.RefreshToken != ""
}

// ShortenerConfig configures the reurl client. An empty APIKey disables
// shortening.
type ShortenerConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// LocationConfig configures the campus building table.
type LocationConfig struct {
	// TableFile replaces the built-in campus table.
	TableFile string `yaml:"table_file"`

	// LegacyFallback rewrites leftover CJK runs with the last matched code.
	LegacyFallback bool `yaml:"legacy_fallback"`
}

// TransportsConfig enables chat adapters.
type TransportsConfig struct {
	Discord   DiscordConfig   `yaml:"discord"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// DiscordConfig enables the Discord DM adapter when Token is set.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// WebSocketConfig enables the WebSocket console on the HTTP server.
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MCPConfig exposes the MCP tool server on the HTTP server.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}
