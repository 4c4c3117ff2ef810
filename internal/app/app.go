// Package app wires all clubnote subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds every subsystem from
// the config, Run serves HTTP and the chat transports, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithHistory,
// WithPublisher, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/clubnote/internal/calendar"
	"github.com/MrWong99/clubnote/internal/config"
	"github.com/MrWong99/clubnote/internal/discord"
	"github.com/MrWong99/clubnote/internal/extract"
	"github.com/MrWong99/clubnote/internal/forms"
	"github.com/MrWong99/clubnote/internal/health"
	"github.com/MrWong99/clubnote/internal/history"
	"github.com/MrWong99/clubnote/internal/history/postgres"
	"github.com/MrWong99/clubnote/internal/history/sqlite"
	"github.com/MrWong99/clubnote/internal/location"
	"github.com/MrWong99/clubnote/internal/mcp"
	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/promo"
	"github.com/MrWong99/clubnote/internal/session"
	"github.com/MrWong99/clubnote/internal/shorten"
	"github.com/MrWong99/clubnote/internal/transcript"
	"github.com/MrWong99/clubnote/internal/transcript/align"
	"github.com/MrWong99/clubnote/internal/transcript/diarize"
	"github.com/MrWong99/clubnote/internal/transcript/script"
	"github.com/MrWong99/clubnote/internal/transcript/translate"
	"github.com/MrWong99/clubnote/internal/wsconsole"
	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
)

// shutdownGrace bounds the HTTP server drain once Run's context ends.
const shutdownGrace = 10 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM       llm.Provider
	VisionLLM llm.Provider
	STT       stt.Transcriber
	Diarizer  diarize.Provider
	Aligner   align.Aligner
}

// Service is a long-running component started by [App.Run], such as a chat
// transport. Run blocks until ctx is cancelled.
type Service interface {
	Run(ctx context.Context) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	scrape    http.Handler

	history    history.Store
	sessions   *session.Store
	locations  *location.Normalizer
	publisher  Publisher
	shortener  shorten.Shortener
	runner     *Runner
	dispatcher *Dispatcher
	linker     *calendar.Linker

	mux      *http.ServeMux
	server   *http.Server
	services []Service

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistory injects a chat-history store instead of creating one from config.
func WithHistory(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithPublisher injects a forms publisher. It takes precedence over the
// forms credentials in the config.
func WithPublisher(p Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithShortener injects a URL shortener.
func WithShortener(s shorten.Shortener) Option {
	return func(a *App) { a.shortener = s }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler replaces the /metrics handler, normally with
// [observe.Telemetry.Handler]. Default: [observe.DefaultHandler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// WithService adds a service to run alongside the HTTP server.
func WithService(s Service) Option {
	return func(a *App) { a.services = append(a.services, s) }
}

// New creates an App from cfg and providers. It opens the history store and
// builds the pipeline, the chat dispatcher and the HTTP surface. Nothing
// listens until [App.Run].
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		sessions:  session.NewStore(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}
	if err := a.initLocations(); err != nil {
		return nil, fmt.Errorf("app: init locations: %w", err)
	}
	if err := a.initRunner(ctx); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	var dopts []DispatcherOption
	dopts = append(dopts, WithDispatcherMetrics(a.metrics))
	if providers.LLM != nil {
		dopts = append(dopts, WithPromo(promo.NewGenerator(providers.LLM, a.locations)))
	}
	a.dispatcher = NewDispatcher(a.sessions, a.history, a.runner, dopts...)

	if a.extractorLLM() != nil {
		a.linker = calendar.NewLinker(extract.New(a.extractorLLM(), extract.WithMetrics(a.metrics)))
	}

	if tok := cfg.Transports.Discord.Token; tok != "" {
		a.services = append(a.services, discord.New(tok, a.dispatcher))
	}

	a.initHTTP()
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil {
		return nil
	}
	switch a.cfg.History.Backend {
	case config.HistoryPostgres:
		s, err := postgres.New(ctx, a.cfg.History.PostgresDSN)
		if err != nil {
			return err
		}
		a.history = s
		a.closers = append(a.closers, func() error {
			s.Close()
			return nil
		})
	case config.HistorySQLite:
		s, err := sqlite.Open(ctx, a.cfg.History.SQLitePath)
		if err != nil {
			return err
		}
		a.history = s
		a.closers = append(a.closers, s.Close)
	default:
		a.history = history.NewMemStore()
	}
	slog.Info("history store ready", "backend", a.cfg.History.Backend)
	return nil
}

func (a *App) initLocations() error {
	table := location.DefaultTable()
	if path := a.cfg.Location.TableFile; path != "" {
		t, err := location.LoadTableFile(path)
		if err != nil {
			return err
		}
		table = t
	}
	a.locations = location.New(table,
		location.WithLegacyFallback(a.cfg.Location.LegacyFallback),
		location.WithMatcher(location.NewMatcher()),
	)
	return nil
}

func (a *App) initRunner(ctx context.Context) error {
	pc := a.cfg.Pipeline
	p := a.providers

	var topts []transcript.Option
	topts = append(topts, transcript.WithMetrics(a.metrics))
	if pc.Language != "" {
		topts = append(topts, transcript.WithLanguage(pc.Language))
	}
	if p.Aligner != nil {
		topts = append(topts, transcript.WithAligner(p.Aligner))
	}
	if p.Diarizer != nil {
		topts = append(topts, transcript.WithDiarizer(p.Diarizer))
	}
	if target := scriptTarget(pc.Script); target != script.None || pc.ScriptDictionary != "" {
		n, err := newScriptNormalizer(target, pc.ScriptDictionary)
		if err != nil {
			return err
		}
		topts = append(topts, transcript.WithNormalizer(n))
	}
	if p.LLM != nil && pc.TargetLanguage != "" {
		topts = append(topts, transcript.WithTranslator(translate.NewLLM(p.LLM), pc.TargetLanguage))
	}

	rc := RunnerConfig{
		Decoder:   audio.NewDecoder(audio.WithFFmpegPath(pc.FFmpegPath), audio.WithTempDir(pc.TempDir)),
		Shortener: a.shortener,
		Publisher: a.publisher,
		Timeout:   pc.Timeout,
		MaxRuns:   pc.MaxConcurrentRuns,
		Metrics:   a.metrics,
	}
	if p.STT != nil {
		rc.Transcripts = transcript.New(p.STT, topts...)
	}
	if l := a.extractorLLM(); l != nil {
		rc.Extractor = extract.New(l, extract.WithMetrics(a.metrics))
	}
	if rc.Publisher == nil && a.cfg.Forms.Enabled() {
		f := a.cfg.Forms
		var fopts []forms.Option
		if f.BaseURL != "" {
			fopts = append(fopts, forms.WithBaseURL(f.BaseURL))
		}
		pub, err := forms.NewPublisher(ctx, forms.RefreshTokenSource(ctx, f.ClientID, f.ClientSecret, f.RefreshToken), fopts...)
		if err != nil {
			return err
		}
		rc.Publisher = pub
	}
	if rc.Shortener == nil && a.cfg.Shortener.APIKey != "" {
		var sopts []shorten.Option
		if u := a.cfg.Shortener.BaseURL; u != "" {
			sopts = append(sopts, shorten.WithBaseURL(u))
		}
		rc.Shortener = shorten.NewReurl(a.cfg.Shortener.APIKey, sopts...)
	}
	a.runner = NewRunner(rc)
	return nil
}

// extractorLLM prefers the vision model so note images are understood.
func (a *App) extractorLLM() llm.Provider {
	if a.providers.VisionLLM != nil {
		return a.providers.VisionLLM
	}
	return a.providers.LLM
}

func (a *App) initHTTP() {
	mux := http.NewServeMux()

	var checks []health.Checker
	if p, ok := a.history.(health.Pinger); ok {
		checks = append(checks, health.Ping("history", p))
	}
	for name, p := range map[string]any{"llm": a.providers.LLM, "stt": a.providers.STT} {
		if b, ok := p.(BreakerReporter); ok {
			checks = append(checks, BreakerCheck(name, b))
		}
	}
	health.New(checks...).Register(mux)
	if a.scrape == nil {
		a.scrape = observe.DefaultHandler()
	}
	mux.Handle("GET /metrics", a.scrape)

	if a.linker != nil {
		mux.Handle("GET /calendar", CalendarHandler(a.linker))
	}
	if ws := a.cfg.Transports.WebSocket; ws.Enabled {
		mux.Handle(ws.Path, wsconsole.New(a.dispatcher))
	}
	if a.cfg.MCP.Enabled {
		var linker mcp.Linker
		if a.linker != nil {
			linker = a.linker
		}
		mux.Handle(a.cfg.MCP.Path, mcp.Handler(mcp.NewServer(a.locations, linker)))
	}

	a.mux = mux
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func scriptTarget(s string) script.Script {
	if s == "none" {
		return script.None
	}
	return script.Script(s)
}

func newScriptNormalizer(target script.Script, dict string) (*script.Normalizer, error) {
	if dict != "" {
		return script.NewFromFile(target, dict)
	}
	return script.New(target)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler including middleware.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Dispatcher returns the chat event handler shared by every transport.
func (a *App) Dispatcher() *Dispatcher { return a.dispatcher }

// Runner returns the pipeline runner, e.g. to adjust its timeout on reload.
func (a *App) Runner() *Runner { return a.runner }

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Run serves HTTP and starts every service. It blocks until ctx is cancelled
// or a component fails, then drains the HTTP server. A clean shutdown
// returns nil.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		return a.server.Shutdown(sctx)
	})
	for _, s := range a.services {
		g.Go(func() error { return s.Run(gctx) })
	}

	slog.Info("app running", "services", len(a.services))
	return g.Wait()
}

// Shutdown releases subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
