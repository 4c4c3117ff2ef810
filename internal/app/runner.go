package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/clubnote/internal/extract"
	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/internal/session"
	"github.com/MrWong99/clubnote/internal/shorten"
	"github.com/MrWong99/clubnote/internal/transcript"
	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

var (
	// ErrFormsDisabled is returned by [Runner.Form] when no publisher is configured.
	ErrFormsDisabled = errors.New("app: forms publisher not configured")

	// ErrNotConfigured is returned when a run needs a provider that is not
	// configured (no STT for audio, no LLM for extraction).
	ErrNotConfigured = errors.New("app: provider not configured")
)

const (
	flowNote  = "note"
	flowForm  = "form"
	flowPromo = "promo"
)

// Decoder normalizes an uploaded recording.
type Decoder interface {
	Decode(ctx context.Context, data []byte, declared audio.Container) (*audio.Clip, error)
}

// Transcriber turns a decoded clip into a transcript.
type Transcriber interface {
	Run(ctx context.Context, clip *audio.Clip) (*transcript.Transcript, error)
}

// Extractor produces the structured artifacts.
type Extractor interface {
	Summarize(ctx context.Context, transcript string, img *types.Image) (*extract.NoteSummary, error)
	ExtractForm(ctx context.Context, transcript string) (*extract.FormSpec, error)
}

// Publisher creates a form upstream and returns its responder URL.
type Publisher interface {
	Publish(ctx context.Context, spec *extract.FormSpec) (string, error)
}

// RunnerConfig holds the collaborators of a [Runner]. Publisher may be nil,
// which disables the form flow.
type RunnerConfig struct {
	Decoder     Decoder
	Transcripts Transcriber
	Extractor   Extractor
	Publisher   Publisher
	Shortener   shorten.Shortener

	// Timeout bounds a run end to end, including the wait for a slot.
	Timeout time.Duration

	// MaxRuns caps concurrent runs across all users. Zero means one.
	MaxRuns int

	Metrics *observe.Metrics
}

// Runner executes the audio-to-knowledge flows. Every run owns its decoded
// clip and releases it on every exit path.
type Runner struct {
	decoder     Decoder
	transcripts Transcriber
	extractor   Extractor
	publisher   Publisher
	shortener   shorten.Shortener
	sem         *semaphore.Weighted
	metrics     *observe.Metrics
	timeout     atomic.Int64
}

// NewRunner returns a Runner for cfg.
func NewRunner(cfg RunnerConfig) *Runner {
	maxRuns := max(cfg.MaxRuns, 1)
	r := &Runner{
		decoder:     cfg.Decoder,
		transcripts: cfg.Transcripts,
		extractor:   cfg.Extractor,
		publisher:   cfg.Publisher,
		shortener:   cfg.Shortener,
		sem:         semaphore.NewWeighted(int64(maxRuns)),
		metrics:     cfg.Metrics,
	}
	if r.shortener == nil {
		r.shortener = shorten.Noop{}
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	r.SetTimeout(cfg.Timeout)
	return r
}

// SetTimeout changes the deadline applied to runs started afterwards.
// Zero or negative disables it.
func (r *Runner) SetTimeout(d time.Duration) { r.timeout.Store(int64(d)) }

// Timeout returns the current run deadline.
func (r *Runner) Timeout() time.Duration { return time.Duration(r.timeout.Load()) }

// Note summarizes a recording and/or an image. Silent audio falls back to
// the image when there is one; otherwise the transcription error is
// returned.
func (r *Runner) Note(ctx context.Context, user string, a *session.Audio, img *types.Image) (_ string, err error) {
	ctx, finish, err := r.begin(ctx, user, flowNote)
	if err != nil {
		return "", err
	}
	defer func() { err = finish(err) }()

	var text string
	if a != nil {
		tr, err := r.transcribe(ctx, a)
		switch {
		case err != nil && (pipeline.IsFatal(err) || img == nil):
			return "", err
		case err != nil:
			observe.Logger(ctx).Info("no speech in recording, summarizing image only", "err", err)
		default:
			text = tr.Render()
		}
	}
	if strings.TrimSpace(text) == "" && img == nil {
		return "", pipeline.Degraded(pipeline.StageTranscribe, pipeline.ErrTranscription)
	}

	if r.extractor == nil {
		return "", pipeline.Fatal(pipeline.StageExtract, ErrNotConfigured)
	}
	summary, err := r.extractor.Summarize(ctx, text, img)
	if err != nil {
		return "", err
	}
	return summary.Markdown, nil
}

// Form builds a questionnaire from a recording, publishes it and returns
// the shortened responder link. Nothing is published unless the extracted
// spec is valid.
func (r *Runner) Form(ctx context.Context, user string, a *session.Audio) (_ string, err error) {
	if r.publisher == nil {
		return "", ErrFormsDisabled
	}
	ctx, finish, err := r.begin(ctx, user, flowForm)
	if err != nil {
		return "", err
	}
	defer func() { err = finish(err) }()

	tr, err := r.transcribe(ctx, a)
	if err != nil {
		return "", err
	}
	text := tr.Render()
	if strings.TrimSpace(text) == "" {
		return "", pipeline.Degraded(pipeline.StageTranscribe, pipeline.ErrTranscription)
	}

	if r.extractor == nil {
		return "", pipeline.Fatal(pipeline.StageExtract, ErrNotConfigured)
	}
	spec, err := r.extractor.ExtractForm(ctx, text)
	if err != nil {
		return "", err
	}
	link, err := r.publisher.Publish(ctx, spec)
	if err != nil {
		return "", err
	}
	return r.shortener.Shorten(ctx, link), nil
}

// begin applies the deadline, waits for a run slot and opens the run span.
// The returned finish func must be called exactly once with the run result.
func (r *Runner) begin(ctx context.Context, user, flow string) (context.Context, func(error) error, error) {
	ctx = observe.WithRunID(ctx, uuid.NewString())
	cancel := context.CancelFunc(func() {})
	if d := r.Timeout(); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		err = timedOut(ctx, err)
		r.metrics.RecordRun(ctx, flow, observe.Outcome(err))
		cancel()
		return nil, nil, err
	}

	ctx, span := observe.StartSpan(ctx, "run."+flow, trace.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("user", user),
	))
	r.metrics.ActiveRuns.Add(ctx, 1)
	log := observe.Logger(ctx).With("user", user, "flow", flow)
	log.Info("pipeline run started")
	start := time.Now()

	return ctx, func(err error) error {
		err = timedOut(ctx, err)
		outcome := observe.Outcome(err)
		if err != nil {
			span.RecordError(err)
			log.Warn("pipeline run failed", "err", err, "duration", time.Since(start))
		} else {
			log.Info("pipeline run finished", "duration", time.Since(start))
		}
		span.End()
		r.metrics.ActiveRuns.Add(ctx, -1)
		r.metrics.RecordRun(ctx, flow, outcome)
		r.sem.Release(1)
		cancel()
		return err
	}, nil
}

func (r *Runner) transcribe(ctx context.Context, a *session.Audio) (*transcript.Transcript, error) {
	if r.transcripts == nil {
		return nil, pipeline.Fatal(pipeline.StageTranscribe, ErrNotConfigured)
	}
	sctx, end := observe.StartStage(ctx, r.metrics, pipeline.StageDecode)
	clip, err := r.decoder.Decode(sctx, a.Data, a.Declared)
	if err != nil {
		err = pipeline.Fatal(pipeline.StageDecode, err)
		end(err, "")
		return nil, err
	}
	end(nil, "")
	defer func() {
		if cerr := clip.Close(); cerr != nil {
			observe.Logger(ctx).Warn("failed to release decoded audio", "err", cerr)
		}
	}()
	return r.transcripts.Run(ctx, clip)
}

// timedOut tags err with [pipeline.ErrTimeout] when ctx hit its deadline.
func timedOut(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, pipeline.ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", pipeline.ErrTimeout, err)
	}
	return err
}
