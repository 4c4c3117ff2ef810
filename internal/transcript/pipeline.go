package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/internal/resilience"
	"github.com/MrWong99/clubnote/internal/transcript/align"
	"github.com/MrWong99/clubnote/internal/transcript/diarize"
	"github.com/MrWong99/clubnote/internal/transcript/translate"
	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
	"github.com/MrWong99/clubnote/pkg/types"
)

// Normalizer is a pure per-string script rewrite.
type Normalizer interface {
	Normalize(s string) string
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithAligner sets the alignment strategy. Default: [align.Words].
func WithAligner(a align.Aligner) Option {
	return func(p *Pipeline) { p.aligner = a }
}

// WithDiarizer sets the diarization provider. When nil (the default), every
// segment is attributed to [diarize.DefaultSpeaker].
func WithDiarizer(d diarize.Provider) Option {
	return func(p *Pipeline) { p.diarizer = d }
}

// WithNormalizer sets the script normalizer. When nil (the default), text is
// left as recognised.
func WithNormalizer(n Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

// WithTranslator sets the translator and target language. Without one, the
// transcript stays in its source language.
func WithTranslator(t translate.Translator, target string) Option {
	return func(p *Pipeline) {
		p.translator = t
		p.target = target
	}
}

// WithLanguage forces the recognition language instead of auto-detection.
func WithLanguage(lang string) Option {
	return func(p *Pipeline) { p.language = lang }
}

// WithMetrics records per-stage latency into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRetryDelay sets the pause before the single retry of transcription
// and translation. Default: 500ms.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.retryDelay = d }
}

// Pipeline runs the audio-to-transcript stages. It holds no per-run state and
// is safe for concurrent use.
type Pipeline struct {
	stt        stt.Transcriber
	aligner    align.Aligner
	diarizer   diarize.Provider
	normalizer Normalizer
	translator translate.Translator
	target     string
	language   string
	metrics    *observe.Metrics
	retryDelay time.Duration
}

// New returns a Pipeline around the given transcriber.
func New(t stt.Transcriber, opts ...Option) *Pipeline {
	p := &Pipeline{
		stt:        t,
		aligner:    align.Words{},
		retryDelay: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run transcribes clip and applies every downstream stage.
//
// A silent clip returns an empty (non-nil) transcript together with a
// non-fatal [pipeline.StageError] wrapping [pipeline.ErrTranscription], so
// callers can continue in image-only mode. Any other transcription failure
// is fatal.
func (p *Pipeline) Run(ctx context.Context, clip *audio.Clip) (*Transcript, error) {
	res, err := p.transcribe(ctx, clip)
	if errors.Is(err, stt.ErrNoSpeech) {
		return &Transcript{TargetLanguage: p.target}, pipeline.Degraded(pipeline.StageTranscribe, err)
	}
	if err != nil {
		return nil, pipeline.Fatal(pipeline.StageTranscribe, pipeline.Upstream("stt", err))
	}

	segs := p.align(ctx, clip, res.Segments, res.Language)
	segs = p.diarize(ctx, clip, segs)
	segs = p.normalize(ctx, segs)

	tr := &Transcript{
		Language:       res.Language,
		TargetLanguage: p.target,
		Segments:       segs,
	}
	p.translate(ctx, tr)
	return tr, nil
}

func (p *Pipeline) transcribe(ctx context.Context, clip *audio.Clip) (*stt.Result, error) {
	ctx, end := observe.StartStage(ctx, p.metrics, observe.StageTranscribe)
	if stt.Silent(clip) {
		end(nil, "silent")
		return nil, stt.ErrNoSpeech
	}
	res, err := resilience.RetryOnce(ctx, "stt", p.retryDelay, retryable,
		func(ctx context.Context) (*stt.Result, error) {
			return p.stt.Transcribe(ctx, clip, stt.Options{Language: p.language})
		})
	if err == nil && (res == nil || len(res.Segments) == 0) {
		err = stt.ErrNoSpeech
	}
	if errors.Is(err, stt.ErrNoSpeech) {
		end(nil, "silent")
		return nil, err
	}
	end(err, "")
	if err != nil {
		return nil, fmt.Errorf("transcript: transcribe: %w", err)
	}
	observe.Logger(ctx).Debug("transcribed",
		"language", res.Language, "segments", len(res.Segments), "duration", clip.Duration())
	return res, nil
}

// align never fails the run; the coarse boundaries are kept on any error.
func (p *Pipeline) align(ctx context.Context, clip *audio.Clip, segs []types.Segment, lang string) []types.Segment {
	ctx, end := observe.StartStage(ctx, p.metrics, observe.StageAlign)
	if p.aligner == nil || !p.aligner.Supports(lang) {
		end(nil, "skipped")
		return align.Monotonic(segs)
	}
	aligned, err := p.aligner.Align(ctx, clip, segs, lang)
	if err != nil {
		observe.Logger(ctx).Warn("alignment failed, keeping coarse timestamps", "language", lang, "error", err)
		end(err, "degraded")
		return align.Monotonic(segs)
	}
	end(nil, "")
	return align.Monotonic(aligned)
}

func (p *Pipeline) diarize(ctx context.Context, clip *audio.Clip, segs []types.Segment) []types.Segment {
	ctx, end := observe.StartStage(ctx, p.metrics, observe.StageDiarize)
	if diarize.Labelled(segs) {
		end(nil, "skipped")
		return diarize.Relabel(segs)
	}
	if p.diarizer == nil {
		end(nil, "skipped")
		return diarize.Single(segs)
	}
	turns, err := p.diarizer.Diarize(ctx, clip)
	if err != nil {
		observe.Logger(ctx).Warn("diarization failed, using a single speaker", "error", err)
		end(err, "degraded")
		return diarize.Single(segs)
	}
	end(nil, "")
	return diarize.Relabel(diarize.Assign(segs, turns))
}

func (p *Pipeline) normalize(ctx context.Context, segs []types.Segment) []types.Segment {
	if p.normalizer == nil {
		return segs
	}
	_, end := observe.StartStage(ctx, p.metrics, observe.StageNormalize)
	out := make([]types.Segment, len(segs))
	for i, s := range segs {
		s.Text = p.normalizer.Normalize(s.Text)
		out[i] = s
	}
	end(nil, "")
	return out
}

// translate retries once and then passes the source text through with
// TranslationSkipped set.
func (p *Pipeline) translate(ctx context.Context, tr *Transcript) {
	if p.translator == nil || p.target == "" {
		return
	}
	ctx, end := observe.StartStage(ctx, p.metrics, observe.StageTranslate)
	if translate.SameLanguage(tr.Language, p.target) {
		end(nil, "skipped")
		return
	}
	segs, err := resilience.RetryOnce(ctx, "translate", p.retryDelay, retryable,
		func(ctx context.Context) ([]types.Segment, error) {
			return p.translator.Translate(ctx, tr.Segments, tr.Language, p.target)
		})
	if err != nil {
		observe.Logger(ctx).Warn("translation skipped", "from", tr.Language, "to", p.target, "error", err)
		tr.TranslationSkipped = true
		end(err, "degraded")
		return
	}
	tr.Segments = p.normalize(ctx, segs)
	end(nil, "")
}

// retryable excludes cancellation and answers that will not change on retry.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, stt.ErrNoSpeech)
}
