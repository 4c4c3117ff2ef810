package app_test

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/clubnote/internal/app"
	"github.com/MrWong99/clubnote/internal/extract"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/internal/transcript"
	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	llmmock "github.com/MrWong99/clubnote/pkg/provider/llm/mock"
	"github.com/MrWong99/clubnote/pkg/types"
)

// fakeDecoder returns a short silent clip, or err.
type fakeDecoder struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (d *fakeDecoder) Decode(_ context.Context, _ []byte, declared audio.Container) (*audio.Clip, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return audio.NewClip(make([]int16, 1600), declared), nil
}

// fakeTranscripts returns text as a single segment. Empty text behaves like
// a recording without speech. block makes Run wait for ctx.
type fakeTranscripts struct {
	text  string
	block bool
}

func (f *fakeTranscripts) Run(ctx context.Context, _ *audio.Clip) (*transcript.Transcript, error) {
	if f.block {
		<-ctx.Done()
		return nil, pipeline.Fatal(pipeline.StageTranscribe, ctx.Err())
	}
	if f.text == "" {
		return &transcript.Transcript{}, pipeline.Degraded(pipeline.StageTranscribe, pipeline.ErrTranscription)
	}
	return &transcript.Transcript{Segments: []types.Segment{{Text: f.text}}}, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	specs []*extract.FormSpec
	url   string
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, spec *extract.FormSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.specs = append(p.specs, spec)
	return p.url, p.err
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.specs)
}

type prefixShortener struct{}

func (prefixShortener) Shorten(_ context.Context, long string) string { return "short:" + long }

// echoLLM answers every completion with content.
func echoLLM(content string) *llmmock.Provider {
	return &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: content}}
}

const validFormJSON = `{"title":"社課回饋","documentTitle":"社課回饋",
"questions":[{"index":0,"title":"今天的社課好嗎？","kind":"singleChoice","options":["好","普通","不好"]},
{"index":1,"title":"想學什麼？","kind":"shortAnswer"}]}`

type runnerDeps struct {
	decoder     *fakeDecoder
	transcripts *fakeTranscripts
	llm         *llmmock.Provider
	publisher   *fakePublisher
}

func newRunner(d runnerDeps, mutate ...func(*app.RunnerConfig)) *app.Runner {
	if d.decoder == nil {
		d.decoder = &fakeDecoder{}
	}
	if d.transcripts == nil {
		d.transcripts = &fakeTranscripts{}
	}
	if d.llm == nil {
		d.llm = echoLLM("# 筆記")
	}
	cfg := app.RunnerConfig{
		Decoder:     d.decoder,
		Transcripts: d.transcripts,
		Extractor:   extract.New(d.llm),
		Shortener:   prefixShortener{},
	}
	if d.publisher != nil {
		cfg.Publisher = d.publisher
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return app.NewRunner(cfg)
}

var errBoom = errors.New("boom")
