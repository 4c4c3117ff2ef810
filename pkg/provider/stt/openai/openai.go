// Package openai provides a batch transcriber for the OpenAI-compatible
// /audio/transcriptions endpoint (OpenAI Whisper, Groq, faster-whisper-server,
// whisperX API wrappers), built on the openai-go SDK.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
	"github.com/MrWong99/clubnote/pkg/types"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/"
	defaultModel   = "whisper-1"
)

var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (including the /v1 suffix).
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") + "/" }
}

// WithModel sets the transcription model. Defaults to "whisper-1".
func WithModel(m string) Option {
	return func(p *Provider) { p.model = m }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider uploads clips to an /audio/transcriptions endpoint through the
// OpenAI SDK.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	client     oai.Client
}

// New creates a Provider. apiKey may be empty for self-hosted servers that do
// not authenticate.
func New(apiKey string, opts ...Option) (*Provider, error) {
	p := &Provider{
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	if p.baseURL == defaultBaseURL && apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty for api.openai.com")
	}
	p.client = oai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(p.httpClient),
	)
	return p, nil
}

// verbose is the verbose_json body. The SDK type only carries the text, so
// segments and words are read from the raw answer.
type verbose struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// Transcribe uploads clip and requests segment and word timestamps.
func (p *Provider) Transcribe(ctx context.Context, clip *audio.Clip, opts stt.Options) (*stt.Result, error) {
	if stt.Silent(clip) {
		return nil, stt.ErrNoSpeech
	}
	wav, err := clip.WAV()
	if err != nil {
		return nil, fmt.Errorf("openai stt: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		File:                   oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model:                  oai.AudioModel(p.model),
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment", "word"},
	}
	if opts.Language != "" {
		params.Language = param.NewOpt(opts.Language)
	}
	tr, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: %s: %w", p.model, err)
	}

	var vt verbose
	if raw := tr.RawJSON(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &vt); err != nil {
			return nil, fmt.Errorf("openai stt: decode response: %w", err)
		}
	}
	if vt.Text == "" {
		vt.Text = tr.Text
	}

	lang := vt.Language
	if lang == "" {
		lang = opts.Language
	}

	segments := make([]types.Segment, 0, len(vt.Segments))
	for _, s := range vt.Segments {
		segments = append(segments, types.Segment{Start: secs(s.Start), End: secs(s.End), Text: s.Text})
	}
	if len(segments) == 0 && strings.TrimSpace(vt.Text) != "" {
		segments = append(segments, types.Segment{End: clip.Duration(), Text: vt.Text})
	}

	// Words come back as one flat list; hand each to the segment containing
	// its midpoint.
	for _, w := range vt.Words {
		start, end := secs(w.Start), secs(w.End)
		mid := start + (end-start)/2
		i := sort.Search(len(segments), func(i int) bool { return segments[i].End > mid })
		if i == len(segments) {
			i = len(segments) - 1
		}
		if i < 0 {
			continue
		}
		segments[i].Words = append(segments[i].Words, types.Word{Text: strings.TrimSpace(w.Word), Start: start, End: end})
	}
	return stt.Finalize(segments, stt.NormalizeLanguage(lang))
}

func secs(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }
