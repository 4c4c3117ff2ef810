// Package deepgram provides a Deepgram-backed batch transcriber using the
// pre-recorded /v1/listen API. Deepgram diarizes server-side, so segments it
// returns already carry speaker labels.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
	"github.com/MrWong99/clubnote/pkg/types"
)

const (
	defaultEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel    = "nova-2"
)

var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "whisper-large").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithEndpoint overrides the listen endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithDiarize toggles server-side speaker diarization. Enabled by default.
func WithDiarize(on bool) Option {
	return func(p *Provider) { p.diarize = on }
}

// Provider implements stt.Transcriber backed by Deepgram.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	diarize    bool
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   defaultEndpoint,
		diarize:    true,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Provider) buildURL(opts stt.Options) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("punctuate", "true")
	q.Set("utterances", "true")
	q.Set("diarize", strconv.FormatBool(p.diarize))
	if opts.Language != "" {
		q.Set("language", opts.Language)
	} else {
		q.Set("detect_language", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type word struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
			Speaker    *int    `json:"speaker"`
			Words      []word  `json:"words"`
		} `json:"utterances"`
	} `json:"results"`
}

// Transcribe uploads clip and maps Deepgram utterances onto segments.
func (p *Provider) Transcribe(ctx context.Context, clip *audio.Clip, opts stt.Options) (*stt.Result, error) {
	if stt.Silent(clip) {
		return nil, stt.ErrNoSpeech
	}
	endpoint, err := p.buildURL(opts)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}
	wav, err := clip.WAV()
	if err != nil {
		return nil, fmt.Errorf("deepgram: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deepgram: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var lr listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("deepgram: decode response: %w", err)
	}
	return parseResponse(lr, opts.Language)
}

func parseResponse(lr listenResponse, forced string) (*stt.Result, error) {
	lang := forced
	if len(lr.Results.Channels) > 0 && lr.Results.Channels[0].DetectedLanguage != "" {
		lang = lr.Results.Channels[0].DetectedLanguage
	}

	segments := make([]types.Segment, 0, len(lr.Results.Utterances))
	for _, u := range lr.Results.Utterances {
		seg := types.Segment{
			Start: secs(u.Start),
			End:   secs(u.End),
			Text:  u.Transcript,
		}
		if u.Speaker != nil {
			seg.Speaker = fmt.Sprintf("SPEAKER_%02d", *u.Speaker)
		}
		for _, w := range u.Words {
			text := w.PunctuatedWord
			if text == "" {
				text = w.Word
			}
			seg.Words = append(seg.Words, types.Word{
				Text:        text,
				Start:       secs(w.Start),
				End:         secs(w.End),
				Probability: w.Confidence,
			})
		}
		segments = append(segments, seg)
	}
	return stt.Finalize(segments, stt.NormalizeLanguage(lang))
}

func secs(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }
