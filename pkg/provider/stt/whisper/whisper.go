// Package whisper provides whisper.cpp-backed batch transcribers.
//
// [Provider] talks to a running whisper-server binary (POST /inference with
// response_format=verbose_json). [NativeProvider] links whisper.cpp through
// its CGO bindings and runs inference in-process.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithModel("large-v3"))
//	res, err := p.Transcribe(ctx, clip, stt.Options{})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/provider/stt"
	"github.com/MrWong99/clubnote/pkg/types"
)

const defaultTimeout = 5 * time.Minute

var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server.
// When empty the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default language code sent when the caller does not
// force one. Defaults to "auto".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the HTTP client. The default has a 5 minute timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Transcriber backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider for the whisper.cpp HTTP server at serverURL (e.g.
// "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   "auto",
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// verboseResponse is the subset of whisper.cpp's verbose_json we read.
type verboseResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word        string  `json:"word"`
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Probability float64 `json:"probability"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe uploads clip as WAV to /inference and converts the verbose JSON
// response into segments.
func (p *Provider) Transcribe(ctx context.Context, clip *audio.Clip, opts stt.Options) (*stt.Result, error) {
	if stt.Silent(clip) {
		return nil, stt.ErrNoSpeech
	}
	wav, err := clip.WAV()
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}
	fields := map[string]string{
		"response_format": "verbose_json",
		"language":        lang,
		"model":           p.model,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	detected := stt.NormalizeLanguage(vr.Language)
	if detected == "" && lang != "auto" {
		detected = stt.NormalizeLanguage(lang)
	}

	segments := make([]types.Segment, 0, len(vr.Segments))
	for _, s := range vr.Segments {
		seg := types.Segment{Start: seconds(s.Start), End: seconds(s.End), Text: s.Text}
		for _, w := range s.Words {
			seg.Words = append(seg.Words, types.Word{
				Text:        strings.TrimSpace(w.Word),
				Start:       seconds(w.Start),
				End:         seconds(w.End),
				Probability: w.Probability,
			})
		}
		segments = append(segments, seg)
	}
	// Older servers only return the flat text.
	if len(segments) == 0 && strings.TrimSpace(vr.Text) != "" {
		segments = append(segments, types.Segment{End: clip.Duration(), Text: vr.Text})
	}
	return stt.Finalize(segments, detected)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
