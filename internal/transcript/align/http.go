package align

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

// DefaultLanguages are the languages with a stock wav2vec2 alignment model in
// WhisperX.
var DefaultLanguages = []string{
	"en", "fr", "de", "es", "it", "ja", "zh", "nl", "uk", "pt",
	"ar", "cs", "ru", "pl", "hu", "fi", "fa", "el", "tr", "da",
	"he", "vi", "ko", "ur", "te", "hi", "ca", "ml", "no", "nn",
}

// HTTP is a forced-alignment client for a WhisperX-style service. It posts
// the clip as WAV together with the coarse segments to {baseURL}/align.
type HTTP struct {
	baseURL   string
	client    *http.Client
	languages []string
}

var _ Aligner = (*HTTP)(nil)

// HTTPOption configures an [HTTP] aligner.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithLanguages restricts the supported languages.
func WithLanguages(langs ...string) HTTPOption {
	return func(h *HTTP) { h.languages = langs }
}

// NewHTTP returns an aligner talking to baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTP, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("align: base URL must not be empty")
	}
	h := &HTTP{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 5 * time.Minute},
		languages: DefaultLanguages,
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Supports reports whether lang has an alignment model.
func (h *HTTP) Supports(lang string) bool {
	return slices.Contains(h.languages, lang)
}

type wireWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score,omitempty"`
}

type wireSegment struct {
	Start float64    `json:"start"`
	End   float64    `json:"end"`
	Text  string     `json:"text"`
	Words []wireWord `json:"words,omitempty"`
}

// Align sends the clip and segments and returns the service's refinement.
// The response must contain exactly one segment per input segment.
func (h *HTTP) Align(ctx context.Context, clip *audio.Clip, segments []types.Segment, lang string) ([]types.Segment, error) {
	wav, err := clip.WAV()
	if err != nil {
		return nil, fmt.Errorf("align: encode clip: %w", err)
	}
	in := make([]wireSegment, len(segments))
	for i, s := range segments {
		in[i] = wireSegment{Start: s.Start.Seconds(), End: s.End.Seconds(), Text: s.Text}
	}
	segJSON, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("align: marshal segments: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "clip.wav")
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	_ = mw.WriteField("language", lang)
	_ = mw.WriteField("segments", string(segJSON))
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/align", &body)
	if err != nil {
		return nil, fmt.Errorf("align: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("align: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("align: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Segments []wireSegment `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("align: decode response: %w", err)
	}
	if len(out.Segments) != len(segments) {
		return nil, fmt.Errorf("align: got %d segments, sent %d", len(out.Segments), len(segments))
	}

	aligned := make([]types.Segment, len(segments))
	for i, ws := range out.Segments {
		s := segments[i]
		s.Start = seconds(ws.Start)
		s.End = seconds(ws.End)
		if len(ws.Words) > 0 {
			s.Words = make([]types.Word, len(ws.Words))
			for j, w := range ws.Words {
				s.Words[j] = types.Word{
					Text:        w.Word,
					Start:       seconds(w.Start),
					End:         seconds(w.End),
					Probability: w.Score,
				}
			}
		}
		aligned[i] = s
	}
	return aligned, nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
