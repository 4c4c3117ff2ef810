package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/clubnote/pkg/audio"
)

// HTTP is a client for a pyannote-style diarization service. It posts the
// clip as WAV to {baseURL}/diarize and expects
//
//	{"segments":[{"start":0.0,"end":1.2,"speaker":"SPEAKER_00"}, ...]}
type HTTP struct {
	baseURL     string
	token       string
	client      *http.Client
	minSpeakers int
	maxSpeakers int
}

var _ Provider = (*HTTP)(nil)

// Option configures an [HTTP] diarizer.
type Option func(*HTTP)

// WithToken sets a bearer token, typically a Hugging Face access token.
func WithToken(token string) Option {
	return func(h *HTTP) { h.token = token }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithSpeakerRange hints the expected number of speakers. Zero means unknown.
func WithSpeakerRange(minSpeakers, maxSpeakers int) Option {
	return func(h *HTTP) {
		h.minSpeakers = minSpeakers
		h.maxSpeakers = maxSpeakers
	}
}

// NewHTTP returns a diarizer talking to baseURL.
func NewHTTP(baseURL string, opts ...Option) (*HTTP, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("diarize: base URL must not be empty")
	}
	h := &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Diarize uploads the clip and returns the discovered turns in service order.
func (h *HTTP) Diarize(ctx context.Context, clip *audio.Clip) ([]Turn, error) {
	wav, err := clip.WAV()
	if err != nil {
		return nil, fmt.Errorf("diarize: encode clip: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "clip.wav")
	if err != nil {
		return nil, fmt.Errorf("diarize: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("diarize: %w", err)
	}
	if h.minSpeakers > 0 {
		_ = mw.WriteField("min_speakers", strconv.Itoa(h.minSpeakers))
	}
	if h.maxSpeakers > 0 {
		_ = mw.WriteField("max_speakers", strconv.Itoa(h.maxSpeakers))
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("diarize: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/diarize", &body)
	if err != nil {
		return nil, fmt.Errorf("diarize: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarize: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("diarize: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Segments []struct {
			Start   float64 `json:"start"`
			End     float64 `json:"end"`
			Speaker string  `json:"speaker"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("diarize: decode response: %w", err)
	}
	turns := make([]Turn, 0, len(out.Segments))
	for _, s := range out.Segments {
		if s.Speaker == "" || s.End <= s.Start {
			continue
		}
		turns = append(turns, Turn{
			Start:   time.Duration(s.Start * float64(time.Second)),
			End:     time.Duration(s.End * float64(time.Second)),
			Speaker: s.Speaker,
		})
	}
	return turns, nil
}
