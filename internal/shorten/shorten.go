// Package shorten shortens URLs with the reurl.cc API.
package shorten

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/clubnote/internal/observe"
)

// DefaultBaseURL is the reurl API root.
const DefaultBaseURL = "https://api.reurl.cc"

// Shortener turns a long URL into a short one.
type Shortener interface {
	Shorten(ctx context.Context, long string) string
}

// Noop returns URLs unchanged.
type Noop struct{}

// Shorten returns long.
func (Noop) Shorten(_ context.Context, long string) string { return long }

// Option configures a [Reurl].
type Option func(*Reurl)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(u string) Option {
	return func(r *Reurl) { r.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reurl) { r.client = c }
}

// Reurl calls POST {base}/shorten.
type Reurl struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewReurl returns a reurl client using apiKey.
func NewReurl(apiKey string, opts ...Option) *Reurl {
	r := &Reurl{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Shorten returns the short URL, or long itself when the service fails.
// Failures are logged at warn level.
func (r *Reurl) Shorten(ctx context.Context, long string) string {
	short, err := r.shorten(ctx, long)
	if err != nil {
		observe.Logger(ctx).Warn("url shortener failed; using long url", "url", long, "err", err)
		return long
	}
	return short
}

func (r *Reurl) shorten(ctx context.Context, long string) (string, error) {
	body, err := json.Marshal(map[string]string{"url": long})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/shorten", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("reurl-api-key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("shorten: status %d", resp.StatusCode)
	}
	var out struct {
		ShortURL string `json:"short_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("shorten: decode: %w", err)
	}
	if out.ShortURL == "" {
		return "", fmt.Errorf("shorten: empty short_url")
	}
	observe.Logger(ctx).Debug("url shortened", "url", long, "short", out.ShortURL)
	return out.ShortURL, nil
}
