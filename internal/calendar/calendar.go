// Package calendar builds Google Calendar template links from event posters.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/MrWong99/clubnote/internal/extract"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/types"
)

const baseURL = "https://www.google.com/calendar/render?action=TEMPLATE"

// ErrInvalidURL is returned when the built link does not look like a URL.
var ErrInvalidURL = errors.New("calendar: generated link is not a valid URL")

var validURL = regexp.MustCompile(`(?i)^(?:http|ftp)s?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+(?:[A-Z]{2,6}\.?|[A-Z0-9-]{2,}\.?)|` +
	`localhost|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// Valid reports whether u is an absolute http, https, ftp or ftps URL with a
// domain, localhost or IPv4 host.
func Valid(u string) bool {
	return validURL.MatchString(u)
}

// URL builds the template link for ev. Text fields are query-escaped; the
// dates go through [Dates].
func URL(ev extract.Event) string {
	var b strings.Builder
	b.WriteString(baseURL)
	b.WriteString("&text=" + escape(ev.Title))
	b.WriteString("&dates=" + Dates(ev.Time))
	b.WriteString("&location=" + escape(ev.Location))
	b.WriteString("&details=" + escape(ev.Content))
	b.WriteString("&openExternalBrowser=1")
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

const (
	layoutInstant = "20060102T150405Z"
	layoutDay     = "20060102"
)

// Dates turns a single instant into a one-hour range and a single day into an
// all-day range. Ranges and anything unrecognised pass through trimmed.
func Dates(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return s
	}
	if t, err := time.Parse(layoutInstant, s); err == nil {
		return s + "/" + t.Add(time.Hour).Format(layoutInstant)
	}
	if t, err := time.Parse(layoutDay, s); err == nil {
		return s + "/" + t.AddDate(0, 0, 1).Format(layoutDay)
	}
	return s
}

// EventExtractor reads an event from a poster.
type EventExtractor interface {
	ExtractEvent(ctx context.Context, img types.Image) (*extract.Event, error)
}

// Option configures a [Linker].
type Option func(*Linker)

// WithHTTPClient sets the client used to download images.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Linker) { l.client = c }
}

// WithMaxImageBytes caps the downloaded image size. Default: 10 MiB.
func WithMaxImageBytes(n int64) Option {
	return func(l *Linker) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// Linker downloads a poster, extracts its event and returns a calendar link.
type Linker struct {
	extractor EventExtractor
	client    *http.Client
	maxBytes  int64
}

// NewLinker returns a Linker using e for extraction.
func NewLinker(e EventExtractor, opts ...Option) *Linker {
	l := &Linker{
		extractor: e,
		client:    &http.Client{Timeout: 30 * time.Second},
		maxBytes:  10 << 20,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Link fetches imgURL and returns the calendar link for the event on it.
// A link that fails [Valid] yields [ErrInvalidURL].
func (l *Linker) Link(ctx context.Context, imgURL string) (string, error) {
	img, err := l.fetch(ctx, imgURL)
	if err != nil {
		return "", err
	}
	return l.LinkImage(ctx, img)
}

// LinkImage is [Linker.Link] for an image already in memory.
func (l *Linker) LinkImage(ctx context.Context, img types.Image) (string, error) {
	ev, err := l.extractor.ExtractEvent(ctx, img)
	if err != nil {
		return "", err
	}
	link := URL(*ev)
	if !Valid(link) {
		return "", ErrInvalidURL
	}
	return link, nil
}

func (l *Linker) fetch(ctx context.Context, imgURL string) (types.Image, error) {
	u, err := url.Parse(imgURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return types.Image{}, &pipeline.InputError{Prompt: "img_url must be an http(s) URL", Reason: fmt.Sprintf("bad img_url %q", imgURL)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return types.Image{}, fmt.Errorf("calendar: build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return types.Image{}, pipeline.Upstream("image", fmt.Errorf("calendar: fetch image: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.Image{}, pipeline.Upstream("image", fmt.Errorf("calendar: fetch image: status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return types.Image{}, pipeline.Upstream("image", fmt.Errorf("calendar: read image: %w", err))
	}
	if int64(len(data)) > l.maxBytes {
		return types.Image{}, &pipeline.InputError{Prompt: "image too large", Reason: fmt.Sprintf("image exceeds %d bytes", l.maxBytes)}
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return types.Image{Data: data, MIMEType: mime}, nil
}
