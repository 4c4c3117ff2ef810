package calendar_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/clubnote/internal/calendar"
	"github.com/MrWong99/clubnote/internal/extract"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/types"
)

type fakeExtractor struct {
	ev  *extract.Event
	err error
	got types.Image
}

func (f *fakeExtractor) ExtractEvent(_ context.Context, img types.Image) (*extract.Event, error) {
	f.got = img
	return f.ev, f.err
}

func TestValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"https://www.google.com/calendar/render?action=TEMPLATE&text=a", true},
		{"http://localhost:8080/x", true},
		{"ftp://10.0.0.1/file", true},
		{"HTTPS://EXAMPLE.COM", true},
		{"https://example.com/path with space", false},
		{"mailto:someone@example.com", false},
		{"https://", false},
		{"example.com", false},
	}
	for _, tt := range tests {
		if got := calendar.Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDates(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"20240409T070000Z/20240409T080000Z", "20240409T070000Z/20240409T080000Z"},
		{"20250101T100000Z", "20250101T100000Z/20250101T110000Z"},
		{"20241231", "20241231/20250101"},
		{" 明天 ", "明天"},
	}
	for _, tt := range tests {
		if got := calendar.Dates(tt.in); got != tt.want {
			t.Errorf("Dates(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestURL(t *testing.T) {
	t.Parallel()

	got := calendar.URL(extract.Event{
		Time:     "20240409T070000Z/20240409T080000Z",
		Location: "台北 A&B",
		Title:    "Go 讀書會",
		Content:  "1. 帶筆電",
	})
	want := "https://www.google.com/calendar/render?action=TEMPLATE" +
		"&text=Go%20%E8%AE%80%E6%9B%B8%E6%9C%83" +
		"&dates=20240409T070000Z/20240409T080000Z" +
		"&location=%E5%8F%B0%E5%8C%97%20A%26B" +
		"&details=1.%20%E5%B8%B6%E7%AD%86%E9%9B%BB" +
		"&openExternalBrowser=1"
	if got != want {
		t.Errorf("URL =\n%s\nwant\n%s", got, want)
	}
	if !calendar.Valid(got) {
		t.Error("built URL should be valid")
	}
}

func TestLinker_Link(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nrest"))
	}))
	defer srv.Close()

	fx := &fakeExtractor{ev: &extract.Event{Time: "20250101T100000Z", Location: "TPE", Title: "Kickoff", Content: "Intro"}}
	l := calendar.NewLinker(fx, calendar.WithHTTPClient(srv.Client()))

	link, err := l.Link(context.Background(), srv.URL+"/poster.png")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !strings.Contains(link, "&dates=20250101T100000Z/20250101T110000Z") {
		t.Errorf("link = %q", link)
	}
	if fx.got.MIMEType != "image/png" || len(fx.got.Data) == 0 {
		t.Errorf("extractor got %q (%d bytes)", fx.got.MIMEType, len(fx.got.Data))
	}
}

func TestLinker_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			_, _ = w.Write(make([]byte, 64))
		}
	}))
	defer srv.Close()

	fx := &fakeExtractor{ev: &extract.Event{Title: "x"}}
	l := calendar.NewLinker(fx, calendar.WithHTTPClient(srv.Client()), calendar.WithMaxImageBytes(16))

	var ie *pipeline.InputError
	if _, err := l.Link(context.Background(), "file:///etc/passwd"); !errors.As(err, &ie) {
		t.Errorf("bad scheme: err = %v, want InputError", err)
	}
	if _, err := l.Link(context.Background(), srv.URL+"/big"); !errors.As(err, &ie) {
		t.Errorf("oversize: err = %v, want InputError", err)
	}
	var ue *pipeline.UpstreamError
	if _, err := l.Link(context.Background(), srv.URL+"/missing"); !errors.As(err, &ue) {
		t.Errorf("404: err = %v, want UpstreamError", err)
	}

	fx.err = pipeline.ErrExtraction
	if _, err := l.LinkImage(context.Background(), types.Image{Data: []byte{1}}); !errors.Is(err, pipeline.ErrExtraction) {
		t.Errorf("extract failure: err = %v", err)
	}
}
