package align_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/clubnote/internal/transcript/align"
	"github.com/MrWong99/clubnote/pkg/audio"
	"github.com/MrWong99/clubnote/pkg/types"
)

func seg(start, end time.Duration, text string) types.Segment {
	return types.Segment{Start: start, End: end, Text: text}
}

func TestMonotonic(t *testing.T) {
	t.Parallel()
	const s = time.Second

	tests := []struct {
		name string
		in   []types.Segment
		want [][2]time.Duration
	}{
		{
			name: "already ordered",
			in:   []types.Segment{seg(0, 1*s, "a"), seg(1*s, 2*s, "b")},
			want: [][2]time.Duration{{0, s}, {s, 2 * s}},
		},
		{
			name: "overlap clipped",
			in:   []types.Segment{seg(0, 2*s, "a"), seg(1*s, 3*s, "b")},
			want: [][2]time.Duration{{0, 2 * s}, {2 * s, 3 * s}},
		},
		{
			name: "out of order sorted",
			in:   []types.Segment{seg(2*s, 3*s, "b"), seg(0, 1*s, "a")},
			want: [][2]time.Duration{{0, s}, {2 * s, 3 * s}},
		},
		{
			name: "swallowed segment kept at zero length",
			in:   []types.Segment{seg(0, 5*s, "a"), seg(1*s, 2*s, "b")},
			want: [][2]time.Duration{{0, 5 * s}, {5 * s, 5 * s}},
		},
		{
			name: "negative start clamped",
			in:   []types.Segment{seg(-s, s, "a")},
			want: [][2]time.Duration{{0, s}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := align.Monotonic(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i, w := range tc.want {
				if got[i].Start != w[0] || got[i].End != w[1] {
					t.Errorf("seg[%d] = [%v,%v], want [%v,%v]", i, got[i].Start, got[i].End, w[0], w[1])
				}
				if i > 0 && got[i].Start < got[i-1].End {
					t.Errorf("seg[%d] overlaps previous", i)
				}
			}
		})
	}
}

func TestMonotonic_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	in := []types.Segment{seg(2*time.Second, 3*time.Second, "b"), seg(0, time.Second, "a")}
	_ = align.Monotonic(in)
	if in[0].Text != "b" {
		t.Error("input slice was reordered")
	}
}

func TestWords_Align(t *testing.T) {
	t.Parallel()
	const ms = time.Millisecond
	in := []types.Segment{
		{Start: 0, End: 3000 * ms, Text: "hello world", Words: []types.Word{
			{Text: "hello", Start: 400 * ms, End: 900 * ms},
			{Text: "world", Start: 1000 * ms, End: 2200 * ms},
		}},
		{Start: 3000 * ms, End: 4000 * ms, Text: "no words"},
	}
	got, err := align.Words{}.Align(context.Background(), nil, in, "en")
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if got[0].Start != 400*ms || got[0].End != 2200*ms {
		t.Errorf("seg[0] = [%v,%v], want [400ms,2.2s]", got[0].Start, got[0].End)
	}
	if got[1].Start != 3000*ms || got[1].End != 4000*ms {
		t.Errorf("seg[1] changed without words: [%v,%v]", got[1].Start, got[1].End)
	}
}

func TestHTTP_Align(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/align" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("language"); got != "zh" {
			t.Errorf("language = %q, want zh", got)
		}
		var segs []map[string]any
		if err := json.Unmarshal([]byte(r.FormValue("segments")), &segs); err != nil || len(segs) != 1 {
			t.Errorf("segments field = %q", r.FormValue("segments"))
		}
		_, _ = w.Write([]byte(`{"segments":[{"start":0.25,"end":1.5,"text":"大家好","words":[{"word":"大家","start":0.25,"end":0.8,"score":0.9},{"word":"好","start":0.8,"end":1.5}]}]}`))
	}))
	t.Cleanup(srv.Close)

	a, err := align.NewHTTP(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if !a.Supports("zh") || a.Supports("tlh") {
		t.Error("Supports does not reflect the default language list")
	}

	clip := audio.NewClip(make([]int16, audio.SampleRate), audio.ContainerWAV)
	t.Cleanup(func() { _ = clip.Close() })

	got, err := a.Align(context.Background(), clip, []types.Segment{seg(0, 2*time.Second, "大家好")}, "zh")
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if got[0].Start != 250*time.Millisecond || got[0].End != 1500*time.Millisecond {
		t.Errorf("boundaries = [%v,%v]", got[0].Start, got[0].End)
	}
	if len(got[0].Words) != 2 || got[0].Words[0].Probability != 0.9 {
		t.Errorf("words = %+v", got[0].Words)
	}
	if got[0].Text != "大家好" {
		t.Errorf("text = %q, want original text kept", got[0].Text)
	}
}

func TestHTTP_Align_CountMismatch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"segments":[]}`))
	}))
	t.Cleanup(srv.Close)

	a, _ := align.NewHTTP(srv.URL, align.WithLanguages("en"))
	clip := audio.NewClip(make([]int16, 160), audio.ContainerWAV)
	t.Cleanup(func() { _ = clip.Close() })

	if _, err := a.Align(context.Background(), clip, []types.Segment{seg(0, time.Second, "x")}, "en"); err == nil {
		t.Error("expected error on segment count mismatch")
	}
}

func TestNewHTTP_EmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := align.NewHTTP(""); err == nil {
		t.Error("expected error for empty base URL")
	}
}
