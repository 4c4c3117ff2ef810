package location_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/clubnote/internal/location"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := location.New(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "abbreviation", in: "台北", want: "TPE"},
		{name: "abbreviation inside text", in: "在資工集合", want: "在CSIE集合"},
		{name: "full name prefix", in: "學生活動中心二樓", want: "SAC二樓"},
		{name: "full name anywhere", in: "三峽圖書資訊大樓", want: "三峽LIB"},
		{name: "abbreviation before full name", in: "綜合體育館", want: "綜合GYM"},
		{name: "unmatched left alone", in: "咖啡廳", want: "咖啡廳"},
		{name: "english alias", in: "Student Activity Center", want: "SAC"},
		{name: "unknown english", in: "Quantum Physics Lab", want: "Quantum Physics Lab"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := n.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_LegacyFallback(t *testing.T) {
	t.Parallel()

	tight := location.New(nil)
	legacy := location.New(nil, location.WithLegacyFallback(true))

	in := "資工旁邊"
	if got := tight.Normalize(in); got != "CSIE旁邊" {
		t.Errorf("tight Normalize(%q) = %q, want %q", in, got, "CSIE旁邊")
	}
	if got := legacy.Normalize(in); got != "CSIECSIE" {
		t.Errorf("legacy Normalize(%q) = %q, want %q", in, got, "CSIECSIE")
	}

	// Nothing matched: the legacy fallback has no code to substitute.
	if got := legacy.Normalize("咖啡廳"); got != "咖啡廳" {
		t.Errorf("legacy Normalize(unmatched) = %q, want unchanged", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	n := location.New(nil)
	for _, in := range []string{"台北", "在資工集合", "學生活動中心二樓", "TPE"} {
		once := n.Normalize(in)
		if twice := n.Normalize(once); twice != once {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	n := location.New(nil)

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "csie", want: "CSIE", wantOK: true},
		{in: "資訊工程學系館", want: "CSIE", wantOK: true},
		{in: "體育館", want: "GYM", wantOK: true},
		{in: "CSIE Bldg", want: "CSIE", wantOK: true},
		{in: "Libary", want: "LIB", wantOK: true},
		{in: "Gymnasim", want: "GYM", wantOK: true},
		{in: "Quantum Physics Lab", wantOK: false},
		{in: "咖啡廳", wantOK: false},
		{in: "   ", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			b, ok := n.Resolve(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && b.Code != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, b.Code, tt.want)
			}
		})
	}
}

func TestLoadTable(t *testing.T) {
	t.Parallel()

	const doc = `
campuses:
  - name: test
    buildings:
      - code: A
        tw_abbrev: 甲館
        tw: 甲棟大樓
        en: [Alpha Hall]
`
	table, err := location.LoadTable(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	n := location.New(table)
	if got := n.Normalize("到甲館"); got != "到A" {
		t.Errorf("Normalize = %q, want %q", got, "到A")
	}
	if got := n.Normalize("台北"); got != "台北" {
		t.Errorf("custom table should not know TPE, got %q", got)
	}
}

func TestLoadTable_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing code", doc: "campuses:\n  - buildings:\n      - tw: 甲\n"},
		{name: "duplicate code", doc: "campuses:\n  - buildings:\n      - code: A\n      - code: A\n"},
		{name: "not yaml", doc: "campuses: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := location.LoadTable(strings.NewReader(tt.doc)); err == nil {
				t.Error("LoadTable: expected error, got nil")
			}
		})
	}
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	m := location.NewMatcher()
	aliases := []string{"Library", "Law School", "Gymnasium"}

	alias, score, ok := m.Match("law skool", aliases)
	if !ok || alias != "Law School" {
		t.Fatalf("Match = (%q, %v), want Law School", alias, ok)
	}
	if score < 0.7 {
		t.Errorf("score = %f, want >= 0.7", score)
	}

	if _, _, ok := m.Match("", aliases); ok {
		t.Error("empty input should not match")
	}
	if _, _, ok := m.Match("library", nil); ok {
		t.Error("no aliases should not match")
	}
}
