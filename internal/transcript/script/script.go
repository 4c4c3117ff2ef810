// Package script rewrites transcript text into one canonical Chinese script.
//
// Normalization is a pure per-string rewrite: Unicode NFC, narrowing of
// full-width Latin letters and digits, then an OpenCC conversion between
// Simplified and Traditional forms. OpenCC matches whole phrases before
// single characters, so one-to-many characters resolve by context.
//
// Only runs of Han characters that hold at least one character foreign to
// the target script are converted. Everything OpenCC emits belongs to the
// target script, so [Normalizer.Normalize] is idempotent.
package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/longbridgeapp/opencc"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Script selects the canonical output script.
type Script string

const (
	// None leaves characters alone; only NFC and width folding apply.
	None Script = ""

	// Traditional rewrites Simplified text to Traditional (Taiwan standard).
	Traditional Script = "traditional"

	// Simplified rewrites Traditional text to Simplified.
	Simplified Script = "simplified"
)

// IsValid reports whether s is a known script.
func (s Script) IsValid() bool {
	switch s {
	case None, Traditional, Simplified:
		return true
	}
	return false
}

// conversion is the OpenCC configuration used for each target.
func (s Script) conversion() string {
	switch s {
	case Traditional:
		return "s2tw"
	case Simplified:
		return "tw2s"
	}
	return ""
}

// Option configures a [Normalizer].
type Option func(*options)

type options struct {
	extra io.Reader
}

// WithDictionary adds override entries in OpenCC text format
// ("source<TAB>wanted [alternatives...]" per line). Entries may be single
// characters or phrases; the first alternative is used and the output of an
// entry is never converted further.
func WithDictionary(r io.Reader) Option {
	return func(o *options) { o.extra = r }
}

// Normalizer is a deterministic script rewriter. The zero value is not
// usable; construct with [New]. Safe for concurrent use.
type Normalizer struct {
	target    Script
	cc        *opencc.OpenCC
	native    map[rune]struct{} // characters OpenCC may emit
	overrides map[string]string
	longest   int
}

// New builds a Normalizer for target.
func New(target Script, opts ...Option) (*Normalizer, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("script: unknown script %q", target)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	n := &Normalizer{target: target}
	if conv := target.conversion(); conv != "" {
		cc, err := opencc.New(conv)
		if err != nil {
			return nil, fmt.Errorf("script: load %s: %w", conv, err)
		}
		n.cc = cc
		n.native = make(map[rune]struct{}, 1<<14)
		for _, g := range cc.DictChains {
			for _, d := range g.Dicts {
				for _, alts := range d.Values {
					for _, v := range alts {
						n.addNative(v)
					}
				}
			}
		}
	}
	if o.extra != nil {
		overrides, err := parseDictionary(o.extra)
		if err != nil {
			return nil, fmt.Errorf("script: dictionary: %w", err)
		}
		n.overrides = overrides
		for k, v := range overrides {
			n.longest = max(n.longest, utf8.RuneCountInString(k))
			n.addNative(v)
		}
	}
	return n, nil
}

// NewFromFile is [New] with an optional dictionary file. An empty path
// means no dictionary.
func NewFromFile(target Script, dictPath string) (*Normalizer, error) {
	if dictPath == "" {
		return New(target)
	}
	f, err := os.Open(dictPath)
	if err != nil {
		return nil, fmt.Errorf("script: open dictionary: %w", err)
	}
	defer f.Close()
	return New(target, WithDictionary(f))
}

// Target returns the configured output script.
func (n *Normalizer) Target() Script { return n.target }

func (n *Normalizer) addNative(s string) {
	if n.native == nil {
		n.native = make(map[rune]struct{})
	}
	for _, r := range s {
		n.native[r] = struct{}{}
	}
}

// Normalize rewrites s. It never fails; a conversion error leaves the
// affected text as it was.
func (n *Normalizer) Normalize(s string) string {
	s = fold(norm.NFC.String(s))
	if n.cc == nil && len(n.overrides) == 0 {
		return s
	}
	return n.rewrite(s)
}

// fold narrows full-width letters and digits. Full-width punctuation stays.
func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if p := width.LookupRune(r); p.Kind() == width.EastAsianFullwidth {
				if nr := p.Narrow(); nr != 0 {
					r = nr
				}
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rewrite applies overrides and converts the text between them.
func (n *Normalizer) rewrite(s string) string {
	if len(n.overrides) == 0 {
		return n.convert(s)
	}
	var b strings.Builder
	rs := []rune(s)
	start := 0
	for i := 0; i < len(rs); {
		key, val := n.override(rs[i:])
		if key == 0 {
			i++
			continue
		}
		b.WriteString(n.convert(string(rs[start:i])))
		b.WriteString(val)
		i += key
		start = i
	}
	b.WriteString(n.convert(string(rs[start:])))
	return b.String()
}

// override returns the rune length and replacement of the longest override
// entry that prefixes rs, or zero.
func (n *Normalizer) override(rs []rune) (int, string) {
	for l := min(n.longest, len(rs)); l > 0; l-- {
		if v, ok := n.overrides[string(rs[:l])]; ok {
			return l, v
		}
	}
	return 0, ""
}

// convert rewrites every Han run of s that needs it.
func (n *Normalizer) convert(s string) string {
	if n.cc == nil || s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		i := strings.IndexFunc(s, isHan)
		if i < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		s = s[i:]
		j := strings.IndexFunc(s, func(r rune) bool { return !isHan(r) })
		if j < 0 {
			j = len(s)
		}
		b.WriteString(n.convertRun(s[:j]))
		s = s[j:]
	}
	return b.String()
}

func (n *Normalizer) convertRun(run string) string {
	if !strings.ContainsFunc(run, n.foreign) {
		return run
	}
	out, err := n.cc.Convert(run)
	if err != nil {
		return run
	}
	return out
}

// foreign reports whether r is a conversion source that OpenCC never emits.
func (n *Normalizer) foreign(r rune) bool {
	if _, ok := n.native[r]; ok {
		return false
	}
	key := string(r)
	for _, g := range n.cc.DictChains {
		for _, d := range g.Dicts {
			if _, err := d.Get(key); err == nil {
				return true
			}
		}
	}
	return false
}

func isHan(r rune) bool { return unicode.Is(unicode.Han, r) }

// parseDictionary reads OpenCC text dictionary lines. Malformed lines are
// skipped.
func parseDictionary(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		from, rest, ok := strings.Cut(sc.Text(), "\t")
		if !ok || from == "" {
			continue
		}
		alts := strings.Fields(rest)
		if len(alts) == 0 {
			continue
		}
		if _, exists := out[from]; !exists {
			out[from] = alts[0]
		}
	}
	return out, sc.Err()
}
