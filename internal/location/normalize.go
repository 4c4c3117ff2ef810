package location

import (
	"regexp"
	"strings"
	"unicode"
)

// cjkRun matches a contiguous run of CJK unified ideographs.
var cjkRun = regexp.MustCompile(`[\p{Han}]+`)

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithLegacyFallback enables the historical behaviour of replacing every
// leftover CJK run with the last matched building code. Off by default
// because it rewrites unrelated words.
func WithLegacyFallback(enabled bool) Option {
	return func(n *Normalizer) { n.legacy = enabled }
}

// WithMatcher replaces the fuzzy matcher used for English names.
func WithMatcher(m *Matcher) Option {
	return func(n *Normalizer) { n.matcher = m }
}

// Normalizer rewrites facility names into building codes. It is read-only
// after construction and safe for concurrent use.
type Normalizer struct {
	buildings []Building
	legacy    bool
	matcher   *Matcher
	aliases   []string
	aliasCode map[string]string
}

// New returns a Normalizer over table. A nil table uses [DefaultTable].
func New(table *Table, opts ...Option) *Normalizer {
	if table == nil {
		table = DefaultTable()
	}
	n := &Normalizer{
		buildings: table.Buildings(),
		matcher:   NewMatcher(),
		aliasCode: make(map[string]string),
	}
	for _, b := range n.buildings {
		for _, alias := range append([]string{b.Code}, b.EN...) {
			if _, dup := n.aliasCode[alias]; !dup {
				n.aliases = append(n.aliases, alias)
				n.aliasCode[alias] = b.Code
			}
		}
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize rewrites text. For every building in table order it replaces,
// in this order: the abbreviation anywhere, the full name as a prefix, and
// the full name anywhere. Text without any CJK characters is instead
// resolved as a whole against the English aliases.
//
// Unmatched CJK text is left unchanged unless the legacy fallback is on.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return text
	}
	if !hasHan(text) {
		if b, ok := n.Resolve(text); ok {
			return b.Code
		}
		return text
	}

	var last string
	for _, b := range n.buildings {
		matched := false
		if b.TWAbbrev != "" && strings.Contains(text, b.TWAbbrev) {
			text = strings.ReplaceAll(text, b.TWAbbrev, b.Code)
			matched = true
		}
		if b.TW != "" {
			if rest, ok := strings.CutPrefix(text, b.TW); ok {
				text = b.Code + rest
				matched = true
			}
			if strings.Contains(text, b.TW) {
				text = strings.ReplaceAll(text, b.TW, b.Code)
				matched = true
			}
		}
		if matched {
			last = b.Code
		}
	}
	if n.legacy && last != "" {
		text = cjkRun.ReplaceAllString(text, last)
	}
	return text
}

// Resolve looks a single facility name up by code, abbreviation, full name or
// English alias, falling back to fuzzy matching of English aliases.
func (n *Normalizer) Resolve(name string) (Building, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Building{}, false
	}
	for _, b := range n.buildings {
		if strings.EqualFold(name, b.Code) || name == b.TWAbbrev || name == b.TW {
			return b, true
		}
		for _, en := range b.EN {
			if strings.EqualFold(name, en) {
				return b, true
			}
		}
	}
	if hasHan(name) {
		return Building{}, false
	}
	alias, _, ok := n.matcher.Match(name, n.aliases)
	if !ok {
		return Building{}, false
	}
	return n.byCode(n.aliasCode[alias])
}

func (n *Normalizer) byCode(code string) (Building, bool) {
	for _, b := range n.buildings {
		if b.Code == code {
			return b, true
		}
	}
	return Building{}, false
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
