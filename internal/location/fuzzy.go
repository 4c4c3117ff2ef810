package location

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// genericWords carry no identifying signal between buildings and are
// ignored when comparing English names.
var genericWords = map[string]struct{}{
	"building": {}, "bldg": {}, "hall": {}, "center": {}, "centre": {},
	"the": {}, "of": {}, "and": {}, "campus": {}, "ntpu": {},
}

// MatcherOption configures a [Matcher].
type MatcherOption func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a candidate
// whose Double Metaphone codes overlap the input. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a candidate
// without phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher ranks English facility aliases against free-form input using
// Double Metaphone filtering and Jaro-Winkler scoring. Read-only after
// construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a Matcher with default thresholds.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the alias most similar to input. Phonetic candidates always
// beat purely string-similar ones.
func (m *Matcher) Match(input string, aliases []string) (alias string, score float64, ok bool) {
	inTokens := significant(input)
	if len(inTokens) == 0 {
		return "", 0, false
	}
	inCodes := codesForTokens(inTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, a := range aliases {
		aTokens := significant(a)
		if len(aTokens) == 0 {
			continue
		}
		s := jwScore(inTokens, aTokens)
		if codesOverlap(inCodes, codesForTokens(aTokens)) {
			if s >= m.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				best, bestScore, bestPhonetic = a, s, true
			}
			continue
		}
		if !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore {
			best, bestScore = a, s
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// significant lowercases s and returns its tokens without generic words.
// A name made only of generic words keeps all of them.
func significant(s string) []string {
	all := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	out := make([]string, 0, len(all))
	for _, t := range all {
		t = strings.Trim(t, ".,()'\"")
		if t == "" {
			continue
		}
		if _, generic := genericWords[t]; !generic {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// jwScore compares the joined token strings both with and without spaces.
// Single-token inputs are also compared against each alias token.
func jwScore(in, alias []string) float64 {
	score := matchr.JaroWinkler(strings.Join(in, " "), strings.Join(alias, " "), false)
	if s := matchr.JaroWinkler(strings.Join(in, ""), strings.Join(alias, ""), false); s > score {
		score = s
	}
	if len(in) == 1 && len(alias) > 1 {
		for _, t := range alias {
			if s := matchr.JaroWinkler(in[0], t, false); s > score {
				score = s
			}
		}
	}
	return score
}
