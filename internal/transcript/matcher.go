package transcript

import (
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

// Words that carry little meaning on their own. They are excluded
// before computing word overlap so that two unrelated sentences built
// from filler do not look similar.
var stopWords = map[string]struct{}{
	"i": {}, "will": {}, "would": {}, "like": {}, "to": {}, "the": {},
	"this": {}, "that": {}, "is": {}, "a": {}, "an": {}, "and": {},
	"or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "it": {},
	"for": {}, "yes": {}, "no": {}, "so": {}, "uh": {}, "um": {},
	"we": {}, "you": {}, "they": {}, "of": {}, "from": {},
}

// articles considered insertable by speech recognisers without changing
// the utterance.
var articles = []string{"a", "an", "the"}

// Matcher decides whether two caption texts are variants of the same
// utterance. Similar applies loose overlap heuristics suited to
// deciding "same speech event"; Correction applies stricter positional
// checks suited to deciding "refinement of an existing line".
//
// All thresholds are tunable through options; the defaults reproduce
// the behaviour the reconciliation engine was calibrated against.
type Matcher struct {
	coreMinLen      int     // both texts must exceed this before core comparison
	coreSlack       int     // characters forgiven at the end of the core
	coreFloor       int     // minimum core length
	wordMinLen      int     // both texts must exceed this before word comparison
	wordRatio       float64 // required fraction of shared significant words
	wordMinShared   int     // required absolute count of shared significant words
	strictDelta     int     // max word-count difference for a correction
	strictRatio     float64 // required any-position word match fraction
	tokenSimilarity float64 // Jaro-Winkler floor for near-equal tokens, 0 disables
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithCoreOverlap tunes the substring-overlap heuristic: texts longer
// than minLen compare their leading cores, which are the shorter
// length minus slack but never below floor.
func WithCoreOverlap(minLen, slack, floor int) Option {
	return func(m *Matcher) {
		m.coreMinLen = minLen
		m.coreSlack = slack
		m.coreFloor = floor
	}
}

// WithWordOverlap tunes the significant-word heuristic: texts longer
// than minLen match when at least minShared significant words are
// shared and they make up at least ratio of the larger word set.
func WithWordOverlap(minLen int, ratio float64, minShared int) Option {
	return func(m *Matcher) {
		m.wordMinLen = minLen
		m.wordRatio = ratio
		m.wordMinShared = minShared
	}
}

// WithCorrectionLimits tunes the strict correction check: candidate
// pairs whose word counts differ by more than delta are rejected, and
// any-position word overlap of at least ratio accepts them.
func WithCorrectionLimits(delta int, ratio float64) Option {
	return func(m *Matcher) {
		m.strictDelta = delta
		m.strictRatio = ratio
	}
}

// WithTokenSimilarity sets the Jaro-Winkler similarity above which two
// distinct tokens count as the same word, absorbing per-character
// recogniser jitter ("recieve" vs "receive"). Zero disables fuzzy
// token matching.
func WithTokenSimilarity(sim float64) Option {
	return func(m *Matcher) { m.tokenSimilarity = sim }
}

// NewMatcher builds a Matcher with default thresholds, adjusted by opts.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		coreMinLen:      10,
		coreSlack:       5,
		coreFloor:       10,
		wordMinLen:      15,
		wordRatio:       0.7,
		wordMinShared:   3,
		strictDelta:     2,
		strictRatio:     0.7,
		tokenSimilarity: 0.94,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Similar reports whether a and b plausibly record the same utterance.
// Matching is symmetric. It tries, in order: normalized equality,
// prefix containment, leading-core overlap and significant-word
// overlap.
func (m *Matcher) Similar(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	if strings.HasPrefix(na, nb) || strings.HasPrefix(nb, na) {
		return true
	}
	if len(na) > m.coreMinLen && len(nb) > m.coreMinLen {
		cmpLen := min(len(na), len(nb)) - m.coreSlack
		if cmpLen < m.coreFloor {
			cmpLen = m.coreFloor
		}
		coreA := na[:min(cmpLen, len(na))]
		coreB := nb[:min(cmpLen, len(nb))]
		if coreA == coreB || strings.Contains(na, coreB) || strings.Contains(nb, coreA) {
			return true
		}
	}
	if len(na) > m.wordMinLen && len(nb) > m.wordMinLen {
		wa := significantWords(na)
		wb := significantWords(nb)
		shared := 0
		for _, w := range wa {
			if m.containsToken(wb, w) {
				shared++
			}
		}
		longest := max(len(wa), len(wb))
		if longest > 0 && float64(shared)/float64(longest) >= m.wordRatio && shared >= m.wordMinShared {
			return true
		}
	}
	return false
}

// Correction reports whether cur is a recogniser refinement of prev.
// Identical texts are not corrections. Beyond normalized equality it
// accepts high any-position word overlap, leading filler removal,
// single article insertion or removal, and shared word prefixes.
func (m *Matcher) Correction(prev, cur string) bool {
	if prev == cur {
		return false
	}
	np, nc := Normalize(prev), Normalize(cur)
	if np == nc {
		return true
	}

	wp := strings.Fields(np)
	wc := strings.Fields(nc)
	if abs(len(wp)-len(wc)) > m.strictDelta {
		return false
	}

	shared := 0
	for _, w := range wc {
		if m.containsToken(wp, w) {
			shared++
		}
	}
	shortest := min(len(wp), len(wc))
	if shortest > 0 && float64(shared)/float64(shortest) >= m.strictRatio {
		return true
	}

	// A leading filler word dropped from either side.
	if len(wp) > 1 && len(wc) > 1 {
		if strings.Join(wp[1:], " ") == strings.Join(wc, " ") ||
			strings.Join(wc[1:], " ") == strings.Join(wp, " ") {
			return true
		}
	}

	if abs(len(wp)-len(wc)) == 1 {
		longer, shorter := wp, wc
		if len(wc) > len(wp) {
			longer, shorter = wc, wp
		}
		if articleRemoved(longer, shorter) {
			return true
		}
	}

	prefix := 0
	for i := 0; i < shortest; i++ {
		if wp[i] != wc[i] {
			break
		}
		prefix++
	}
	if len(wc) <= 3 && len(wp) <= 4 && prefix >= 1 {
		return true
	}
	return prefix >= min(3, shortest-1)
}

// containsToken reports whether words contains tok, allowing
// Jaro-Winkler near matches for tokens of 4+ characters.
func (m *Matcher) containsToken(words []string, tok string) bool {
	for _, w := range words {
		if w == tok {
			return true
		}
		if m.tokenSimilarity > 0 && len(w) > 3 && len(tok) > 3 &&
			matchr.JaroWinkler(w, tok, false) >= m.tokenSimilarity {
			return true
		}
	}
	return false
}

// articleRemoved reports whether deleting one article from longer
// yields exactly shorter.
func articleRemoved(longer, shorter []string) bool {
	for _, art := range articles {
		idx := slices.Index(longer, art)
		if idx < 0 || slices.Contains(shorter, art) {
			continue
		}
		trimmed := make([]string, 0, len(longer)-1)
		trimmed = append(trimmed, longer[:idx]...)
		trimmed = append(trimmed, longer[idx+1:]...)
		if strings.Join(trimmed, " ") == strings.Join(shorter, " ") {
			return true
		}
	}
	return false
}

func significantWords(norm string) []string {
	var out []string
	for _, w := range strings.Fields(norm) {
		if len(w) <= 1 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
