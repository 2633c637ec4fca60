// Package transcript reconciles streaming caption fragments into a
// stable transcript. Caption feeds re-emit the same utterance many times
// while the speech recogniser refines it; the reconciliation engine
// decides for every incoming fragment whether it is new speech, a
// refinement of a recent line, or a stale duplicate.
package transcript

import "strings"

// punctuation stripped during normalization. Captions gain and lose
// punctuation between refinements, so comparisons ignore it entirely.
const punctuation = ".,/#!$%^&*;:{}=-_`~()"

// Normalize canonicalises caption text for comparison: lower-case,
// punctuation removed, whitespace collapsed to single spaces and
// trimmed. The empty string normalizes to the empty string.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if strings.ContainsRune(punctuation, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens splits normalized text into words. Returns nil for blank input.
func Tokens(text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	return strings.Split(norm, " ")
}

// FormatSpeakerName rewrites directory-style "Last, First" names into
// "First Last". Names with zero or more than one comma pass through
// unchanged, as do names whose comma does not separate two non-empty
// parts.
func FormatSpeakerName(name string) string {
	name = strings.TrimSpace(name)
	if strings.Count(name, ",") != 1 {
		return name
	}
	last, first, _ := strings.Cut(name, ",")
	last = strings.TrimSpace(last)
	first = strings.TrimSpace(first)
	if last == "" || first == "" {
		return name
	}
	return first + " " + last
}
