// Package timeline combines transcript, chat and comment streams into
// one chronologically ordered document.
package timeline

import (
	"slices"
	"strings"
	"time"

	"github.com/doron007/chimescribe/internal/transcript"
)

// Stream is one ordered source of lines with a label used in logs.
type Stream struct {
	Label string
	Lines []transcript.Line
}

// Merger interleaves streams by timestamp and optionally scrubs
// near-duplicate caption lines that survived per-stream reconciliation.
type Merger struct {
	scrubWindow     int
	shortTokenLimit int
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithScrubWindow sets how many recent kept lines per speaker the
// scrub compares against.
func WithScrubWindow(n int) MergerOption {
	return func(m *Merger) { m.scrubWindow = n }
}

// NewMerger builds a Merger with default settings adjusted by opts.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{scrubWindow: 5, shortTokenLimit: 3}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge flattens the streams into one slice ordered by line timestamp.
// Header and system lines are hoisted to the front in encounter order.
// Lines without a timestamp sort as if observed at now. The sort is
// stable, so lines with equal timestamps keep stream order, earlier
// streams first.
func (m *Merger) Merge(now time.Time, streams ...Stream) []transcript.Line {
	var header, body []transcript.Line
	for _, s := range streams {
		for _, l := range s.Lines {
			if strings.TrimSpace(l.Text) == "" && l.Kind != transcript.KindHeader {
				continue
			}
			switch l.Kind {
			case transcript.KindHeader, transcript.KindSystem:
				header = append(header, l)
			default:
				body = append(body, l)
			}
		}
	}
	slices.SortStableFunc(body, func(a, b transcript.Line) int {
		return a.Tag.Time(now).Compare(b.Tag.Time(now))
	})
	return append(header, body...)
}

// Scrub removes caption lines that duplicate a recent kept line from
// the same speaker. Chat, comment, header and system lines always
// survive, as do short caption lines, which tend to be legitimate
// repeated interjections. A caption is dropped when its text equals a
// recent kept text from the same speaker, or is contained in one
// without being longer.
func (m *Merger) Scrub(lines []transcript.Line) []transcript.Line {
	kept := make([]transcript.Line, 0, len(lines))
	recent := map[string][]string{}

	track := func(speaker, text string) {
		window := append(recent[speaker], text)
		if len(window) > m.scrubWindow {
			window = window[1:]
		}
		recent[speaker] = window
	}

	for _, l := range lines {
		if l.Kind != transcript.KindCaption {
			kept = append(kept, l)
			continue
		}
		text := strings.TrimSpace(l.Text)
		if len(strings.Fields(text)) <= m.shortTokenLimit {
			kept = append(kept, l)
			track(l.Speaker, text)
			continue
		}
		dup := false
		for _, prev := range recent[l.Speaker] {
			if text == prev {
				dup = true
				break
			}
			if (strings.Contains(text, prev) || strings.Contains(prev, text)) && len(text) <= len(prev) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, l)
		track(l.Speaker, text)
	}
	return kept
}

// Render joins lines into the persisted document form.
func Render(lines []transcript.Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Rendered()
	}
	return strings.Join(parts, "\n")
}
