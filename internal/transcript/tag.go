package transcript

import (
	"regexp"
	"strings"
	"time"
)

// Clock-only layouts for bracketed timestamp tags. Lines written by
// current versions carry seconds; lines recovered from older saved
// sessions may not.
const (
	tagLayout       = "3:04:05 PM"
	tagLayoutLegacy = "3:04 PM"
)

var tagPattern = regexp.MustCompile(`\[(\d{1,2}:\d{2}(?::\d{2})? [AP]M)\]`)

// Tag is the wall-clock label attached to a transcript line. The zero
// Tag means the line carries no parseable timestamp.
type Tag struct {
	t time.Time
}

// NewTag builds a Tag from an absolute time.
func NewTag(t time.Time) Tag {
	return Tag{t: t}
}

// Time reports the tag's absolute time, or fallback when the tag is
// unset.
func (tg Tag) Time(fallback time.Time) time.Time {
	if tg.t.IsZero() {
		return fallback
	}
	return tg.t
}

// IsZero reports whether the tag carries no time.
func (tg Tag) IsZero() bool { return tg.t.IsZero() }

// String renders the tag in the bracketed form embedded in transcript
// lines, e.g. "[3:04:05 PM]". The zero tag renders as "[]".
func (tg Tag) String() string {
	if tg.t.IsZero() {
		return "[]"
	}
	return "[" + tg.t.Format(tagLayout) + "]"
}

// ParseTag extracts the first bracketed clock tag from line. The clock
// reading is combined with ref's date and location, since saved lines
// store only a time of day. It accepts both the current seconds form
// and the legacy minutes-only form. ok is false when the line carries
// no recognisable tag.
func ParseTag(line string, ref time.Time) (tag Tag, ok bool) {
	m := tagPattern.FindStringSubmatch(line)
	if m == nil {
		return Tag{}, false
	}
	layout := tagLayout
	if strings.Count(m[1], ":") == 1 {
		layout = tagLayoutLegacy
	}
	clock, err := time.Parse(layout, m[1])
	if err != nil {
		return Tag{}, false
	}
	y, mo, d := ref.Date()
	t := time.Date(y, mo, d, clock.Hour(), clock.Minute(), clock.Second(), 0, ref.Location())
	return Tag{t: t}, true
}
