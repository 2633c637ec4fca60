package transcript_test

import (
	"testing"
	"time"

	"github.com/doron007/chimescribe/internal/transcript"
)

var ref = time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

func TestTagString(t *testing.T) {
	t.Parallel()

	tag := transcript.NewTag(time.Date(2026, 8, 29, 14, 5, 9, 0, time.UTC))
	if got := tag.String(); got != "[2:05:09 PM]" {
		t.Errorf("String()=%q, want %q", got, "[2:05:09 PM]")
	}

	morning := transcript.NewTag(time.Date(2026, 8, 29, 0, 30, 0, 0, time.UTC))
	if got := morning.String(); got != "[12:30:00 AM]" {
		t.Errorf("String()=%q, want %q", got, "[12:30:00 AM]")
	}

	var zero transcript.Tag
	if got := zero.String(); got != "[]" {
		t.Errorf("zero String()=%q, want %q", got, "[]")
	}
}

func TestParseTag(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		line string
		want time.Time
		ok   bool
	}{
		{
			"seconds form",
			"Jane Doe [2:05:09 PM]: hello",
			time.Date(2026, 8, 29, 14, 5, 9, 0, time.UTC),
			true,
		},
		{
			"legacy minutes form",
			"Jane Doe [2:05 PM]: hello",
			time.Date(2026, 8, 29, 14, 5, 0, 0, time.UTC),
			true,
		},
		{
			"midnight",
			"[12:00:00 AM] - Bob: night",
			time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
			true,
		},
		{"no tag", "Meeting Title: Standup", time.Time{}, false},
		{"malformed tag", "Jane [25:99]: hello", time.Time{}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tag, ok := transcript.ParseTag(tc.line, ref)
			if ok != tc.ok {
				t.Fatalf("ParseTag(%q) ok=%v, want %v", tc.line, ok, tc.ok)
			}
			if ok && !tag.Time(time.Time{}).Equal(tc.want) {
				t.Errorf("ParseTag(%q)=%v, want %v", tc.line, tag.Time(time.Time{}), tc.want)
			}
		})
	}
}

func TestTagRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 29, 9, 41, 33, 0, time.UTC)
	line := transcript.Line{Kind: transcript.KindCaption, Speaker: "Jane Doe", Text: "hello", Tag: transcript.NewTag(at)}
	parsed, ok := transcript.ParseTag(line.Rendered(), ref)
	if !ok {
		t.Fatalf("ParseTag failed on %q", line.Rendered())
	}
	if !parsed.Time(time.Time{}).Equal(at) {
		t.Errorf("round trip got %v, want %v", parsed.Time(time.Time{}), at)
	}
}

func TestTagTimeFallback(t *testing.T) {
	t.Parallel()

	var zero transcript.Tag
	fb := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := zero.Time(fb); !got.Equal(fb) {
		t.Errorf("zero tag Time=%v, want fallback %v", got, fb)
	}
}

func TestParseRenderedCaption(t *testing.T) {
	t.Parallel()

	line, ok := transcript.ParseRenderedCaption("Jane Doe [2:05:09 PM]: hello there", ref)
	if !ok {
		t.Fatal("ParseRenderedCaption returned ok=false")
	}
	if line.Speaker != "Jane Doe" || line.Text != "hello there" {
		t.Errorf("parsed speaker=%q text=%q", line.Speaker, line.Text)
	}
	if line.Kind != transcript.KindCaption {
		t.Errorf("Kind=%v, want KindCaption", line.Kind)
	}
	want := time.Date(2026, 8, 29, 14, 5, 9, 0, time.UTC)
	if !line.Tag.Time(time.Time{}).Equal(want) {
		t.Errorf("Tag=%v, want %v", line.Tag.Time(time.Time{}), want)
	}

	if _, ok := transcript.ParseRenderedCaption("Meeting Title: Standup", ref); ok {
		t.Error("header line parsed as caption")
	}
	if _, ok := transcript.ParseRenderedCaption("[2:05:09 PM] - Bob: chat text", ref); ok {
		t.Error("chat line parsed as caption")
	}
}
