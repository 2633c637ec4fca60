package transcript

import (
	"regexp"
	"strings"
	"time"
)

// Kind classifies a transcript line. The chronological merger and the
// post-merge scrub treat kinds differently: caption lines participate
// in deduplication, chat and comment lines never do, and header lines
// are hoisted to the front of merged output.
type Kind int

const (
	KindCaption Kind = iota
	KindChat
	KindComment
	KindHeader
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindCaption:
		return "caption"
	case KindChat:
		return "chat"
	case KindComment:
		return "comment"
	case KindHeader:
		return "header"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Line is one entry of a transcript buffer. Speaker is empty for
// header, system and comment lines; for chat lines it holds the
// sender.
type Line struct {
	Kind    Kind
	Speaker string
	Text    string
	Tag     Tag
}

// Rendered produces the persisted textual form of the line.
//
//	caption:  Speaker [3:04:05 PM]: text
//	chat:     [3:04:05 PM] - Sender: text
//	comment:  [3:04:05 PM] - [Injected Comment]: text
//	other:    text
func (l Line) Rendered() string {
	switch l.Kind {
	case KindCaption:
		return strings.TrimSpace(l.Speaker + " " + l.Tag.String() + ": " + l.Text)
	case KindChat:
		return l.Tag.String() + " - " + l.Speaker + ": " + l.Text
	case KindComment:
		return l.Tag.String() + " - [Injected Comment]: " + l.Text
	default:
		return l.Text
	}
}

// speaker, bracketed clock tag, then the caption text.
var captionPattern = regexp.MustCompile(`^(.*?) \[(\d{1,2}:\d{2}(?::\d{2})? [AP]M)\]: (.*)$`)

// ParseRenderedCaption reconstructs a caption Line from its persisted
// form, using ref for the tag's date. ok is false when the line does
// not look like a caption.
func ParseRenderedCaption(rendered string, ref time.Time) (line Line, ok bool) {
	m := captionPattern.FindStringSubmatch(rendered)
	if m == nil {
		return Line{}, false
	}
	tag, _ := ParseTag("["+m[2]+"]", ref)
	return Line{
		Kind:    KindCaption,
		Speaker: strings.TrimSpace(m[1]),
		Text:    strings.TrimSpace(m[3]),
		Tag:     tag,
	}, true
}
