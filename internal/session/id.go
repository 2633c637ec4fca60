// Package session owns the lifecycle of one captured meeting: its
// transcript, chat and comment buffers, periodic persistence and
// resumption after a restart.
package session

import (
	"regexp"
	"strings"
	"time"
)

const (
	// idSuffix marks saved documents as meeting minutes.
	idSuffix = "MoM"

	// maxTitleLen bounds the sanitized title used in identifiers.
	maxTitleLen = 200
)

var (
	unsafeChars    = regexp.MustCompile(`[<>:"/\\|?*,]`)
	repeatedDashes = regexp.MustCompile(`--+`)
)

// SanitizeTitle makes a meeting title safe for use in filenames and
// session identifiers: filesystem-hostile characters become dashes,
// whitespace collapses, dash runs shrink to one and edge dashes are
// trimmed. The result is capped at 200 characters.
func SanitizeTitle(title string) string {
	s := unsafeChars.ReplaceAllString(title, "-")
	s = strings.Join(strings.Fields(s), " ")
	s = repeatedDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = strings.TrimSpace(s)
	if len(s) > maxTitleLen {
		s = s[:maxTitleLen]
	}
	return s
}

// ID builds the stable session identifier for a meeting on a given
// day, e.g. "[08-29] - Weekly Sync - MoM - 1234567890". Whitespace is
// stripped from the meeting ID so identifiers compare reliably.
func ID(date time.Time, title, meetingID string) string {
	compactID := strings.Join(strings.Fields(meetingID), "")
	return "[" + date.Format("01-02") + "] - " + SanitizeTitle(title) + " - " + idSuffix + " - " + compactID
}

// FileName builds the export file name for a meeting. Unlike [ID] it
// omits the meeting ID, which is noise in a download folder.
func FileName(date time.Time, title string) string {
	return "[" + date.Format("01-02") + "] - " + SanitizeTitle(title) + " - " + idSuffix
}
