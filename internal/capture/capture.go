// Package capture observes a live meeting feed and forwards caption,
// chat and roster observations into a session. Sources implement a
// poll contract; the Poller owns the timers.
package capture

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/doron007/chimescribe/internal/transcript"
)

// Fragment is one observed caption fragment. Fragments arrive
// repeatedly and partially; the reconciliation engine decides what
// survives.
type Fragment struct {
	Speaker    string
	Text       string
	ObservedAt time.Time
}

// ChatMessage is one observed chat message.
type ChatMessage struct {
	Sender     string
	Text       string
	ObservedAt time.Time
}

// Source is a capture adapter for one meeting feed. Each method
// returns everything observed since the previous call. A failed poll
// is retried on the next tick, so implementations should return an
// error rather than block.
type Source interface {
	// Captions returns caption fragments observed since the last call.
	Captions(ctx context.Context) ([]Fragment, error)

	// Chat returns chat messages observed since the last call.
	Chat(ctx context.Context) ([]ChatMessage, error)

	// Attendees returns the current roster, raw and unordered.
	Attendees(ctx context.Context) ([]string, error)

	// Close releases the feed connection.
	Close() error
}

// FormatAttendees turns a raw roster into the persisted attendee list:
// conference-room entries (wrapped in single angle quotation marks)
// are skipped, "Last, First" names are swapped, duplicates collapse
// and the result is sorted and comma-joined.
func FormatAttendees(names []string) string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.HasPrefix(name, "‹") && strings.HasSuffix(name, "›") {
			continue
		}
		name = transcript.FormatSpeakerName(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
