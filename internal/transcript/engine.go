package transcript

import (
	"strings"
	"sync"
	"time"
)

// Action is the engine's verdict on an incoming caption fragment.
type Action int

const (
	// ActionAppended means the fragment became a new transcript line.
	ActionAppended Action = iota
	// ActionMerged means the fragment replaced the text of a recent
	// line from the same speaker, keeping that line's position.
	ActionMerged
	// ActionDiscarded means the fragment added nothing over what the
	// transcript already holds.
	ActionDiscarded
)

func (a Action) String() string {
	switch a {
	case ActionAppended:
		return "appended"
	case ActionMerged:
		return "merged"
	case ActionDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Result reports what the engine did with a fragment. Line is nil for
// discarded fragments.
type Result struct {
	Action Action
	Line   *Line
}

// shortTokenLimit is the word count at or below which a fragment is
// treated as an interjection and exempted from fuzzy comparison.
const shortTokenLimit = 3

// Engine turns a stream of repeated, partially refined caption
// fragments into an ordered transcript. It is safe for concurrent use.
type Engine struct {
	matcher         *Matcher
	loose           bool
	window          int
	fingerprintCap  int
	fingerprintKeep int

	mu        sync.Mutex
	lines     []*Line
	seen      map[string]struct{}
	seenOrder []string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMatcher replaces the default similarity matcher.
func WithMatcher(m *Matcher) EngineOption {
	return func(e *Engine) { e.matcher = m }
}

// WithLooseMatching switches the fuzzy comparison from the asymmetric
// correction check to the symmetric same-utterance check. A loose match
// keeps whichever text is longer instead of always preferring the
// incoming fragment.
func WithLooseMatching() EngineOption {
	return func(e *Engine) { e.loose = true }
}

// WithWindow sets how many recent lines per speaker are considered as
// merge candidates.
func WithWindow(n int) EngineOption {
	return func(e *Engine) { e.window = n }
}

// WithFingerprintBounds sets the size at which the exact-duplicate set
// is trimmed and how many newest fingerprints survive the trim.
func WithFingerprintBounds(limit, keep int) EngineOption {
	return func(e *Engine) {
		e.fingerprintCap = limit
		e.fingerprintKeep = keep
	}
}

// NewEngine builds an Engine with default settings adjusted by opts.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		matcher:         NewMatcher(),
		window:          5,
		fingerprintCap:  100,
		fingerprintKeep: 50,
		seen:            map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile processes one caption fragment observed at the given time.
// The speaker name is canonicalised first, so "Doe, Jane" and
// "Jane Doe" address the same history.
func (e *Engine) Reconcile(speaker, text string, at time.Time) Result {
	speaker = FormatSpeakerName(speaker)
	text = strings.TrimSpace(text)
	if speaker == "" || text == "" {
		return Result{Action: ActionDiscarded}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fp := speaker + ":" + text
	if _, dup := e.seen[fp]; dup {
		return Result{Action: ActionDiscarded}
	}
	e.remember(fp)

	for _, cand := range e.recent(speaker) {
		switch e.compare(cand.Text, text) {
		case verdictMerge:
			cand.Text = text
			cand.Tag = NewTag(at)
			return Result{Action: ActionMerged, Line: cand}
		case verdictDiscard:
			return Result{Action: ActionDiscarded}
		}
	}

	line := &Line{Kind: KindCaption, Speaker: speaker, Text: text, Tag: NewTag(at)}
	e.lines = append(e.lines, line)
	return Result{Action: ActionAppended, Line: line}
}

type verdict int

const (
	verdictNone verdict = iota
	verdictMerge
	verdictDiscard
)

// compare decides how the current fragment relates to one candidate
// line. Word-boundary prefix checks apply to fragments of any length;
// fuzzy correction detection only once both sides are longer than an
// interjection.
func (e *Engine) compare(candidate, current string) verdict {
	if current == candidate {
		return verdictDiscard
	}
	if strings.HasPrefix(current, candidate+" ") {
		return verdictMerge
	}
	if strings.HasPrefix(candidate, current+" ") {
		return verdictDiscard
	}
	if countTokens(current) <= shortTokenLimit || countTokens(candidate) <= shortTokenLimit {
		return verdictNone
	}
	if e.loose {
		if e.matcher.Similar(candidate, current) {
			if len(current) > len(candidate) {
				return verdictMerge
			}
			return verdictDiscard
		}
	} else if e.matcher.Correction(candidate, current) {
		return verdictMerge
	}
	if strings.HasPrefix(current, candidate) {
		return verdictMerge
	}
	if strings.HasPrefix(candidate, current) {
		return verdictDiscard
	}
	return verdictNone
}

// recent collects up to window caption lines for speaker, newest first.
func (e *Engine) recent(speaker string) []*Line {
	var out []*Line
	for i := len(e.lines) - 1; i >= 0 && len(out) < e.window; i-- {
		l := e.lines[i]
		if l.Kind == KindCaption && l.Speaker == speaker {
			out = append(out, l)
		}
	}
	return out
}

// remember records a fragment fingerprint, trimming the set to the
// newest entries once it exceeds the cap.
func (e *Engine) remember(fp string) {
	e.seen[fp] = struct{}{}
	e.seenOrder = append(e.seenOrder, fp)
	if len(e.seenOrder) <= e.fingerprintCap {
		return
	}
	cut := len(e.seenOrder) - e.fingerprintKeep
	for _, old := range e.seenOrder[:cut] {
		delete(e.seen, old)
	}
	e.seenOrder = append([]string(nil), e.seenOrder[cut:]...)
}

// Restore appends an already reconciled line, registering its
// fingerprint so replayed fragments do not duplicate it. Used when
// resuming a saved session.
func (e *Engine) Restore(line Line) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := line
	e.lines = append(e.lines, &l)
	if line.Kind == KindCaption {
		e.remember(line.Speaker + ":" + line.Text)
	}
}

// Lines returns a snapshot of the transcript in order.
func (e *Engine) Lines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Line, len(e.lines))
	for i, l := range e.lines {
		out[i] = *l
	}
	return out
}

// Len reports the number of transcript lines.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lines)
}

func countTokens(s string) int {
	return len(strings.Fields(s))
}
