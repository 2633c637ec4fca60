package store_test

import (
	"testing"
	"time"

	"github.com/doron007/chimescribe/pkg/store"
)

func TestGuardContent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name               string
		existing, incoming string
		want               string
	}{
		{"both empty", "", "", ""},
		{"existing empty", "", "a\nb", "a\nb"},
		{"incoming empty keeps existing", "a\nb", "", "a\nb"},
		{"incoming shorter keeps existing", "a\nb\nc", "a\nb", "a\nb\nc"},
		{"incoming equal replaces", "a\nb", "x\ny", "x\ny"},
		{"incoming longer replaces", "a\nb", "a\nb\nc", "a\nb\nc"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := store.GuardContent(tc.existing, tc.incoming); got != tc.want {
				t.Errorf("GuardContent(%q, %q)=%q, want %q", tc.existing, tc.incoming, got, tc.want)
			}
		})
	}
}

func TestGuardRecord(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	existing := store.Record{
		ID:         "s1",
		Transcript: "line1\nline2\nline3",
		Chat:       "c1",
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	incoming := store.Record{
		ID:         "s1",
		Transcript: "line1",
		Chat:       "c1\nc2",
		CreatedAt:  updated,
		UpdatedAt:  updated,
	}

	got := store.GuardRecord(existing, incoming)
	if got.Transcript != existing.Transcript {
		t.Errorf("Transcript=%q, want preserved longer buffer", got.Transcript)
	}
	if got.Chat != incoming.Chat {
		t.Errorf("Chat=%q, want grown buffer", got.Chat)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt=%v, want original %v", got.CreatedAt, created)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt=%v, want incoming %v", got.UpdatedAt, updated)
	}
}

func TestRecordEmpty(t *testing.T) {
	t.Parallel()

	if !(store.Record{}).Empty() {
		t.Error("zero record should be empty")
	}
	if (store.Record{Chat: "hi"}).Empty() {
		t.Error("record with chat content should not be empty")
	}
	// Combined is derived content; it alone does not make a record
	// worth saving.
	if !(store.Record{Combined: "only combined"}).Empty() {
		t.Error("record with only combined content should still be empty")
	}
}
