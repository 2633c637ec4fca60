package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/doron007/chimescribe/internal/config"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: info
meeting:
  title: "Weekly Sync"
  id: "1234 5678 90"
  organizer: "Doe, Jane"
capture:
  feed_url: "wss://relay.example.com/feed"
  caption_interval: 1s
  chat_interval: 2s
storage:
  postgres_dsn: "postgres://localhost/chimescribe"
  cache_path: "/tmp/chimescribe.db"
  snapshot_interval: 10s
  retention: 24h
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Meeting.Title != "Weekly Sync" {
		t.Errorf("meeting.title = %q", cfg.Meeting.Title)
	}
	if cfg.Capture.CaptionInterval.Std() != time.Second {
		t.Errorf("caption_interval = %v, want 1s", cfg.Capture.CaptionInterval.Std())
	}
	if cfg.Storage.Retention.Std() != 24*time.Hour {
		t.Errorf("retention = %v, want 24h", cfg.Storage.Retention.Std())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	yaml := validYAML + "\nunexpected_key: true\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_BadDuration(t *testing.T) {
	t.Parallel()

	yaml := `
meeting:
  title: x
  id: y
capture:
  feed_url: "wss://relay.example.com/feed"
  caption_interval: fast
storage:
  cache_path: "/tmp/c.db"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for bad duration, got nil")
	}
	if !strings.Contains(err.Error(), "duration") {
		t.Errorf("error should mention duration, got: %v", err)
	}
}

func TestValidate_MissingMeetingAndFeed(t *testing.T) {
	t.Parallel()

	yaml := `
storage:
  cache_path: "/tmp/c.db"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"meeting.title", "meeting.id", "capture.feed_url"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_NoStoreConfigured(t *testing.T) {
	t.Parallel()

	yaml := `
meeting:
  title: x
  id: y
capture:
  feed_url: "wss://relay.example.com/feed"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error when neither store is configured, got nil")
	}
	if !strings.Contains(err.Error(), "postgres_dsn or cache_path") {
		t.Errorf("error should mention store settings, got: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:  config.ServerConfig{LogLevel: "verbose"},
		Meeting: config.MeetingConfig{Title: "x", ID: "y"},
		Capture: config.CaptureConfig{FeedURL: "wss://relay.example.com/feed"},
		Storage: config.StorageConfig{CachePath: "/tmp/c.db"},
	}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_TokenSimilarityRange(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Meeting: config.MeetingConfig{Title: "x", ID: "y"},
		Capture: config.CaptureConfig{FeedURL: "wss://relay.example.com/feed"},
		Matcher: config.MatcherConfig{TokenSimilarity: 1.5},
		Storage: config.StorageConfig{CachePath: "/tmp/c.db"},
	}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "token_similarity") {
		t.Errorf("error should mention token_similarity, got: %v", err)
	}
}

func TestValidate_MatcherStrictness(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Meeting: config.MeetingConfig{Title: "x", ID: "y"},
		Capture: config.CaptureConfig{FeedURL: "wss://relay.example.com/feed"},
		Matcher: config.MatcherConfig{Strictness: "fuzzy"},
		Storage: config.StorageConfig{CachePath: "/tmp/c.db"},
	}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "strictness") {
		t.Errorf("error should mention strictness, got: %v", err)
	}

	for _, level := range []string{"", config.MatchStrict, config.MatchLoose} {
		cfg.Matcher.Strictness = level
		if err := config.Validate(cfg); err != nil {
			t.Errorf("strictness %q rejected: %v", level, err)
		}
	}
}

func TestValidate_MatcherThresholdGroups(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Meeting: config.MeetingConfig{Title: "x", ID: "y"},
		Capture: config.CaptureConfig{FeedURL: "wss://relay.example.com/feed"},
		Matcher: config.MatcherConfig{WordRatio: 0.8},
		Storage: config.StorageConfig{CachePath: "/tmp/c.db"},
	}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "word_min_len") {
		t.Errorf("error should mention word_min_len, got: %v", err)
	}

	cfg.Matcher = config.MatcherConfig{CoreSlack: 3}
	err = config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "core_min_len") {
		t.Errorf("error should mention core_min_len, got: %v", err)
	}

	cfg.Matcher = config.MatcherConfig{
		Strictness: config.MatchLoose,
		CoreMinLen: 10, CoreSlack: 5, CoreFloor: 10,
		WordMinLen: 15, WordRatio: 0.7, WordMinShared: 3,
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("complete threshold groups rejected: %v", err)
	}
}

func TestLogLevelSlog(t *testing.T) {
	t.Parallel()

	if config.LogDebug.Slog().String() != "DEBUG" {
		t.Errorf("debug maps to %v", config.LogDebug.Slog())
	}
	if config.LogLevel("").Slog().String() != "INFO" {
		t.Errorf("empty level maps to %v", config.LogLevel("").Slog())
	}
}
