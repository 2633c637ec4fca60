package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Meeting
	if cfg.Meeting.Title == "" {
		errs = append(errs, errors.New("meeting.title is required"))
	}
	if cfg.Meeting.ID == "" {
		errs = append(errs, errors.New("meeting.id is required"))
	}

	// Capture
	if cfg.Capture.FeedURL == "" {
		errs = append(errs, errors.New("capture.feed_url is required"))
	}
	for _, iv := range []struct {
		name string
		d    Duration
	}{
		{"capture.caption_interval", cfg.Capture.CaptionInterval},
		{"capture.chat_interval", cfg.Capture.ChatInterval},
		{"capture.attendees_interval", cfg.Capture.AttendeesInterval},
		{"storage.snapshot_interval", cfg.Storage.SnapshotInterval},
		{"storage.retention", cfg.Storage.Retention},
		{"storage.resume_window", cfg.Storage.ResumeWindow},
	} {
		if iv.d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", iv.name))
		}
	}

	// Matcher
	switch cfg.Matcher.Strictness {
	case "", MatchStrict, MatchLoose:
	default:
		errs = append(errs, fmt.Errorf("matcher.strictness %q is invalid; valid values: strict, loose", cfg.Matcher.Strictness))
	}
	if cfg.Matcher.TokenSimilarity < 0 || cfg.Matcher.TokenSimilarity > 1 {
		errs = append(errs, fmt.Errorf("matcher.token_similarity %.2f is out of range [0, 1]", cfg.Matcher.TokenSimilarity))
	} else if cfg.Matcher.TokenSimilarity != 0 && cfg.Matcher.TokenSimilarity < 0.8 {
		slog.Warn("matcher.token_similarity is unusually low; distinct words will be treated as respellings",
			"token_similarity", cfg.Matcher.TokenSimilarity,
		)
	}
	if cfg.Matcher.Window < 0 {
		errs = append(errs, fmt.Errorf("matcher.window %d must not be negative", cfg.Matcher.Window))
	}
	if (cfg.Matcher.CoreSlack != 0 || cfg.Matcher.CoreFloor != 0) && cfg.Matcher.CoreMinLen <= 0 {
		errs = append(errs, errors.New("matcher.core_min_len must be set when core_slack or core_floor is"))
	}
	if (cfg.Matcher.WordRatio != 0 || cfg.Matcher.WordMinShared != 0) && cfg.Matcher.WordMinLen <= 0 {
		errs = append(errs, errors.New("matcher.word_min_len must be set when word_ratio or word_min_shared is"))
	}
	if cfg.Matcher.WordRatio < 0 || cfg.Matcher.WordRatio > 1 {
		errs = append(errs, fmt.Errorf("matcher.word_ratio %.2f is out of range [0, 1]", cfg.Matcher.WordRatio))
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" && cfg.Storage.CachePath == "" {
		errs = append(errs, errors.New("storage: either postgres_dsn or cache_path must be set"))
	}
	if cfg.Storage.PostgresDSN == "" && cfg.Storage.CachePath != "" {
		slog.Warn("storage.postgres_dsn is empty; sessions persist to the SQLite cache only")
	}
	if cfg.Storage.Retention != 0 && cfg.Storage.SnapshotInterval != 0 &&
		cfg.Storage.Retention < cfg.Storage.SnapshotInterval {
		slog.Warn("storage.retention is shorter than the snapshot interval; saved sessions expire almost immediately",
			"retention", cfg.Storage.Retention.Std(),
			"snapshot_interval", cfg.Storage.SnapshotInterval.Std(),
		)
	}

	return errors.Join(errs...)
}
