package types

import (
	"errors"
	"time"
)

// Conflict resolution policies.
const (
	PolicyPreferRecent    = "prefer_recent"
	PolicyPreferApple     = "prefer_apple"
	PolicyPreferSupernote = "prefer_supernote"
)

// knownPolicies is the set of policies Validate accepts.
var knownPolicies = map[string]bool{
	PolicyPreferRecent:    true,
	PolicyPreferApple:     true,
	PolicyPreferSupernote: true,
}

// CategoryMapping pins one supernote category to one apple list by native id.
type CategoryMapping struct {
	SupernoteID string `json:"supernote_id" yaml:"supernote_id"`
	AppleID     string `json:"apple_id" yaml:"apple_id"`
}

// Config enumerates exactly the options the engine recognizes. It is
// validated at startup; the engine never does free-form key lookups.
type Config struct {
	ConflictPolicy        string `json:"conflict_policy" yaml:"conflict_policy"`
	ConflictWindowSeconds int    `json:"conflict_window_seconds" yaml:"conflict_window_seconds"`

	SyncCompleted       bool `json:"sync_completed" yaml:"sync_completed"`
	CompletedMaxAgeDays int  `json:"completed_max_age_days" yaml:"completed_max_age_days"`
	DedupeRepeating     bool `json:"dedupe_repeating" yaml:"dedupe_repeating"`

	AutoCreateCategories bool              `json:"auto_create_categories" yaml:"auto_create_categories"`
	CategoryMappings     []CategoryMapping `json:"category_mappings" yaml:"category_mappings"`
}

// Config validation errors.
var (
	ErrPolicyUnknown      = errors.New("unknown conflict policy")
	ErrWindowNegative     = errors.New("conflict window must not be negative")
	ErrMaxAgeNegative     = errors.New("completed max age must not be negative")
	ErrMappingIncomplete  = errors.New("category mapping must name both sides")
	ErrMappingDuplicateID = errors.New("native id appears in two category mappings")
)

// DefaultConfig returns the configuration used when no option is set.
func DefaultConfig() Config {
	return Config{
		ConflictPolicy:        PolicyPreferRecent,
		ConflictWindowSeconds: 60,
		SyncCompleted:         true,
		CompletedMaxAgeDays:   180,
		DedupeRepeating:       true,
		AutoCreateCategories:  true,
	}
}

// ConflictWindow returns the simultaneity window as a duration.
func (c Config) ConflictWindow() time.Duration {
	return time.Duration(c.ConflictWindowSeconds) * time.Second
}

// Validate checks that the Config is well-formed, returning a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if !knownPolicies[c.ConflictPolicy] {
		return ErrPolicyUnknown
	}
	if c.ConflictWindowSeconds < 0 {
		return ErrWindowNegative
	}
	if c.CompletedMaxAgeDays < 0 {
		return ErrMaxAgeNegative
	}
	seenSupernote := make(map[string]bool)
	seenApple := make(map[string]bool)
	for _, m := range c.CategoryMappings {
		if m.SupernoteID == "" || m.AppleID == "" {
			return ErrMappingIncomplete
		}
		if seenSupernote[m.SupernoteID] || seenApple[m.AppleID] {
			return ErrMappingDuplicateID
		}
		seenSupernote[m.SupernoteID] = true
		seenApple[m.AppleID] = true
	}
	return nil
}
