// Package namefilter screens the names solutions are saved under.
package namefilter

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ErrNameRejected is wrapped by every rejection from Check.
var ErrNameRejected = errors.New("name not allowed")

// Config holds the name filter configuration
type Config struct {
	Enabled     bool     `yaml:"enabled"`
	MaxLength   int      `yaml:"max_length"`   // 0 means no limit
	BannedWords []string `yaml:"banned_words"` // partial, case-insensitive
	BannedNames []string `yaml:"banned_names"` // exact, case-insensitive
}

// NameFilter validates solution names against length, character and word rules
type NameFilter struct {
	enabled     bool
	maxLength   int
	bannedWords []string
	bannedNames map[string]struct{}
}

// New creates a NameFilter. A nil config gives a disabled filter.
func New(cfg *Config) *NameFilter {
	if cfg == nil {
		return &NameFilter{}
	}

	nf := &NameFilter{
		enabled:     cfg.Enabled,
		maxLength:   cfg.MaxLength,
		bannedWords: make([]string, 0, len(cfg.BannedWords)),
		bannedNames: make(map[string]struct{}, len(cfg.BannedNames)),
	}
	for _, word := range cfg.BannedWords {
		if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
			nf.bannedWords = append(nf.bannedWords, word)
		}
	}
	for _, name := range cfg.BannedNames {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			nf.bannedNames[name] = struct{}{}
		}
	}
	return nf
}

// LoadConfig loads name filter configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse name filter config: %w", err)
	}
	return &cfg, nil
}

// Check returns nil if name may be used, or an error wrapping
// ErrNameRejected that says why not. The empty name (an unnamed solution)
// always passes. A nil filter allows everything.
func (nf *NameFilter) Check(name string) error {
	if nf == nil || !nf.enabled {
		return nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	if nf.maxLength > 0 && utf8.RuneCountInString(name) > nf.maxLength {
		return fmt.Errorf("%w: longer than %d characters", ErrNameRejected, nf.maxLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control characters", ErrNameRejected)
		}
	}

	lower := strings.ToLower(name)
	if _, banned := nf.bannedNames[lower]; banned {
		return fmt.Errorf("%w: reserved name", ErrNameRejected)
	}
	for _, word := range nf.bannedWords {
		if strings.Contains(lower, word) {
			return fmt.Errorf("%w: contains a banned word", ErrNameRejected)
		}
	}
	return nil
}

// IsEnabled returns whether the filter is enabled
func (nf *NameFilter) IsEnabled() bool {
	return nf != nil && nf.enabled
}
