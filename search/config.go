package search

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the search and heuristic knobs.
type Config struct {
	// Depth is the number of plies searched when an opponent is present.
	Depth int `yaml:"depth"`

	// HealthThreshold switches the heuristic into food-seeking mode when our
	// health drops below it.
	HealthThreshold int32 `yaml:"health_threshold"`

	// NeckPenalty is applied when both snakes' neck cells coincide after a move.
	NeckPenalty float64 `yaml:"neck_penalty"`

	// Food closer than ContestRadius to an opponent head has its
	// inverse-distance term divided by ContestDivisor.
	ContestRadius  int32   `yaml:"contest_radius"`
	ContestDivisor float64 `yaml:"contest_divisor"`

	// Parallel fans the root moves out over goroutines.
	Parallel bool `yaml:"parallel"`

	// RootedEvaluation scores graded leaves from our snake's perspective
	// instead of the perspective of the snake whose turn it is.
	RootedEvaluation bool `yaml:"rooted_evaluation"`
}

func DefaultConfig() Config {
	return Config{
		Depth:           4,
		HealthThreshold: 90,
		NeckPenalty:     100,
		ContestRadius:   3,
		ContestDivisor:  2,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Depth < 1 {
		errs = append(errs, fmt.Errorf("depth must be >= 1, got %d", c.Depth))
	}
	if c.HealthThreshold < 0 {
		errs = append(errs, fmt.Errorf("health_threshold must be >= 0, got %d", c.HealthThreshold))
	}
	if c.NeckPenalty < 0 {
		errs = append(errs, fmt.Errorf("neck_penalty must be >= 0, got %g", c.NeckPenalty))
	}
	if c.ContestRadius < 0 {
		errs = append(errs, fmt.Errorf("contest_radius must be >= 0, got %d", c.ContestRadius))
	}
	if c.ContestDivisor <= 0 {
		errs = append(errs, fmt.Errorf("contest_divisor must be > 0, got %g", c.ContestDivisor))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML file on top of DefaultConfig. Unknown keys are
// rejected so typos in tuning files surface immediately.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read search config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse search config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("search config %s: %w", path, err)
	}
	return cfg, nil
}
