package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Thresholds is the staleness table: the number of days without activity
// after which a deal in a given stage counts as stale.
type Thresholds struct {
	Default int            `yaml:"default"`
	Stages  map[string]int `yaml:"stages"`
}

// DefaultThresholds returns the production threshold table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Default: 5,
		Stages: map[string]int{
			"discovery":     7,
			"qualification": 5,
			"proposal":      5,
			"negotiation":   3,
			"contract sent": 2,
		},
	}
}

// LoadThresholds reads a YAML threshold table from path. An empty path yields
// DefaultThresholds. Stages missing from the file keep their default value.
func LoadThresholds(path string) (Thresholds, error) {
	out := DefaultThresholds()
	if strings.TrimSpace(path) == "" {
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read staleness config: %w", err)
	}

	var file struct {
		Default *int           `yaml:"default"`
		Stages  map[string]int `yaml:"stages"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Thresholds{}, fmt.Errorf("parse staleness config: %w", err)
	}

	if file.Default != nil {
		if *file.Default < 0 {
			return Thresholds{}, fmt.Errorf("staleness config: default must not be negative")
		}
		out.Default = *file.Default
	}
	for stage, days := range file.Stages {
		if days < 0 {
			return Thresholds{}, fmt.Errorf("staleness config: stage %q must not be negative", stage)
		}
		out.Stages[FoldStage(stage)] = days
	}

	return out, nil
}

// FoldStage normalizes a deal stage name for threshold lookup.
func FoldStage(stage string) string {
	return cases.Fold().String(strings.TrimSpace(stage))
}

// ThresholdFor returns the threshold for stage, or Default when the stage is
// not listed.
func (t Thresholds) ThresholdFor(stage string) int {
	if days, ok := t.Stages[FoldStage(stage)]; ok {
		return days
	}
	return t.Default
}
