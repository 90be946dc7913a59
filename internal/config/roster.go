package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelSpec identifies one remote model and its sampling overrides. The ID is
// the stable key used throughout records and documents; specs are immutable
// once loaded.
type ModelSpec struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// EffectiveTemperature returns the configured temperature or def when the
// spec leaves it unset.
func (s ModelSpec) EffectiveTemperature(def float64) float64 {
	if s.Temperature != nil {
		return *s.Temperature
	}
	return def
}

// EffectiveMaxTokens returns the configured output budget or def when the
// spec leaves it unset.
func (s ModelSpec) EffectiveMaxTokens(def int) int {
	if s.MaxTokens > 0 {
		return s.MaxTokens
	}
	return def
}

// Roster is the declarative model collection for a run: the subjects under
// test, the single critique model, and the judge panel.
type Roster struct {
	ClientModels    []ModelSpec `yaml:"client_models"`
	CBTModel        ModelSpec   `yaml:"cbt_model"`
	EvaluatorModels []ModelSpec `yaml:"evaluator_models"`
}

// LoadRoster reads and validates a model roster from a YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model roster: %w", err)
	}

	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("decode model roster: %w", err)
	}

	if err := roster.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model roster %s: %w", path, err)
	}
	return &roster, nil
}

// Validate checks structural invariants: every spec names a model, ids are
// unique within their collection, and the required roles are filled.
func (r *Roster) Validate() error {
	if len(r.ClientModels) == 0 {
		return fmt.Errorf("client_models must list at least one model")
	}
	if strings.TrimSpace(r.CBTModel.Name) == "" {
		return fmt.Errorf("cbt_model is required")
	}
	if len(r.EvaluatorModels) == 0 {
		return fmt.Errorf("evaluator_models must list at least one model")
	}

	if err := validateSpecs("client_models", r.ClientModels); err != nil {
		return err
	}
	if err := validateSpecs("evaluator_models", r.EvaluatorModels); err != nil {
		return err
	}
	return validateSpecs("cbt_model", []ModelSpec{r.CBTModel})
}

func validateSpecs(section string, specs []ModelSpec) error {
	seen := make(map[string]struct{}, len(specs))
	for i, spec := range specs {
		if strings.TrimSpace(spec.ID) == "" {
			return fmt.Errorf("%s[%d]: id is required", section, i)
		}
		if strings.TrimSpace(spec.Name) == "" {
			return fmt.Errorf("%s[%d] (%s): name is required", section, i, spec.ID)
		}
		if _, dup := seen[spec.ID]; dup {
			return fmt.Errorf("%s: duplicate model id %q", section, spec.ID)
		}
		seen[spec.ID] = struct{}{}
	}
	return nil
}
