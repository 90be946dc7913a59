// Package tasks loads the declarative task collections an experiment runs
// against. Tasks are immutable after loading; validation happens here so
// runners never see a malformed task.
package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PreviousPlaceholder is the literal substring a longitudinal round
// template must contain; it is replaced by the previous round's committed
// output.
const PreviousPlaceholder = "{previous}"

// Task is one prompt a subject model answers. Longitudinal tasks also
// carry a round template for rounds after the first.
type Task struct {
	ID                  string `yaml:"id" json:"id"`
	Prompt              string `yaml:"prompt" json:"prompt"`
	RoundPromptTemplate string `yaml:"round_prompt_template,omitempty" json:"round_prompt_template,omitempty"`
}

// RoundPrompt substitutes the previous round's output into the round
// template. Pure string replacement; validation of the placeholder
// happened at load time.
func (t Task) RoundPrompt(previous string) string {
	return strings.ReplaceAll(t.RoundPromptTemplate, PreviousPlaceholder, previous)
}

// Sets groups the three task collections a config directory can define.
type Sets struct {
	Simple       []Task `yaml:"simple_tasks"`
	Advanced     []Task `yaml:"advanced_tasks"`
	Longitudinal []Task `yaml:"longitudinal_tasks"`
}

// LoadFile decodes one task-set YAML file without validation; callers
// validate the combined collections they actually use.
func LoadFile(path string) (Sets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sets{}, fmt.Errorf("read task set: %w", err)
	}
	var sets Sets
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return Sets{}, fmt.Errorf("decode task set %s: %w", path, err)
	}
	return sets, nil
}

// LoadSingleTurn loads and concatenates the simple and advanced task sets
// from configDir, in that order. A missing file contributes no tasks; an
// empty combined collection is an error.
func LoadSingleTurn(configDir string) ([]Task, error) {
	var combined []Task
	for _, name := range []string{"tasks_simple.yaml", "tasks_advanced.yaml"} {
		path := filepath.Join(configDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		sets, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		combined = append(combined, sets.Simple...)
		combined = append(combined, sets.Advanced...)
	}
	if len(combined) == 0 {
		return nil, fmt.Errorf("no single-turn tasks found in %s", configDir)
	}
	if err := Validate(combined, false); err != nil {
		return nil, err
	}
	return combined, nil
}

// LoadLongitudinal loads the longitudinal task set from configDir. Every
// task must carry a round template containing the previous-output
// placeholder.
func LoadLongitudinal(configDir string) ([]Task, error) {
	sets, err := LoadFile(filepath.Join(configDir, "tasks_longitudinal.yaml"))
	if err != nil {
		return nil, err
	}
	if len(sets.Longitudinal) == 0 {
		return nil, fmt.Errorf("no longitudinal tasks found in %s", configDir)
	}
	if err := Validate(sets.Longitudinal, true); err != nil {
		return nil, err
	}
	return sets.Longitudinal, nil
}

// Validate checks task invariants: unique non-empty ids, non-empty
// prompts, and, for longitudinal tasks, a round template containing
// PreviousPlaceholder.
func Validate(list []Task, longitudinal bool) error {
	seen := make(map[string]struct{}, len(list))
	for i, task := range list {
		if strings.TrimSpace(task.ID) == "" {
			return fmt.Errorf("task[%d]: id is required", i)
		}
		if _, dup := seen[task.ID]; dup {
			return fmt.Errorf("duplicate task id %q", task.ID)
		}
		seen[task.ID] = struct{}{}

		if strings.TrimSpace(task.Prompt) == "" {
			return fmt.Errorf("task %s: prompt is required", task.ID)
		}
		if longitudinal {
			if strings.TrimSpace(task.RoundPromptTemplate) == "" {
				return fmt.Errorf("task %s: round_prompt_template is required for longitudinal tasks", task.ID)
			}
			if !strings.Contains(task.RoundPromptTemplate, PreviousPlaceholder) {
				return fmt.Errorf("task %s: round_prompt_template must contain %s", task.ID, PreviousPlaceholder)
			}
		}
	}
	return nil
}
