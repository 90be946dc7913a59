// Package experiment orchestrates baseline-versus-reflective runs and owns
// the durable result documents. Record shapes here are wire-stable: field
// names match the documents downstream tooling already reads.
package experiment

import (
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/cbt"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/judge"
)

// ReflectiveResult holds the three stages of one reflective pass.
type ReflectiveResult struct {
	Raw        string               `json:"raw"`
	Reflection cbt.ReflectionResult `json:"reflection"`
	Revised    string               `json:"revised"`
}

// ConditionResults pairs the two experimental conditions for one task.
type ConditionResults struct {
	Baseline string           `json:"baseline"`
	CBT      ReflectiveResult `json:"cbt"`
}

// Record is one fully completed (model, task) unit of a single-turn run.
// Evaluation is empty until AttachScores runs, and stays empty when the
// scoring pass fails for this record.
type Record struct {
	ModelID    string              `json:"model_id"`
	ModelName  string              `json:"model_name"`
	TaskID     string              `json:"task_id"`
	TaskPrompt string              `json:"task_prompt"`
	Conditions ConditionResults    `json:"condition_results"`
	Evaluation []judge.ScoreRecord `json:"evaluation"`
}

// RoundRecord is one committed round of a longitudinal condition. The
// reflective fields are set only for the cbt condition.
type RoundRecord struct {
	Round          int                   `json:"round"`
	Prompt         string                `json:"prompt"`
	Raw            string                `json:"raw"`
	Reflection     *cbt.ReflectionResult `json:"reflection,omitempty"`
	RevisionPrompt string                `json:"revision_prompt,omitempty"`
	Revised        string                `json:"revised,omitempty"`
}

// TaskOutcome is the full longitudinal history of one (model, task) unit.
type TaskOutcome struct {
	TaskPrompt      string              `json:"task_prompt"`
	BaselineHistory []RoundRecord       `json:"baseline_history"`
	CBTHistory      []RoundRecord       `json:"cbt_history"`
	BaselineFinal   string              `json:"baseline_final"`
	CBTFinal        string              `json:"cbt_final"`
	FinalEvaluation []judge.ScoreRecord `json:"final_evaluation"`
}

// ModelOutcome groups a model's longitudinal task outcomes.
type ModelOutcome struct {
	ModelName string                  `json:"model_name"`
	Tasks     map[string]*TaskOutcome `json:"tasks"`
}

// Results is the longitudinal document, keyed by model id.
type Results map[string]*ModelOutcome
