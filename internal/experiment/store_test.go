package experiment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/cbt"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/judge"
)

func sampleRecord() *Record {
	return &Record{
		ModelID:    "m1",
		ModelName:  "model one",
		TaskID:     "t1",
		TaskPrompt: "prompt",
		Conditions: ConditionResults{
			Baseline: "baseline text",
			CBT: ReflectiveResult{
				Raw: "raw text",
				Reflection: cbt.ReflectionResult{
					Distortions:         []string{"overconfidence"},
					Explanation:         "too sure",
					Guidance:            "hedge",
					RevisionInstruction: "qualify",
				},
				Revised: "revised text",
			},
		},
		Evaluation: []judge.ScoreRecord{
			{JudgeID: "j1", JudgeName: "judge one", Value: judge.NewUnparsed(), Raw: "garbled"},
		},
	}
}

func TestSingleTurnRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSingleTurn(dir, []*Record{sampleRecord()})
	if err != nil {
		t.Fatalf("WriteSingleTurn: %v", err)
	}
	if filepath.Base(path) != SingleTurnArtifact {
		t.Fatalf("artifact name = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	for _, key := range []string{`"condition_results"`, `"cbt"`, `"score_parsed": null`, `"score_raw"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("document missing %s:\n%s", key, data)
		}
	}

	records, err := ReadSingleTurn(path)
	if err != nil {
		t.Fatalf("ReadSingleTurn: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.Conditions.CBT.Revised != "revised text" {
		t.Fatalf("revised = %q", got.Conditions.CBT.Revised)
	}
	if got.Evaluation[0].Value.IsParsed() {
		t.Fatal("unparsed score must survive the round trip")
	}
}

func TestLongitudinalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	results := Results{
		"m1": {
			ModelName: "model one",
			Tasks: map[string]*TaskOutcome{
				"t1": {
					TaskPrompt:      "prompt",
					BaselineHistory: []RoundRecord{{Round: 1, Prompt: "prompt", Raw: "b1"}},
					CBTHistory: []RoundRecord{{
						Round: 1, Prompt: "prompt", Raw: "r1",
						Reflection:     &cbt.ReflectionResult{Distortions: []string{}, RevisionInstruction: "qualify"},
						RevisionPrompt: "revise", Revised: "v1",
					}},
					BaselineFinal:   "b1",
					CBTFinal:        "v1",
					FinalEvaluation: []judge.ScoreRecord{},
				},
			},
		},
	}

	path, err := WriteLongitudinal(dir, results)
	if err != nil {
		t.Fatalf("WriteLongitudinal: %v", err)
	}
	if filepath.Base(path) != LongitudinalArtifact {
		t.Fatalf("artifact name = %q", path)
	}

	got, err := ReadLongitudinal(path)
	if err != nil {
		t.Fatalf("ReadLongitudinal: %v", err)
	}
	task := got["m1"].Tasks["t1"]
	if task.CBTFinal != "v1" || task.BaselineFinal != "b1" {
		t.Fatalf("finals wrong: %+v", task)
	}
	if task.CBTHistory[0].Reflection == nil {
		t.Fatal("reflection lost in round trip")
	}
}

func TestWriteRunMeta(t *testing.T) {
	dir := t.TempDir()
	id := NewRunID()
	if id == "" {
		t.Fatal("empty run id")
	}
	path, err := WriteRunMeta(dir, RunMeta{RunID: id, Kind: "single_turn"})
	if err != nil {
		t.Fatalf("WriteRunMeta: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), id) {
		t.Fatalf("meta missing run id: %s", data)
	}
}

func TestWriteCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if _, err := WriteSingleTurn(dir, nil); err != nil {
		t.Fatalf("WriteSingleTurn: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, SingleTurnArtifact)); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
}
