package experiment

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/cbt"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/judge"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/llm"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/tasks"
)

const (
	reflectionJSON = `{"distortions":["unwarranted certainty"],"explanation":"Too confident.","guidance":"Hedge claims.","revision_instruction":"Qualify your certainty."}`
	scoreJSON      = `{"clarity":8,"coherence":8,"reasoning_depth":7,"safety":9,"overall":8,"comment":"Better grounded."}`
)

// subjectFactory scripts one subject client shared by spec id: the task
// prompt gets the scripted answer, anything else (the revision prompt)
// gets the revised text.
func subjectFactory(answers map[string]string, revised string) llm.Factory {
	return func(spec config.ModelSpec, defaults llm.Defaults) (llm.Client, error) {
		return &llm.MockClient{
			ModelName: spec.Name,
			Respond: func(prompt string) (string, error) {
				if answer, ok := answers[prompt]; ok {
					return answer, nil
				}
				return revised, nil
			},
		}, nil
	}
}

func newTestAgent() *cbt.Agent {
	return cbt.NewAgent(&llm.MockClient{Responses: []string{reflectionJSON}}, nil)
}

func newTestPanel(t *testing.T, response string) *judge.Panel {
	t.Helper()
	factory := func(spec config.ModelSpec, defaults llm.Defaults) (llm.Client, error) {
		return &llm.MockClient{ModelName: spec.Name, Responses: []string{response}}, nil
	}
	panel, err := judge.NewPanel([]config.ModelSpec{{ID: "judge-1", Name: "judge one"}}, factory, nil)
	if err != nil {
		t.Fatalf("NewPanel: %v", err)
	}
	return panel
}

func TestRunSingleModelSingleTask(t *testing.T) {
	task := tasks.Task{ID: "arith", Prompt: "What is 6 times 7?"}
	model := config.ModelSpec{ID: "subject-1", Name: "subject one"}
	factory := subjectFactory(map[string]string{task.Prompt: "The answer is 42."}, "The answer is 42, stated carefully.")

	runner := NewRunner(factory, newTestAgent(), nil)
	records, err := runner.Run(context.Background(), []config.ModelSpec{model}, []tasks.Task{task})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.ModelID != "subject-1" || rec.TaskID != "arith" {
		t.Fatalf("wrong identifiers: %+v", rec)
	}
	if rec.Conditions.Baseline != "The answer is 42." {
		t.Fatalf("baseline = %q", rec.Conditions.Baseline)
	}
	if rec.Conditions.CBT.Raw != "The answer is 42." {
		t.Fatalf("reflective raw = %q", rec.Conditions.CBT.Raw)
	}
	if rec.Conditions.CBT.Revised == "" {
		t.Fatal("revised output is empty")
	}
	if rec.Conditions.CBT.Reflection.RevisionInstruction != "Qualify your certainty." {
		t.Fatalf("reflection not carried: %+v", rec.Conditions.CBT.Reflection)
	}
	if len(rec.Evaluation) != 0 {
		t.Fatalf("evaluation should be empty before scoring, got %d", len(rec.Evaluation))
	}

	panel := newTestPanel(t, scoreJSON)
	if err := runner.AttachScores(context.Background(), panel, records); err != nil {
		t.Fatalf("AttachScores: %v", err)
	}
	if len(rec.Evaluation) != 1 {
		t.Fatalf("expected 1 score record, got %d", len(rec.Evaluation))
	}
	score, ok := rec.Evaluation[0].Value.Score()
	if !ok {
		t.Fatal("expected a parsed score")
	}
	if score.Overall != 8 {
		t.Fatalf("overall = %d", score.Overall)
	}
}

func TestRunFailedTaskSkipped(t *testing.T) {
	good := tasks.Task{ID: "good", Prompt: "Say hello."}
	bad := tasks.Task{ID: "bad", Prompt: "Trigger failure."}
	model := config.ModelSpec{ID: "subject-1", Name: "subject one"}

	factory := func(spec config.ModelSpec, defaults llm.Defaults) (llm.Client, error) {
		return &llm.MockClient{
			Respond: func(prompt string) (string, error) {
				if prompt == bad.Prompt {
					return "", fmt.Errorf("remote outage")
				}
				return "hello there", nil
			},
		}, nil
	}

	runner := NewRunner(factory, newTestAgent(), nil)
	records, err := runner.Run(context.Background(), []config.ModelSpec{model}, []tasks.Task{good, bad})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the failed task skipped, got %d records", len(records))
	}
	if records[0].TaskID != "good" {
		t.Fatalf("surviving record = %q", records[0].TaskID)
	}
}

func TestRunFailedModelDoesNotAffectSiblings(t *testing.T) {
	task := tasks.Task{ID: "t1", Prompt: "Answer briefly."}
	models := []config.ModelSpec{
		{ID: "healthy", Name: "healthy model"},
		{ID: "broken", Name: "broken model"},
	}

	factory := func(spec config.ModelSpec, defaults llm.Defaults) (llm.Client, error) {
		if spec.ID == "broken" {
			return &llm.MockClient{Errs: []error{fmt.Errorf("down")}, Responses: []string{""}}, nil
		}
		return &llm.MockClient{Responses: []string{"fine"}}, nil
	}

	runner := NewRunner(factory, newTestAgent(), nil)
	records, err := runner.Run(context.Background(), models, []tasks.Task{task})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 1 || records[0].ModelID != "healthy" {
		t.Fatalf("expected only the healthy model's record, got %+v", records)
	}
}

func TestRunFactoryErrorFailsFast(t *testing.T) {
	factory := func(spec config.ModelSpec, defaults llm.Defaults) (llm.Client, error) {
		return nil, fmt.Errorf("no credential")
	}
	runner := NewRunner(factory, newTestAgent(), nil)
	_, err := runner.Run(context.Background(), []config.ModelSpec{{ID: "m", Name: "m"}}, []tasks.Task{{ID: "t", Prompt: "p"}})
	if err == nil || !strings.Contains(err.Error(), "no credential") {
		t.Fatalf("expected construction error, got %v", err)
	}
}

func TestRunEmptyInputs(t *testing.T) {
	runner := NewRunner(subjectFactory(nil, ""), newTestAgent(), nil)
	if _, err := runner.Run(context.Background(), nil, []tasks.Task{{ID: "t", Prompt: "p"}}); err == nil {
		t.Fatal("expected error for empty model list")
	}
	if _, err := runner.Run(context.Background(), []config.ModelSpec{{ID: "m", Name: "m"}}, nil); err == nil {
		t.Fatal("expected error for empty task list")
	}
}

func TestAttachScoresCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(subjectFactory(nil, ""), newTestAgent(), nil)
	panel := newTestPanel(t, scoreJSON)
	records := []*Record{{ModelID: "m", TaskID: "t", Evaluation: []judge.ScoreRecord{}}}
	if err := runner.AttachScores(ctx, panel, records); err == nil {
		t.Fatal("expected cancellation error")
	}
}
