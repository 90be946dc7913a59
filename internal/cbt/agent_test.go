package cbt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	cbterrors "github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/errors"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/llm"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
)

const wellFormedCritique = `{
	"distortions": ["overgeneralization", "unwarranted certainty"],
	"explanation": "The answer asserts a universal rule from one example.",
	"guidance": "Qualify claims and cite the limits of the evidence.",
	"revision_instruction": "Rewrite the answer acknowledging counterexamples."
}`

func TestCritiqueParsesWellFormedResponse(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{wellFormedCritique}}
	agent := NewAgent(mock, logging.Nop())

	result, err := agent.Critique(context.Background(), "Everything is always true.")
	require.NoError(t, err)
	require.Equal(t, []string{"overgeneralization", "unwarranted certainty"}, result.Distortions)
	require.Equal(t, "Rewrite the answer acknowledging counterexamples.", result.RevisionInstruction)
	require.Equal(t, 1, mock.Calls())

	// The candidate output must be embedded in the detection prompt.
	require.Contains(t, mock.Prompts()[0], "Everything is always true.")
}

func TestCritiqueDefaultsMissingFields(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{`{"explanation": "partial critique"}`}}
	agent := NewAgent(mock, logging.Nop())

	result, err := agent.Critique(context.Background(), "output")
	require.NoError(t, err)
	require.NotNil(t, result.Distortions)
	require.Empty(t, result.Distortions)
	require.Empty(t, result.Guidance)
	require.Equal(t, DefaultRevisionInstruction, result.RevisionInstruction)
}

func TestCritiqueDefaultsEmptyRevisionInstruction(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{`{"distortions": [], "revision_instruction": "  "}`}}
	agent := NewAgent(mock, logging.Nop())

	result, err := agent.Critique(context.Background(), "output")
	require.NoError(t, err)
	require.Equal(t, DefaultRevisionInstruction, result.RevisionInstruction)
}

func TestCritiqueRepairsNonJSONResponse(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		"Sure! Here is my analysis in plain prose.",
		`{"distortions": ["false certainty"], "revision_instruction": "Hedge the claims."}`,
	}}
	agent := NewAgent(mock, logging.Nop())

	result, err := agent.Critique(context.Background(), "output")
	require.NoError(t, err)
	require.Equal(t, "Hedge the claims.", result.RevisionInstruction)
	require.Equal(t, 2, mock.Calls())

	// The repair prompt must carry the unparseable primary text.
	require.Contains(t, mock.Prompts()[1], "Sure! Here is my analysis in plain prose.")
}

func TestCritiqueFailsWhenRepairUnparseable(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{"prose one", "prose two"}}
	agent := NewAgent(mock, logging.Nop())

	_, err := agent.Critique(context.Background(), "output")
	require.Error(t, err)
	require.True(t, cbterrors.IsMalformedReflection(err))

	var malformed *cbterrors.MalformedReflectionError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, "prose one", malformed.Primary)
	require.Equal(t, "prose two", malformed.Repaired)
	require.Equal(t, 2, mock.Calls(), "repair is one extra attempt, not a loop")
}

func TestCritiquePropagatesCallFailure(t *testing.T) {
	boom := errors.New("transport down")
	mock := &llm.MockClient{Errs: []error{boom}}
	agent := NewAgent(mock, logging.Nop())

	_, err := agent.Critique(context.Background(), "output")
	require.ErrorIs(t, err, boom)
}

func TestBuildRevisionPromptIsDeterministic(t *testing.T) {
	first := BuildRevisionPrompt("Tighten the argument.", "My previous answer.")
	second := BuildRevisionPrompt("Tighten the argument.", "My previous answer.")
	require.Equal(t, first, second)
	require.Contains(t, first, "Tighten the argument.")
	require.Contains(t, first, "My previous answer.")
}

func TestBuildRevisionPromptAcceptsEmptyPrevious(t *testing.T) {
	prompt := BuildRevisionPrompt("Do better.", "")
	require.Contains(t, prompt, "Do better.")
	require.True(t, strings.HasPrefix(prompt, "You produced a previous answer"))
}
