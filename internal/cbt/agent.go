// Package cbt implements the reflection agent: it critiques a model output
// for cognitive-style distortions and derives a concrete revision
// instruction the original model can follow.
package cbt

import (
	"context"
	"fmt"
	"strings"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	cbterrors "github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/errors"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/llm"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/shared/jsonx"
)

// ReflectionResult is a parsed critique. RevisionInstruction is always
// non-empty after defaulting; the result is immutable once produced.
type ReflectionResult struct {
	Distortions         []string `json:"distortions"`
	Explanation         string   `json:"explanation"`
	Guidance            string   `json:"guidance"`
	RevisionInstruction string   `json:"revision_instruction"`
}

// Agent runs critiques against one fixed reflection model.
type Agent struct {
	client llm.Client
	logger logging.Logger
}

// NewAgent creates an Agent on an already-constructed client.
func NewAgent(client llm.Client, logger logging.Logger) *Agent {
	return &Agent{client: client, logger: logging.Named(logging.OrNop(logger), "cbt")}
}

// NewAgentFromSpec builds the reflection client from spec via factory,
// applying critique sampling defaults.
func NewAgentFromSpec(spec config.ModelSpec, factory llm.Factory, logger logging.Logger) (*Agent, error) {
	client, err := factory(spec, llm.CritiqueDefaults())
	if err != nil {
		return nil, fmt.Errorf("construct reflection client: %w", err)
	}
	return NewAgent(client, logger), nil
}

// Critique sends the distortion-detection prompt embedding output and
// decodes the structured critique. An unparseable response gets one repair
// pass (reformat to JSON, meaning preserved); if that too is unparseable
// the call fails with MalformedReflectionError. A parseable but partial
// response is completed with deterministic defaults instead.
func (a *Agent) Critique(ctx context.Context, output string) (ReflectionResult, error) {
	raw, err := a.client.Complete(ctx, fmt.Sprintf(detectionPrompt, output))
	if err != nil {
		return ReflectionResult{}, fmt.Errorf("critique call: %w", err)
	}

	var result ReflectionResult
	parseErr := jsonx.DecodeLenient(raw, &result)
	if parseErr == nil {
		return withDefaults(result), nil
	}

	a.logger.Warn("critique from %s returned non-JSON, attempting repair", a.client.Model())
	repaired, err := a.client.Complete(ctx, fmt.Sprintf(repairPrompt, raw))
	if err != nil {
		return ReflectionResult{}, fmt.Errorf("critique repair call: %w", err)
	}

	result = ReflectionResult{}
	if repairParseErr := jsonx.DecodeLenient(repaired, &result); repairParseErr != nil {
		return ReflectionResult{}, &cbterrors.MalformedReflectionError{
			Model:    a.client.Model(),
			Primary:  raw,
			Repaired: repaired,
			ParseErr: repairParseErr,
		}
	}
	return withDefaults(result), nil
}

func withDefaults(r ReflectionResult) ReflectionResult {
	if r.Distortions == nil {
		r.Distortions = []string{}
	}
	if strings.TrimSpace(r.RevisionInstruction) == "" {
		r.RevisionInstruction = DefaultRevisionInstruction
	}
	return r
}

// BuildRevisionPrompt wraps the revision instruction and the previous
// answer into the second-pass generation prompt. Pure template
// substitution; an empty previous answer is valid input.
func BuildRevisionPrompt(instruction, previous string) string {
	return fmt.Sprintf(revisionWrapper, previous, instruction)
}
