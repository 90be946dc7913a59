// Package llm issues single-prompt completion requests against an
// OpenAI-compatible chat completions endpoint. Each client is bound at
// construction to one model spec; sampling parameters never change after
// that.
package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	cbterrors "github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/errors"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
)

// Client is the completion contract every pipeline stage depends on.
// An empty returned string is a valid result, not a failure.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Defaults supplies the role-specific sampling fallbacks applied when a
// ModelSpec leaves temperature or max tokens unset. Subjects under test,
// the critique model, and judges each carry their own defaults.
type Defaults struct {
	Temperature float64
	MaxTokens   int
}

// SubjectDefaults are the sampling fallbacks for client models under test.
func SubjectDefaults() Defaults { return Defaults{Temperature: 0.7, MaxTokens: 2048} }

// CritiqueDefaults are the sampling fallbacks for the reflection model.
func CritiqueDefaults() Defaults { return Defaults{Temperature: 0.3, MaxTokens: 1024} }

// JudgeDefaults are the sampling fallbacks for evaluator models.
func JudgeDefaults() Defaults { return Defaults{Temperature: 0.2, MaxTokens: 1024} }

// Config carries the transport-level settings shared by every client built
// from it: endpoint, credential, timeout, and retry policy.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   cbterrors.RetryConfig
	Logger  logging.Logger

	// OnUsage, when set, receives token usage per completed call.
	OnUsage func(model string, promptTokens, completionTokens int)

	// OnCompletion, when set, receives the final outcome of every call
	// ("ok" or "error", after retries are exhausted).
	OnCompletion func(model, status string)

	// Tracer, when set, records one span per completion call.
	Tracer trace.Tracer
}

// Factory builds a Client for one model spec. Runners take a Factory rather
// than concrete clients so tests can inject scripted fakes.
type Factory func(spec config.ModelSpec, defaults Defaults) (Client, error)
