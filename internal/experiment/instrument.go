package experiment

import (
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	cbterrors "github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/errors"
)

// noopTracer is the default for uninstrumented runners; span calls stay
// unconditional either way.
func noopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("cbtlab")
}

// failureReason labels a dropped unit by error class for the failure
// counter.
func failureReason(err error) string {
	switch {
	case cbterrors.IsModelUnavailable(err):
		return "model_unavailable"
	case cbterrors.IsMalformedReflection(err):
		return "malformed_reflection"
	default:
		return "other"
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
