package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationErrorWrapping(t *testing.T) {
	inner := errors.New("missing env variable: OPENROUTER_API_KEY")
	err := NewConfigurationError("api_key", inner)
	require.True(t, IsConfiguration(err))
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "api_key")
}

func TestModelUnavailableCarriesLastError(t *testing.T) {
	last := NewHTTPStatusError(503, "503 Service Unavailable", "overloaded")
	err := &ModelUnavailableError{Model: "openai/gpt-4o", Attempts: 3, Err: last}

	require.True(t, IsModelUnavailable(err))
	require.Contains(t, err.Error(), "after 3 attempts")

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, 503, statusErr.StatusCode)
}

func TestModelUnavailableThroughWrapping(t *testing.T) {
	err := fmt.Errorf("baseline condition: %w", &ModelUnavailableError{Model: "m", Attempts: 3, Err: errors.New("x")})
	require.True(t, IsModelUnavailable(err))
	require.False(t, IsConfiguration(err))
}

func TestMalformedReflectionRetainsBothAttempts(t *testing.T) {
	err := &MalformedReflectionError{
		Model:    "anthropic/claude-3.5-sonnet",
		Primary:  "not json",
		Repaired: "still not json",
		ParseErr: errors.New("invalid character 'n'"),
	}
	require.True(t, IsMalformedReflection(err))
	require.Equal(t, "not json", err.Primary)
	require.Equal(t, "still not json", err.Repaired)
}
