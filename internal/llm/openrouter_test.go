package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	cbterrors "github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/errors"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/observability"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		APIKey:  "sk-or-test-key",
		Timeout: 5 * time.Second,
		Retry:   cbterrors.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
	}
}

func completionBody(content string) string {
	return `{"choices":[{"message":{"content":` + quote(content) + `}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func quote(s string) string {
	return `"` + s + `"`
}

func decodeJSONBody(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

func newTestClient(t *testing.T, cfg Config) Client {
	t.Helper()
	client, err := NewOpenRouterClient(config.ModelSpec{ID: "m", Name: "test/model"}, SubjectDefaults(), cfg)
	require.NoError(t, err)
	return client
}

func TestCompleteReturnsContent(t *testing.T) {
	var sawAuth, sawPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization"))
		sawPath.Store(r.URL.Path)
		_, _ = w.Write([]byte(completionBody("The answer is 42.")))
	}))
	defer srv.Close()

	client := newTestClient(t, testConfig(srv.URL))
	got, err := client.Complete(context.Background(), "What is the answer?")
	require.NoError(t, err)
	require.Equal(t, "The answer is 42.", got)
	require.Equal(t, "Bearer sk-or-test-key", sawAuth.Load())
	require.Equal(t, "/chat/completions", sawPath.Load())
}

func TestCompleteRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(completionBody("recovered")))
	}))
	defer srv.Close()

	client := newTestClient(t, testConfig(srv.URL))
	got, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "recovered", got)
	require.EqualValues(t, 3, calls.Load())
}

func TestCompleteExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, testConfig(srv.URL))
	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	require.True(t, cbterrors.IsModelUnavailable(err))
	require.EqualValues(t, 3, calls.Load(), "exactly 3 attempts expected")

	var statusErr *cbterrors.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestCompleteEmptyContentIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(completionBody("")))
	}))
	defer srv.Close()

	client := newTestClient(t, testConfig(srv.URL))
	got, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	require.Empty(t, got)
	require.EqualValues(t, 1, calls.Load())
}

func TestCompleteSendsConfiguredSampling(t *testing.T) {
	type request struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var seen request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeJSONBody(r, &seen))
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	temp := 0.2
	spec := config.ModelSpec{ID: "j", Name: "judge/model", MaxTokens: 512, Temperature: &temp}
	client, err := NewOpenRouterClient(spec, JudgeDefaults(), testConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "compare these")
	require.NoError(t, err)
	require.Equal(t, "judge/model", seen.Model)
	require.Equal(t, 512, seen.MaxTokens)
	require.InDelta(t, 0.2, seen.Temperature, 1e-9)
	require.Len(t, seen.Messages, 1)
	require.Equal(t, "user", seen.Messages[0].Role)
	require.Equal(t, "compare these", seen.Messages[0].Content)
}

func TestMissingCredentialFailsAtConstruction(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.APIKey = "  "
	_, err := NewOpenRouterClient(config.ModelSpec{ID: "m", Name: "m"}, SubjectDefaults(), cfg)
	require.Error(t, err)
	require.True(t, cbterrors.IsConfiguration(err))
}

func TestOnUsageCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	var gotModel string
	var gotPrompt, gotCompletion int
	cfg := testConfig(srv.URL)
	cfg.OnUsage = func(model string, promptTokens, completionTokens int) {
		gotModel, gotPrompt, gotCompletion = model, promptTokens, completionTokens
	}

	client := newTestClient(t, cfg)
	_, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "test/model", gotModel)
	require.Equal(t, 10, gotPrompt)
	require.Equal(t, 5, gotCompletion)
}

func TestOnCompletionCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	var outcomes []string
	cfg := testConfig(srv.URL)
	cfg.OnCompletion = func(model, status string) {
		outcomes = append(outcomes, model+"="+status)
	}

	client := newTestClient(t, cfg)
	_, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, []string{"test/model=ok"}, outcomes)
}

func TestOnCompletionCallbackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var outcomes []string
	cfg := testConfig(srv.URL)
	cfg.OnCompletion = func(model, status string) {
		outcomes = append(outcomes, status)
	}

	client := newTestClient(t, cfg)
	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	require.Equal(t, []string{"error"}, outcomes, "one outcome per Complete, not per attempt")
}

func TestCompleteRecordsSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	cfg := testConfig(srv.URL)
	cfg.Tracer = provider.Tracer("test")

	client := newTestClient(t, cfg)
	_, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, observability.SpanCompletion, spans[0].Name())

	attrs := make(map[string]any, len(spans[0].Attributes()))
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "test/model", attrs[observability.AttrModel])
	require.EqualValues(t, 10, attrs[observability.AttrInputTokens])
	require.EqualValues(t, 5, attrs[observability.AttrOutputTokens])
}
