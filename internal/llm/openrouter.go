package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	cbterrors "github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/errors"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/observability"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/shared/jsonx"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/shared/token"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// openRouterClient speaks the OpenAI-compatible chat completions API with
// bounded fixed-delay retry. One instance serves exactly one model spec.
type openRouterClient struct {
	model       string
	temperature float64
	maxTokens   int

	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry        cbterrors.RetryConfig
	logger       logging.Logger
	onUsage      func(model string, promptTokens, completionTokens int)
	onCompletion func(model, status string)
	tracer       trace.Tracer
}

// OpenRouterFactory returns a Factory producing clients that share cfg's
// transport settings. A missing credential fails here, at construction,
// rather than on the first call.
func OpenRouterFactory(cfg Config) Factory {
	return func(spec config.ModelSpec, defaults Defaults) (Client, error) {
		return NewOpenRouterClient(spec, defaults, cfg)
	}
}

// NewOpenRouterClient builds a client bound to spec. Sampling parameters are
// resolved once from the spec and defaults and stay immutable afterward.
func NewOpenRouterClient(spec config.ModelSpec, defaults Defaults, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, cbterrors.NewConfigurationError(config.CredentialEnvVar,
			fmt.Errorf("missing env variable: %s", config.CredentialEnvVar))
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("cbtlab")
	}

	logger := logging.Named(logging.OrNop(cfg.Logger), "llm")
	logger.Debug("client ready: model=%s base_url=%s key=%s", spec.Name, baseURL, logging.MaskKey(cfg.APIKey))

	return &openRouterClient{
		model:        spec.Name,
		temperature:  spec.EffectiveTemperature(defaults.Temperature),
		maxTokens:    spec.EffectiveMaxTokens(defaults.MaxTokens),
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
		retry:        cfg.Retry,
		logger:       logger,
		onUsage:      cfg.OnUsage,
		onCompletion: cfg.OnCompletion,
		tracer:       tracer,
	}, nil
}

func (c *openRouterClient) Model() string {
	return c.model
}

// Complete sends prompt as a single user turn and returns the generated
// text. Transport failures, non-success statuses, and undecodable bodies
// are retried with a fixed delay; after the attempt budget is spent a
// ModelUnavailableError carrying the last failure is returned. A decoded
// response is final even when its content is empty.
func (c *openRouterClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := c.tracer.Start(ctx, observability.SpanCompletion,
		trace.WithAttributes(attribute.String(observability.AttrModel, c.model)))
	defer span.End()

	content, err := cbterrors.RetryWithResult(ctx, c.retry, c.logger, func(ctx context.Context) (string, error) {
		return c.attempt(ctx, prompt)
	})
	if err != nil {
		span.SetAttributes(observability.ErrorAttrs(err)...)
		c.reportOutcome("error")
		if ctx.Err() != nil {
			return "", err
		}
		attempts := c.retry.MaxAttempts
		if attempts <= 0 {
			attempts = cbterrors.DefaultRetryConfig().MaxAttempts
		}
		return "", &cbterrors.ModelUnavailableError{Model: c.model, Attempts: attempts, Err: err}
	}
	c.reportOutcome("ok")
	return content, nil
}

func (c *openRouterClient) reportOutcome(status string) {
	if c.onCompletion != nil {
		c.onCompletion(c.model, status)
	}
}

func (c *openRouterClient) attempt(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":       c.model,
		"messages":    []map[string]any{{"role": "user", "content": prompt}},
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
	}
	body, err := jsonx.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	c.logger.Debug("POST %s model=%s prompt_len=%d", endpoint, c.model, len(prompt))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("completion failed: status=%d body_len=%d", resp.StatusCode, len(respBody))
		return "", cbterrors.NewHTTPStatusError(resp.StatusCode, resp.Status, string(respBody))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := jsonx.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("api error: %s: %s", decoded.Error.Type, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := decoded.Choices[0].Message.Content
	c.recordUsage(ctx, prompt, content, decoded.Usage.PromptTokens, decoded.Usage.CompletionTokens)
	return content, nil
}

func (c *openRouterClient) recordUsage(ctx context.Context, prompt, content string, promptTokens, completionTokens int) {
	// Some gateways omit the usage block; fall back to local counting.
	if promptTokens == 0 {
		promptTokens = token.Count(prompt)
	}
	if completionTokens == 0 && content != "" {
		completionTokens = token.Count(content)
	}
	c.logger.Debug("completion done: model=%s usage=%d+%d tokens content_len=%d",
		c.model, promptTokens, completionTokens, len(content))
	trace.SpanFromContext(ctx).SetAttributes(
		observability.CompletionAttrs(c.model, promptTokens, completionTokens)...)
	if c.onUsage != nil {
		c.onUsage(c.model, promptTokens, completionTokens)
	}
}
