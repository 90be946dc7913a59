package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient implements Client with scripted behavior for tests. Responses
// are either fixed per call index or computed from the prompt via Respond.
type MockClient struct {
	ModelName string

	// Responses are returned in order; when exhausted the last entry
	// repeats. Ignored when Respond is set.
	Responses []string

	// Errs pairs with call indices; a nil entry means that call succeeds.
	Errs []error

	// Respond, when set, computes the response from the prompt.
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	calls   int
	prompts []string
}

func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Respond != nil {
		return m.Respond(prompt)
	}
	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return "", m.Errs[idx]
	}
	if len(m.Responses) == 0 {
		return "", fmt.Errorf("mock client %s has no scripted responses", m.Model())
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns the prompts seen so far, in call order.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
