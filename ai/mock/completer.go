package mock

import "context"

// MockCompleter is a test double for ai.Completer.
// It allows custom behavior injection via a function field.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, a canned answer is returned.
	CompleteFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	callCount int
}

// NewMockCompleter creates a mock completer with default canned behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete returns the injected answer or a fixed placeholder.
func (m *MockCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.callCount++

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userPrompt)
	}

	return "mock answer", nil
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockCompleter) Reset() {
	m.callCount = 0
	m.CompleteFunc = nil
}
