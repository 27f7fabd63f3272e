package medverify

import (
	"context"
	"sync"
)

// MockService is a test double for Service.
// Each method can be overridden with a custom function.
// If not overridden, methods return sensible defaults.
// Thread-safe for use in concurrent tests.
type MockService struct {
	OCRFunc        func(ctx context.Context, image []byte, contentType, sessionID string) *OCRResult
	VerifyFunc     func(ctx context.Context, nie, text, sessionID string) *VerifyResult
	AgentFunc      func(ctx context.Context, sessionID, text string) *AgentResult
	ConfiguredFunc func() bool

	mu sync.Mutex

	// Calls tracks all method invocations for assertions
	Calls []MockCall
}

// MockCall records a method call for test assertions.
type MockCall struct {
	Method string
	Args   []any
}

// Ensure MockService implements Service
var _ Service = (*MockService)(nil)

func (m *MockService) OCR(ctx context.Context, image []byte, contentType, sessionID string) *OCRResult {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "OCR", Args: []any{len(image), contentType, sessionID}})
	fn := m.OCRFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, image, contentType, sessionID)
	}
	return NewOCRResult(map[string]any{
		"title_text":  "Paracetamol 500 mg",
		"bpom_number": "DBL1234567890A1",
	})
}

func (m *MockService) Verify(ctx context.Context, nie, text, sessionID string) *VerifyResult {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Verify", Args: []any{nie, text, sessionID}})
	fn := m.VerifyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, nie, text, sessionID)
	}
	return NewVerifyResult(map[string]any{
		"status": "registered",
		"source": "mock",
	})
}

func (m *MockService) Agent(ctx context.Context, sessionID, text string) *AgentResult {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Agent", Args: []any{sessionID, text}})
	fn := m.AgentFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, sessionID, text)
	}
	return NewAgentResult(map[string]any{"reply": "mock reply"})
}

func (m *MockService) Configured() bool {
	m.mu.Lock()
	fn := m.ConfiguredFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return true
}

// CallsTo returns the recorded calls to the named method.
func (m *MockService) CallsTo(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var calls []MockCall
	for _, c := range m.Calls {
		if c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}
