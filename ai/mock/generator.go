package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/poiesic/ragdir/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate and GenerateStream if set.
	// If nil, the answer echoes the question and context size.
	GenerateFunc func(ctx context.Context, req ai.GenerateRequest) (string, error)

	// FragmentSize controls how GenerateStream splits the answer.
	// Zero streams one word at a time.
	FragmentSize int

	mu        sync.Mutex
	callCount int
	requests  []ai.GenerateRequest
}

// NewMockGenerator creates a mock generator with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns the answer for req.
func (m *MockGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	m.record(req)
	return m.answer(ctx, req)
}

// GenerateStream splits the answer into fragments and delivers them in order.
func (m *MockGenerator) GenerateStream(ctx context.Context, req ai.GenerateRequest, onFragment ai.FragmentFunc) (string, error) {
	m.record(req)

	answer, err := m.answer(ctx, req)
	if err != nil {
		return "", err
	}

	for _, fragment := range m.split(answer) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if onFragment != nil {
			if err := onFragment(ctx, fragment); err != nil {
				return "", err
			}
		}
	}
	return answer, nil
}

func (m *MockGenerator) answer(ctx context.Context, req ai.GenerateRequest) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Default: echo the question so tests can assert on it
	return fmt.Sprintf("answer to %q using %d characters of context", req.Question, len(req.Context)), nil
}

func (m *MockGenerator) split(answer string) []string {
	if m.FragmentSize <= 0 {
		words := strings.SplitAfter(answer, " ")
		return words
	}
	var fragments []string
	runes := []rune(answer)
	for start := 0; start < len(runes); start += m.FragmentSize {
		end := min(start+m.FragmentSize, len(runes))
		fragments = append(fragments, string(runes[start:end]))
	}
	return fragments
}

func (m *MockGenerator) record(req ai.GenerateRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.requests = append(m.requests, req)
}

// CallCount returns the number of generation calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request, or the zero value if none.
func (m *MockGenerator) LastRequest() ai.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.GenerateRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears the call count, recorded requests and custom functions.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requests = nil
	m.GenerateFunc = nil
}
