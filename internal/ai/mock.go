package ai

import (
	"context"
	"sync"
)

const mockResponse = "```json\n" + `{
  "enhancedDescription": "Mock analysis: the reported behaviour needs a technical review.",
  "suggestedSkills": ["troubleshooting", "customer-support"],
  "priority": "medium",
  "category": "Other_Technical",
  "subCategory": "General",
  "complexityScore": 4,
  "estimatedResolutionTime": "1-2 business days",
  "sentiment": "Neutral",
  "keywords": ["mock"],
  "affectedSystems": ["N/A"],
  "rootCauseHypothesis": "Not analysed in mock mode.",
  "recommendedAction": "Review the ticket manually."
}` + "\n```"

// MockGenerator returns a fixed completion and records prompts.
type MockGenerator struct {
	mu       sync.Mutex
	Response string
	Err      error
	prompts  []string
}

var _ Generator = (*MockGenerator)(nil)

// NewMockGenerator returns a generator that answers every prompt with a canned classification.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Response: mockResponse}
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls returns how many prompts were received.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns the received prompts in order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
