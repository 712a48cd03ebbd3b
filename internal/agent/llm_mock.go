package agent

import (
	"context"
	"strings"
)

// MockGenerator provides deterministic responses for tests and for
// running the stack without a reasoning-backend credential.
type MockGenerator struct{}

// NewMockGenerator creates a new mock reasoning backend.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a canned response matching the request shape implied
// by the prompt.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, structured map[string]interface{}) (string, error) {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "promql"):
		return `{"query": "up", "confidence": 0.5, "alternatives": ["sum(up)"]}`, nil
	case strings.Contains(lower, "root cause"):
		return `{"root_cause": "The alert threshold was crossed; the related metrics suggest sustained resource pressure on the affected instance.",
"remediation_steps": ["Check the affected instance's recent deployments", "Inspect resource limits and current utilization", "Scale out or rebalance load if pressure persists"]}`, nil
	case strings.Contains(lower, "health"):
		return `{"findings": ["Mock analysis: alert and anomaly counts are reflected in the score."],
"recommendations": ["Review firing alerts ordered by severity."]}`, nil
	case strings.Contains(lower, "monitoring"):
		return "Consider adding latency histograms and saturation metrics for each service, plus alerting rules on error-budget burn rates.", nil
	default:
		return "I can answer questions about your metrics, assess system health, and investigate alerts. Ask me about a specific metric or alert.", nil
	}
}
