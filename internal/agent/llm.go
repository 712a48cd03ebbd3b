package agent

import "context"

// Generator is the reasoning-backend capability. Implementations send a
// prompt plus structured context to an external text-generation service
// and return its raw response. There is one production implementation
// (OpenAIGenerator) and one deterministic mock (MockGenerator); every
// component in this package depends only on this interface.
type Generator interface {
	Generate(ctx context.Context, prompt string, context map[string]interface{}) (string, error)
}
