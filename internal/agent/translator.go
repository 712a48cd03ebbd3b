package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Metric names embedded in the translation prompt are capped so the
	// prompt stays within the reasoning backend's token budget.
	metricSampleLimit = 50

	maxAlternativeQueries = 3

	// Confidence assumed when the backend omits or mangles its own estimate.
	defaultConfidence = 0.5
)

// QueryTranslator turns natural-language questions into PromQL
// expressions via the reasoning backend. It never executes queries; the
// caller owns execution and populates ExecutedResult.
type QueryTranslator struct {
	llm Generator
}

// NewQueryTranslator creates a translator backed by the given generator.
func NewQueryTranslator(llm Generator) *QueryTranslator {
	return &QueryTranslator{llm: llm}
}

// Translate converts a question into a primary PromQL expression plus
// ranked alternatives and a confidence score in [0,1].
func (t *QueryTranslator) Translate(ctx context.Context, question string, metricNames []string) (*TranslationResult, error) {
	const op = "translator.translate"

	if strings.TrimSpace(question) == "" {
		return nil, failf(op, TagInvalidInput, "question is empty")
	}
	if len(metricNames) == 0 {
		return nil, failf(op, TagInvalidInput, "no metric names available")
	}

	sample := metricNames
	if len(sample) > metricSampleLimit {
		sample = sample[:metricSampleLimit]
	}

	prompt := fmt.Sprintf(`Convert the following natural-language question into a PromQL expression.

Question: %q

Use only metric names from the available list. Respond with JSON only, in this shape:
{"query": "<primary PromQL expression>", "confidence": <number between 0 and 1>, "alternatives": ["<up to %d alternative expressions, most likely first>"]}`,
		question, maxAlternativeQueries)

	raw, err := t.llm.Generate(ctx, prompt, map[string]interface{}{
		"available_metrics": sample,
	})
	if err != nil {
		return nil, classify(op, err)
	}

	query, confidence, alternatives, err := parseTranslation(raw)
	if err != nil {
		return nil, failf(op, TagMalformedResponse, "parse backend response: %v", err)
	}

	return &TranslationResult{
		OriginalText:       question,
		GeneratedQuery:     query,
		Confidence:         confidence,
		AlternativeQueries: alternatives,
	}, nil
}

type translationPayload struct {
	Query        string      `json:"query"`
	Confidence   interface{} `json:"confidence"`
	Alternatives []string    `json:"alternatives"`
}

// parseTranslation extracts the generated query, a clamped confidence and
// at most three alternatives from the backend's raw response. A missing
// or non-numeric confidence coerces to the default rather than failing;
// a missing query does not.
func parseTranslation(raw string) (string, float64, []string, error) {
	var payload translationPayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return "", 0, nil, fmt.Errorf("not valid JSON: %w", err)
	}

	query := strings.TrimSpace(payload.Query)
	if query == "" {
		return "", 0, nil, fmt.Errorf("response contains no query")
	}

	confidence := coerceConfidence(payload.Confidence)

	alternatives := payload.Alternatives
	if len(alternatives) > maxAlternativeQueries {
		alternatives = alternatives[:maxAlternativeQueries]
	}

	return query, confidence, alternatives, nil
}

// coerceConfidence accepts a number or numeric string and clamps it to
// [0,1]; anything else falls back to the default.
func coerceConfidence(v interface{}) float64 {
	var confidence float64
	switch value := v.(type) {
	case float64:
		confidence = value
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return defaultConfidence
		}
		confidence = parsed
	default:
		return defaultConfidence
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// stripCodeFence removes a Markdown code fence if the backend wrapped its
// JSON in one.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// isRangeExpression reports whether a generated expression needs a range
// query to evaluate; instant queries cover everything else.
func isRangeExpression(expr string) bool {
	return strings.Contains(expr, "rate(") || strings.Contains(expr, "increase(")
}
