package agent

import (
	"context"
	"encoding/json"
	"log"
	"sort"

	"github.com/prometheus-agent-platform/internal/anomaly"
)

// Score deductions per firing alert by severity label. Pending alerts
// subtract half; resolved alerts subtract nothing. Unlisted severities
// subtract nothing so the score stays auditable against the alert mix.
var alertDeductions = map[string]float64{
	"critical": 15,
	"warning":  8,
	"info":     2,
}

// Score deductions per detected anomaly by severity band.
var anomalyDeductions = map[anomaly.Severity]float64{
	anomaly.SeverityLow:      5,
	anomaly.SeverityMedium:   10,
	anomaly.SeverityHigh:     20,
	anomaly.SeverityCritical: 30,
}

// Fixed narrative used when the reasoning backend cannot be reached. The
// numeric score is never sacrificed to a narrative failure.
var (
	fallbackFindings        = []string{"Narrative analysis unavailable: reasoning backend could not be reached."}
	fallbackRecommendations = []string{"Review firing alerts and flagged anomalies manually."}
)

// HealthSynthesizer combines metric samples and active alerts into a
// single health assessment. The score and anomaly set are deterministic;
// only the findings and recommendations text comes from the reasoning
// backend.
type HealthSynthesizer struct {
	llm Generator
}

// NewHealthSynthesizer creates a synthesizer backed by the given generator.
func NewHealthSynthesizer(llm Generator) *HealthSynthesizer {
	return &HealthSynthesizer{llm: llm}
}

// Assess produces a health assessment for the given samples and alerts.
// It always returns a populated assessment: a reasoning-backend failure
// degrades the narrative to a fixed fallback, marked via Degraded.
func (s *HealthSynthesizer) Assess(ctx context.Context, samples SampleSet, alerts []Alert) *HealthAssessment {
	anomalies := DetectAnomalies(samples)
	score := ComputeScore(alerts, anomalies)

	assessment := &HealthAssessment{
		Score:     score,
		Anomalies: anomalies,
	}

	findings, recommendations, err := s.narrate(ctx, score, alerts, anomalies)
	if err != nil {
		log.Printf("Health narrative degraded to fallback: %v", err)
		assessment.Findings = fallbackFindings
		assessment.Recommendations = fallbackRecommendations
		assessment.Degraded = true
		return assessment
	}

	assessment.Findings = findings
	assessment.Recommendations = recommendations
	return assessment
}

// DetectAnomalies runs the statistical detector over every series in the
// sample set. Metric names are walked in sorted order so the anomaly list
// is reproducible.
func DetectAnomalies(samples SampleSet) []anomaly.Anomaly {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)

	var anomalies []anomaly.Anomaly
	for _, name := range names {
		anomalies = append(anomalies, anomaly.Detect(name, samples[name].Points)...)
	}
	return anomalies
}

// ComputeScore derives the 0-100 health score from the alert severity mix
// and the detected anomalies. It is a pure function so tests can assert
// exact values.
func ComputeScore(alerts []Alert, anomalies []anomaly.Anomaly) float64 {
	score := 100.0

	for _, alert := range alerts {
		deduction := alertDeductions[alert.Severity()]
		switch alert.State {
		case AlertStateFiring:
			score -= deduction
		case AlertStatePending:
			score -= deduction / 2
		}
	}

	for _, a := range anomalies {
		score -= anomalyDeductions[a.Severity]
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

type healthNarrative struct {
	Findings        []string `json:"findings"`
	Recommendations []string `json:"recommendations"`
}

// narrate asks the reasoning backend to put the computed numbers into
// words. The backend only narrates; it never alters the score.
func (s *HealthSynthesizer) narrate(ctx context.Context, score float64, alerts []Alert, anomalies []anomaly.Anomaly) ([]string, []string, error) {
	prompt := `Narrate the following system health assessment for an operator.
The score and anomaly list are final; do not recompute or contradict them.
Respond with JSON only: {"findings": ["<short factual statements>"], "recommendations": ["<ordered actions>"]}`

	alertSummaries := make([]map[string]string, 0, len(alerts))
	for _, alert := range alerts {
		alertSummaries = append(alertSummaries, map[string]string{
			"name":     alert.Name,
			"severity": alert.Severity(),
			"state":    string(alert.State),
		})
	}

	raw, err := s.llm.Generate(ctx, prompt, map[string]interface{}{
		"health_score": score,
		"alerts":       alertSummaries,
		"anomalies":    anomalies,
	})
	if err != nil {
		return nil, nil, err
	}

	var narrative healthNarrative
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &narrative); err != nil {
		// Free-text narration still beats the fallback notice.
		return SplitSteps(raw), nil, nil
	}
	return narrative.Findings, narrative.Recommendations, nil
}
