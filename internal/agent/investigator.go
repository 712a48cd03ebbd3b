package agent

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/prometheus-agent-platform/internal/anomaly"
)

// Fixed fallback pair used when the reasoning backend is unavailable
// during an investigation. The severity assessment is still computed.
const fallbackHypothesis = "Investigation backend unavailable; check related metrics manually."

var fallbackRemediation = []string{
	"Inspect the alert's related metrics in the metrics backend.",
	"Check recent changes to the affected instance or service.",
	"Retry the investigation once the reasoning backend recovers.",
}

// AlertInvestigator derives severity assessments, root-cause hypotheses
// and remediation steps for named alerts.
type AlertInvestigator struct {
	llm Generator
}

// NewAlertInvestigator creates an investigator backed by the given generator.
func NewAlertInvestigator(llm Generator) *AlertInvestigator {
	return &AlertInvestigator{llm: llm}
}

// Investigate looks up alertName among the active alerts (case-sensitive)
// and produces an investigation result. The severity assessment starts at
// the alert's own severity label and escalates one level when any related
// metric shows a high or critical anomaly.
func (inv *AlertInvestigator) Investigate(ctx context.Context, alertName string, alerts []Alert, related SampleSet) (*InvestigationResult, error) {
	const op = "investigator.investigate"

	if strings.TrimSpace(alertName) == "" {
		return nil, failf(op, TagInvalidInput, "alert name is empty")
	}

	var target *Alert
	for i := range alerts {
		if alerts[i].Name == alertName {
			target = &alerts[i]
			break
		}
	}
	if target == nil {
		return nil, failf(op, TagAlertNotFound, "alert %q not in active set", alertName)
	}

	anomalies := DetectAnomalies(related)

	severity := target.Severity()
	if max, ok := anomaly.MaxSeverity(anomalies); ok && (max == anomaly.SeverityHigh || max == anomaly.SeverityCritical) {
		severity = escalate(severity)
	}

	result := &InvestigationResult{
		Alert:              *target,
		RelatedMetrics:     related,
		SeverityAssessment: severity,
		Anomalies:          anomalies,
	}

	hypothesis, steps, err := inv.explain(ctx, *target, anomalies)
	if err != nil {
		log.Printf("Investigation of %s degraded to fallback: %v", alertName, err)
		result.RootCauseHypothesis = fallbackHypothesis
		result.RemediationSteps = fallbackRemediation
		result.Degraded = true
		return result, nil
	}

	result.RootCauseHypothesis = hypothesis
	result.RemediationSteps = steps
	return result, nil
}

// escalate bumps a severity label one level; critical stays critical and
// unknown labels are left untouched.
func escalate(severity string) string {
	switch severity {
	case "info":
		return "warning"
	case "warning":
		return "critical"
	default:
		return severity
	}
}

type investigationNarrative struct {
	RootCause        string   `json:"root_cause"`
	RemediationSteps []string `json:"remediation_steps"`
}

// explain asks the reasoning backend for a root-cause hypothesis and an
// ordered remediation list, segmenting free text into steps when the
// backend ignores the structured format. Remediation steps are never
// empty on a successful return.
func (inv *AlertInvestigator) explain(ctx context.Context, alert Alert, anomalies []anomaly.Anomaly) (string, []string, error) {
	const op = "investigator.explain"

	prompt := `Analyze this alert and propose a root cause and remediation.
Respond with JSON only: {"root_cause": "<hypothesis>", "remediation_steps": ["<steps in recommended execution order>"]}`

	raw, err := inv.llm.Generate(ctx, prompt, map[string]interface{}{
		"alert": map[string]interface{}{
			"name":        alert.Name,
			"labels":      alert.Labels,
			"annotations": alert.Annotations,
			"state":       alert.State,
		},
		"anomalies": anomalies,
	})
	if err != nil {
		return "", nil, classify(op, err)
	}

	var narrative investigationNarrative
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &narrative); err != nil {
		// Free text instead of the structured shape: segment it into steps.
		steps := SplitSteps(raw)
		if len(steps) == 0 {
			return "", nil, failf(op, TagMalformedResponse, "backend returned empty remediation text")
		}
		return steps[0], steps, nil
	}

	if len(narrative.RemediationSteps) == 0 {
		narrative.RemediationSteps = SplitSteps(narrative.RootCause)
	}
	if narrative.RootCause == "" || len(narrative.RemediationSteps) == 0 {
		return "", nil, failf(op, TagMalformedResponse, "backend response missing root cause or steps")
	}

	return narrative.RootCause, narrative.RemediationSteps, nil
}
