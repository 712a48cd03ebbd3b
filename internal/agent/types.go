package agent

import (
	"context"
	"time"

	"github.com/prometheus-agent-platform/internal/anomaly"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Series is a single metric series returned by the metrics backend,
// tagged with the query that produced it.
type Series struct {
	Query   string          `json:"query"`
	HasData bool            `json:"has_data"`
	Points  []anomaly.Point `json:"points"`
}

// SampleSet maps metric names to their series for one analysis request.
type SampleSet map[string]Series

// AlertState is the lifecycle state reported by the alerting subsystem.
type AlertState string

const (
	AlertStatePending  AlertState = "pending"
	AlertStateFiring   AlertState = "firing"
	AlertStateResolved AlertState = "resolved"
)

// Alert is an alerting-rule instance read from the metrics backend.
// This engine never mutates alert state.
type Alert struct {
	Name        string            `json:"name"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	State       AlertState        `json:"state"`
	ActiveSince *time.Time        `json:"active_since,omitempty"`
}

// Severity returns the alert's severity label, empty when unset.
func (a Alert) Severity() string {
	return a.Labels["severity"]
}

// TranslationResult is the outcome of translating a natural-language
// question into an executable PromQL expression. Confidence reflects
// translator certainty, not execution success.
type TranslationResult struct {
	OriginalText       string   `json:"original_text"`
	GeneratedQuery     string   `json:"generated_query"`
	Confidence         float64  `json:"confidence"`
	AlternativeQueries []string `json:"alternative_queries"`
	ExecutedResult     *Series  `json:"executed_result,omitempty"`
}

// HealthAssessment summarizes system health for a time window. Score is
// deterministic; Findings and Recommendations are narrative and may come
// from a fixed fallback when the reasoning backend is unavailable, in
// which case Degraded is set.
type HealthAssessment struct {
	Score           float64           `json:"score"`
	Findings        []string          `json:"findings"`
	Anomalies       []anomaly.Anomaly `json:"anomalies"`
	Recommendations []string          `json:"recommendations"`
	Degraded        bool              `json:"degraded"`
}

// InvestigationResult is the outcome of investigating a named alert.
// RemediationSteps are ordered by recommended execution order.
type InvestigationResult struct {
	Alert               Alert             `json:"alert"`
	RelatedMetrics      SampleSet         `json:"related_metrics"`
	SeverityAssessment  string            `json:"severity_assessment"`
	RootCauseHypothesis string            `json:"root_cause_hypothesis"`
	RemediationSteps    []string          `json:"remediation_steps"`
	Anomalies           []anomaly.Anomaly `json:"anomalies,omitempty"`
	Degraded            bool              `json:"degraded"`
}

// ChatResult is one completed conversational exchange.
type ChatResult struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// MetricsBackend is the engine's view of the time-series store and its
// alerting subsystem. All calls are fallible remote calls.
type MetricsBackend interface {
	InstantQuery(ctx context.Context, expr string, ts time.Time) (Series, error)
	RangeQuery(ctx context.Context, expr string, start, end time.Time, step time.Duration) (Series, error)
	ActiveAlerts(ctx context.Context) ([]Alert, error)
	MetricNames(ctx context.Context) ([]string, error)
}
