package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus-agent-platform/internal/anomaly"
)

// stubBackend is an in-memory MetricsBackend for engine tests.
type stubBackend struct {
	names   []string
	alerts  []Alert
	instant map[string]Series
	ranged  map[string]Series

	namesErr   error
	alertsErr  error
	instantErr error
	rangeErr   error

	instantCalls []string
	rangeCalls   []string
	namesCalls   int
}

func (b *stubBackend) InstantQuery(ctx context.Context, expr string, ts time.Time) (Series, error) {
	b.instantCalls = append(b.instantCalls, expr)
	if b.instantErr != nil {
		return Series{}, b.instantErr
	}
	return b.instant[expr], nil
}

func (b *stubBackend) RangeQuery(ctx context.Context, expr string, start, end time.Time, step time.Duration) (Series, error) {
	b.rangeCalls = append(b.rangeCalls, expr)
	if b.rangeErr != nil {
		return Series{}, b.rangeErr
	}
	return b.ranged[expr], nil
}

func (b *stubBackend) ActiveAlerts(ctx context.Context) ([]Alert, error) {
	if b.alertsErr != nil {
		return nil, b.alertsErr
	}
	return b.alerts, nil
}

func (b *stubBackend) MetricNames(ctx context.Context) ([]string, error) {
	b.namesCalls++
	if b.namesErr != nil {
		return nil, b.namesErr
	}
	return b.names, nil
}

func TestEngineTranslateQuery_EndToEnd(t *testing.T) {
	backend := &stubBackend{
		names: []string{"cpu_usage_percent", "up"},
		instant: map[string]Series{
			"cpu_usage_percent": {Query: "cpu_usage_percent", HasData: true, Points: []anomaly.Point{{Value: 42}}},
		},
	}
	llm := &stubGenerator{response: `{"query": "cpu_usage_percent", "confidence": 0.95, "alternatives": []}`}
	engine := NewEngine(backend, llm, Options{})

	result, err := engine.TranslateQuery(context.Background(), "show me cpu usage")
	if err != nil {
		t.Fatalf("TranslateQuery failed: %v", err)
	}

	if result.GeneratedQuery != "cpu_usage_percent" {
		t.Errorf("GeneratedQuery: expected cpu_usage_percent, got %q", result.GeneratedQuery)
	}
	if result.Confidence != 0.95 {
		t.Errorf("Confidence: expected 0.95, got %v", result.Confidence)
	}
	if result.ExecutedResult == nil || !result.ExecutedResult.HasData {
		t.Error("Expected executed result from instant query")
	}
	if len(backend.rangeCalls) != 0 {
		t.Errorf("Plain expression must use instant query, range calls: %v", backend.rangeCalls)
	}
}

func TestEngineTranslateQuery_RangeHeuristic(t *testing.T) {
	backend := &stubBackend{
		names: []string{"http_requests_total"},
		ranged: map[string]Series{
			"rate(http_requests_total[5m])": {Query: "rate(http_requests_total[5m])", HasData: true},
		},
	}
	llm := &stubGenerator{response: `{"query": "rate(http_requests_total[5m])", "confidence": 0.9}`}
	engine := NewEngine(backend, llm, Options{})

	result, err := engine.TranslateQuery(context.Background(), "request rate")
	if err != nil {
		t.Fatalf("TranslateQuery failed: %v", err)
	}
	if len(backend.rangeCalls) != 1 {
		t.Errorf("rate() expression must use a range query, got instant calls %v", backend.instantCalls)
	}
	if result.ExecutedResult == nil {
		t.Error("Expected executed result")
	}
}

func TestEngineTranslateQuery_ExecutionFailureIsNotFatal(t *testing.T) {
	backend := &stubBackend{
		names:      []string{"up"},
		instantErr: errors.New("query parse error"),
	}
	llm := &stubGenerator{response: `{"query": "up", "confidence": 0.9}`}
	engine := NewEngine(backend, llm, Options{})

	result, err := engine.TranslateQuery(context.Background(), "is everything up")
	if err != nil {
		t.Fatalf("Execution failure must not fail the translation: %v", err)
	}
	if result.ExecutedResult != nil {
		t.Error("Failed execution must leave ExecutedResult nil")
	}
	if result.Confidence != 0.9 {
		t.Errorf("Confidence is independent of execution, got %v", result.Confidence)
	}
}

func TestEngineTranslateQuery_BlankQuestionSkipsBackend(t *testing.T) {
	// A downed backend must not mask the input error.
	backend := &stubBackend{namesErr: errors.New("connection refused")}
	engine := NewEngine(backend, &stubGenerator{}, Options{})

	_, err := engine.TranslateQuery(context.Background(), "   ")
	if tag, ok := TagOf(err); !ok || tag != TagInvalidInput {
		t.Errorf("Expected invalid-input for a blank question, got %v", err)
	}
	if backend.namesCalls != 0 {
		t.Errorf("Blank question must be rejected before any backend call, got %d MetricNames calls", backend.namesCalls)
	}
}

func TestEngineTranslateQuery_MetricNamesFailure(t *testing.T) {
	backend := &stubBackend{namesErr: errors.New("connection refused")}
	engine := NewEngine(backend, &stubGenerator{}, Options{})

	_, err := engine.TranslateQuery(context.Background(), "show cpu")
	if tag, ok := TagOf(err); !ok || tag != TagBackendUnavailable {
		t.Errorf("Expected backend-unavailable, got %v", err)
	}
}

func TestEngineAssessHealth_EndToEnd(t *testing.T) {
	backend := &stubBackend{
		alerts: []Alert{firing("HighCPUUsage", "warning")},
		ranged: map[string]Series{},
	}
	llm := &stubGenerator{err: errors.New("backend down")}
	engine := NewEngine(backend, llm, Options{})

	assessment, err := engine.AssessHealth(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("AssessHealth failed: %v", err)
	}

	if assessment.Score != 92 {
		t.Errorf("Expected score 92, got %v", assessment.Score)
	}
	if len(assessment.Anomalies) != 0 {
		t.Errorf("Expected no anomalies, got %d", len(assessment.Anomalies))
	}
	if !assessment.Degraded {
		t.Error("Reasoning failure must degrade the narrative, not the score")
	}
}

func TestEngineAssessHealth_NegativeWindow(t *testing.T) {
	engine := NewEngine(&stubBackend{}, &stubGenerator{}, Options{})

	_, err := engine.AssessHealth(context.Background(), -time.Minute)
	if tag, ok := TagOf(err); !ok || tag != TagInvalidInput {
		t.Errorf("Expected invalid-input, got %v", err)
	}
}

func TestEngineAssessHealth_AlertListingFailure(t *testing.T) {
	backend := &stubBackend{alertsErr: errors.New("alerts endpoint down")}
	engine := NewEngine(backend, &stubGenerator{}, Options{})

	_, err := engine.AssessHealth(context.Background(), time.Hour)
	if tag, ok := TagOf(err); !ok || tag != TagBackendUnavailable {
		t.Errorf("Expected backend-unavailable, got %v", err)
	}
}

func TestEngineInvestigateAlert_NotFound(t *testing.T) {
	backend := &stubBackend{alerts: []Alert{firing("HighCPUUsage", "warning")}}
	engine := NewEngine(backend, &stubGenerator{}, Options{})

	result, err := engine.InvestigateAlert(context.Background(), "NoSuchAlert")
	if result != nil {
		t.Error("Unknown alert must not produce a result")
	}
	if tag, ok := TagOf(err); !ok || tag != TagAlertNotFound {
		t.Errorf("Expected alert-not-found, got %v", err)
	}
}

func TestEngineInvestigateAlert_FetchesRelatedByInstance(t *testing.T) {
	alert := firing("HighCPUUsage", "warning")
	alert.Labels["instance"] = "node-1:9100"

	backend := &stubBackend{
		alerts: []Alert{alert},
		instant: map[string]Series{
			`cpu_usage_percent{instance="node-1:9100"}`: {Query: "cpu", HasData: true, Points: []anomaly.Point{{Value: 97}}},
		},
	}
	llm := &stubGenerator{response: `{"root_cause": "CPU saturation.", "remediation_steps": ["Scale out."]}`}
	engine := NewEngine(backend, llm, Options{})

	result, err := engine.InvestigateAlert(context.Background(), "HighCPUUsage")
	if err != nil {
		t.Fatalf("InvestigateAlert failed: %v", err)
	}

	sawInstanceQuery := false
	for _, expr := range backend.instantCalls {
		if strings.Contains(expr, `instance="node-1:9100"`) {
			sawInstanceQuery = true
		}
	}
	if !sawInstanceQuery {
		t.Errorf("Expected instance-scoped related queries, got %v", backend.instantCalls)
	}
	if len(result.RelatedMetrics) != 1 {
		t.Errorf("Expected 1 related metric with data, got %d", len(result.RelatedMetrics))
	}
}

func TestEngineChatTurn(t *testing.T) {
	backend := &stubBackend{
		instant: map[string]Series{
			"up": {Query: "up", HasData: true, Points: []anomaly.Point{{Value: 1}, {Value: 1}, {Value: 0}}},
		},
	}
	llm := &stubGenerator{response: "Two of three services are up; one is down."}
	engine := NewEngine(backend, llm, Options{})

	result, err := engine.ChatTurn(context.Background(), "", "how is the system doing?")
	if err != nil {
		t.Fatalf("ChatTurn failed: %v", err)
	}

	if result.ConversationID == "" {
		t.Fatal("Expected a generated conversation id")
	}
	if result.Reply == "" {
		t.Fatal("Expected a reply")
	}

	store := engine.Conversations()
	if got := store.TurnCount(result.ConversationID); got != 2 {
		t.Errorf("Expected user and agent turns appended, got %d", got)
	}
	turns := store.ContextFor(result.ConversationID)
	if turns[0].Role != RoleUser || turns[1].Role != RoleAgent {
		t.Errorf("Turn roles out of order: %v, %v", turns[0].Role, turns[1].Role)
	}
	if store.LastContext(result.ConversationID) == nil {
		t.Error("Expected last context snapshot after a chat turn")
	}

	// Second turn reuses the conversation.
	again, err := engine.ChatTurn(context.Background(), result.ConversationID, "and now?")
	if err != nil {
		t.Fatalf("Second ChatTurn failed: %v", err)
	}
	if again.ConversationID != result.ConversationID {
		t.Error("Conversation id must be stable across turns")
	}
	if got := store.TurnCount(result.ConversationID); got != 4 {
		t.Errorf("Expected 4 turns after two exchanges, got %d", got)
	}
}

func TestEngineChatTurn_NoAppendOnFailure(t *testing.T) {
	backend := &stubBackend{}
	llm := &stubGenerator{err: errors.New("backend down")}
	engine := NewEngine(backend, llm, Options{})

	conv := engine.Conversations().GetOrCreate("")
	_, err := engine.ChatTurn(context.Background(), conv.ID, "hello")
	if err == nil {
		t.Fatal("Expected failure when the reasoning backend is down")
	}
	if got := engine.Conversations().TurnCount(conv.ID); got != 0 {
		t.Errorf("Failed turn must not be appended, got %d turns", got)
	}
}

func TestEngineChatTurn_EmptyMessage(t *testing.T) {
	engine := NewEngine(&stubBackend{}, &stubGenerator{}, Options{})

	_, err := engine.ChatTurn(context.Background(), "", "  ")
	if tag, ok := TagOf(err); !ok || tag != TagInvalidInput {
		t.Errorf("Expected invalid-input, got %v", err)
	}
}

func TestEngineRecommendations(t *testing.T) {
	backend := &stubBackend{names: []string{"up", "cpu_usage_percent"}}
	llm := &stubGenerator{response: "Add error-budget burn alerts."}
	engine := NewEngine(backend, llm, Options{})

	recommendations, err := engine.Recommendations(context.Background(), "payments stack")
	if err != nil {
		t.Fatalf("Recommendations failed: %v", err)
	}
	if recommendations != "Add error-budget burn alerts." {
		t.Errorf("Unexpected recommendations: %q", recommendations)
	}
}
