package promql

import (
	"testing"
	"time"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/prometheus-agent-platform/internal/agent"
)

func TestSeriesFromValue_Vector(t *testing.T) {
	value := model.Vector{
		&model.Sample{Timestamp: model.TimeFromUnix(100), Value: 1},
		&model.Sample{Timestamp: model.TimeFromUnix(100), Value: 0},
	}

	series := seriesFromValue("up", value)

	if !series.HasData {
		t.Fatal("Expected HasData for a non-empty vector")
	}
	if len(series.Points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(series.Points))
	}
	if series.Points[0].Value != 1 || series.Points[1].Value != 0 {
		t.Errorf("Unexpected values: %v", series.Points)
	}
	if series.Query != "up" {
		t.Errorf("Query must be carried through, got %q", series.Query)
	}
}

func TestSeriesFromValue_MatrixFlattensStreams(t *testing.T) {
	value := model.Matrix{
		&model.SampleStream{Values: []model.SamplePair{
			{Timestamp: model.TimeFromUnix(100), Value: 10},
			{Timestamp: model.TimeFromUnix(160), Value: 12},
		}},
		&model.SampleStream{Values: []model.SamplePair{
			{Timestamp: model.TimeFromUnix(100), Value: 90},
		}},
	}

	series := seriesFromValue("cpu_usage_percent", value)

	if len(series.Points) != 3 {
		t.Fatalf("Expected 3 flattened points, got %d", len(series.Points))
	}
	if series.Points[2].Value != 90 {
		t.Errorf("Stream order must be preserved, got %v", series.Points)
	}
}

func TestSeriesFromValue_Scalar(t *testing.T) {
	series := seriesFromValue("scalar(1)", &model.Scalar{Timestamp: model.TimeFromUnix(100), Value: 1})

	if !series.HasData || len(series.Points) != 1 {
		t.Fatalf("Expected single scalar point, got %v", series.Points)
	}
}

func TestSeriesFromValue_Empty(t *testing.T) {
	series := seriesFromValue("up", model.Vector{})

	if series.HasData {
		t.Error("Empty result must not report data")
	}
	if len(series.Points) != 0 {
		t.Errorf("Expected no points, got %v", series.Points)
	}
}

func TestAlertFromAPI(t *testing.T) {
	activeAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	apiAlert := v1.Alert{
		ActiveAt: activeAt,
		Labels: model.LabelSet{
			"alertname": "HighCPUUsage",
			"severity":  "warning",
			"instance":  "node-1:9100",
		},
		Annotations: model.LabelSet{"summary": "CPU above 90%"},
		State:       v1.AlertStateFiring,
	}

	alert := alertFromAPI(apiAlert)

	if alert.Name != "HighCPUUsage" {
		t.Errorf("Name must come from the alertname label, got %q", alert.Name)
	}
	if alert.State != agent.AlertStateFiring {
		t.Errorf("Expected firing state, got %q", alert.State)
	}
	if alert.Severity() != "warning" {
		t.Errorf("Expected warning severity, got %q", alert.Severity())
	}
	if alert.Annotations["summary"] != "CPU above 90%" {
		t.Errorf("Annotations must be carried through, got %v", alert.Annotations)
	}
	if alert.ActiveSince == nil || !alert.ActiveSince.Equal(activeAt) {
		t.Errorf("Expected ActiveSince %v, got %v", activeAt, alert.ActiveSince)
	}
}

func TestStateFromAPI(t *testing.T) {
	tests := []struct {
		in       v1.AlertState
		expected agent.AlertState
	}{
		{v1.AlertStateFiring, agent.AlertStateFiring},
		{v1.AlertStatePending, agent.AlertStatePending},
		{v1.AlertStateInactive, agent.AlertStateResolved},
	}

	for _, tt := range tests {
		if got := stateFromAPI(tt.in); got != tt.expected {
			t.Errorf("stateFromAPI(%q): expected %q, got %q", tt.in, tt.expected, got)
		}
	}
}
