// Package promql adapts the Prometheus HTTP API to the agent's
// MetricsBackend interface.
package promql

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/prometheus-agent-platform/internal/agent"
)

// queryAPI is the slice of the Prometheus v1 API the client uses.
type queryAPI interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
	QueryRange(ctx context.Context, query string, r v1.Range, opts ...v1.Option) (model.Value, v1.Warnings, error)
	Alerts(ctx context.Context) (v1.AlertsResult, error)
	LabelValues(ctx context.Context, label string, matches []string, startTime, endTime time.Time) (model.LabelValues, v1.Warnings, error)
}

// Client queries a Prometheus server over its HTTP API.
type Client struct {
	api queryAPI
}

// NewClient builds a client against the given Prometheus base URL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	apiClient, err := api.NewClient(api.Config{
		Address: baseURL,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("creating Prometheus client: %w", err)
	}
	return &Client{api: v1.NewAPI(apiClient)}, nil
}

// InstantQuery evaluates expr at a single point in time.
func (c *Client) InstantQuery(ctx context.Context, expr string, ts time.Time) (agent.Series, error) {
	value, _, err := c.api.Query(ctx, expr, ts)
	if err != nil {
		return agent.Series{}, fmt.Errorf("instant query %q: %w", expr, err)
	}
	return seriesFromValue(expr, value), nil
}

// RangeQuery evaluates expr over [start, end] at the given resolution.
func (c *Client) RangeQuery(ctx context.Context, expr string, start, end time.Time, step time.Duration) (agent.Series, error) {
	value, _, err := c.api.QueryRange(ctx, expr, v1.Range{Start: start, End: end, Step: step})
	if err != nil {
		return agent.Series{}, fmt.Errorf("range query %q: %w", expr, err)
	}
	return seriesFromValue(expr, value), nil
}

// ActiveAlerts lists the alerts currently known to the server.
func (c *Client) ActiveAlerts(ctx context.Context) ([]agent.Alert, error) {
	result, err := c.api.Alerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}

	alerts := make([]agent.Alert, 0, len(result.Alerts))
	for _, a := range result.Alerts {
		alerts = append(alerts, alertFromAPI(a))
	}
	return alerts, nil
}

// MetricNames lists the metric names the server currently exposes.
func (c *Client) MetricNames(ctx context.Context) ([]string, error) {
	now := time.Now()
	values, _, err := c.api.LabelValues(ctx, model.MetricNameLabel, nil, now.Add(-time.Hour), now)
	if err != nil {
		return nil, fmt.Errorf("listing metric names: %w", err)
	}

	names := make([]string, 0, len(values))
	for _, v := range values {
		names = append(names, string(v))
	}
	return names, nil
}

func alertFromAPI(a v1.Alert) agent.Alert {
	alert := agent.Alert{
		Labels:      labelSetToMap(a.Labels),
		Annotations: labelSetToMap(a.Annotations),
		State:       stateFromAPI(a.State),
	}
	alert.Name = alert.Labels["alertname"]
	if !a.ActiveAt.IsZero() {
		activeAt := a.ActiveAt
		alert.ActiveSince = &activeAt
	}
	return alert
}

func stateFromAPI(state v1.AlertState) agent.AlertState {
	switch state {
	case v1.AlertStateFiring:
		return agent.AlertStateFiring
	case v1.AlertStatePending:
		return agent.AlertStatePending
	default:
		return agent.AlertStateResolved
	}
}

func labelSetToMap(set model.LabelSet) map[string]string {
	out := make(map[string]string, len(set))
	for k, v := range set {
		out[string(k)] = string(v)
	}
	return out
}
