package agent

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultContextMetrics is the system metric list pulled for a health
// assessment when the caller does not narrow it down.
var DefaultContextMetrics = []string{
	"up",
	"cpu_usage_percent",
	"memory_usage_percent",
	"disk_usage_percent",
	"http_requests_total",
	"http_request_duration_seconds",
	"process_resident_memory_bytes",
	"go_memstats_alloc_bytes",
}

// DefaultStep is the range-query resolution for context fetches.
const DefaultStep = time.Minute

// ContextFetcher pulls point-in-time and ranged series plus active alerts
// from the metrics backend for a given window. Pure data retrieval, no
// decision logic.
type ContextFetcher struct {
	backend MetricsBackend
	metrics []string
	step    time.Duration
}

// NewContextFetcher creates a fetcher for the given metric list; nil
// falls back to the default system metrics.
func NewContextFetcher(backend MetricsBackend, metrics []string, step time.Duration) *ContextFetcher {
	if len(metrics) == 0 {
		metrics = DefaultContextMetrics
	}
	if step <= 0 {
		step = DefaultStep
	}
	return &ContextFetcher{backend: backend, metrics: metrics, step: step}
}

// Fetch retrieves ranged series for the fetcher's metric list plus the
// current active alerts. Metrics that fail or return no data are skipped;
// an alert listing failure fails the whole fetch.
func (f *ContextFetcher) Fetch(ctx context.Context, start, end time.Time) (SampleSet, []Alert, error) {
	const op = "fetcher.fetch"

	if !end.After(start) {
		return nil, nil, failf(op, TagInvalidInput, "time range end %v not after start %v", end, start)
	}

	samples := make(SampleSet, len(f.metrics))
	for _, metric := range f.metrics {
		series, err := f.backend.RangeQuery(ctx, metric, start, end, f.step)
		if err != nil {
			log.Printf("Could not collect metric %s: %v", metric, err)
			continue
		}
		if series.HasData {
			samples[metric] = series
		}
	}

	alerts, err := f.backend.ActiveAlerts(ctx)
	if err != nil {
		return nil, nil, classify(op, err)
	}

	return samples, alerts, nil
}

// RelatedMetrics pulls instance-scoped context series for an alert. Only
// alerts carrying an instance label yield anything; individual query
// failures are skipped so investigation still proceeds on partial data.
func (f *ContextFetcher) RelatedMetrics(ctx context.Context, alert Alert) SampleSet {
	related := make(SampleSet)

	instance, ok := alert.Labels["instance"]
	if !ok {
		return related
	}

	base := []string{"up", "cpu_usage_percent", "memory_usage_percent"}
	for _, metric := range base {
		expr := fmt.Sprintf(`%s{instance=%q}`, metric, instance)
		series, err := f.backend.InstantQuery(ctx, expr, time.Now())
		if err != nil {
			log.Printf("Could not fetch related metric %s: %v", expr, err)
			continue
		}
		if series.HasData {
			related[metric] = series
		}
	}

	return related
}

// SystemSummary builds a one-line description of the current system state
// for chat prompts, plus the sample set backing it. Failures produce a
// neutral summary rather than an error.
func (f *ContextFetcher) SystemSummary(ctx context.Context) (string, SampleSet) {
	series, err := f.backend.InstantQuery(ctx, "up", time.Now())
	if err != nil {
		log.Printf("Could not build system summary: %v", err)
		return "System status unavailable", nil
	}

	total := len(series.Points)
	up := 0
	for _, p := range series.Points {
		if p.Value == 1 {
			up++
		}
	}

	alertCount := 0
	if alerts, err := f.backend.ActiveAlerts(ctx); err == nil {
		alertCount = len(alerts)
	} else {
		log.Printf("Could not count active alerts for summary: %v", err)
	}

	summary := fmt.Sprintf("System status: %d/%d services up, %d active alerts", up, total, alertCount)
	return summary, SampleSet{"up": series}
}
