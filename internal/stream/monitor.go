package stream

import (
	"context"
	"log"
	"time"

	"github.com/prometheus-agent-platform/internal/agent"
)

// AssessFunc produces a health assessment for a time window.
type AssessFunc func(ctx context.Context, window time.Duration) (*agent.HealthAssessment, error)

// Monitor periodically assesses system health and pushes the result to
// hub subscribers, so dashboards get updates without polling.
type Monitor struct {
	hub      *Hub
	assess   AssessFunc
	interval time.Duration
	window   time.Duration
}

// NewMonitor creates a monitor that assesses every interval over the
// given window.
func NewMonitor(hub *Hub, assess AssessFunc, interval, window time.Duration) *Monitor {
	return &Monitor{hub: hub, assess: assess, interval: interval, window: window}
}

// Run assesses on a ticker until the context is cancelled. Assessment
// failures are logged and skipped; the next tick tries again.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	assessment, err := m.assess(ctx, m.window)
	if err != nil {
		log.Printf("[Monitor] Health assessment failed: %v", err)
		return
	}
	m.hub.Publish(ChannelAssessments, assessment)
}
