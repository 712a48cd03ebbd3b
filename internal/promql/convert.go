package promql

import (
	"github.com/prometheus/common/model"

	"github.com/prometheus-agent-platform/internal/agent"
	"github.com/prometheus-agent-platform/internal/anomaly"
)

// seriesFromValue flattens any query result shape into a single ordered
// point list. Matrix results concatenate their streams; labels are not
// preserved because the agent reasons over values, not identities.
func seriesFromValue(expr string, value model.Value) agent.Series {
	series := agent.Series{Query: expr}

	switch v := value.(type) {
	case model.Vector:
		for _, sample := range v {
			series.Points = append(series.Points, pointFromSample(sample.Timestamp, sample.Value))
		}
	case model.Matrix:
		for _, stream := range v {
			for _, pair := range stream.Values {
				series.Points = append(series.Points, pointFromSample(pair.Timestamp, pair.Value))
			}
		}
	case *model.Scalar:
		if v != nil {
			series.Points = append(series.Points, pointFromSample(v.Timestamp, v.Value))
		}
	}

	series.HasData = len(series.Points) > 0
	return series
}

func pointFromSample(ts model.Time, value model.SampleValue) anomaly.Point {
	return anomaly.Point{
		Timestamp: ts.Time(),
		Value:     float64(value),
	}
}
