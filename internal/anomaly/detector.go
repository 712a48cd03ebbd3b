package anomaly

import (
	"math"
	"time"
)

// Severity classifies how far an anomalous point deviates from its series.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Deviation thresholds in standard-deviation units.
const (
	ThresholdLow      = 3.0
	ThresholdMedium   = 4.0
	ThresholdHigh     = 6.0
	ThresholdCritical = 10.0
)

// Point is a single sample in a time series.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Anomaly describes a sample whose deviation from the series mean
// exceeds the low threshold.
type Anomaly struct {
	Metric    string    `json:"metric"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Sigma     float64   `json:"sigma"`
	Severity  Severity  `json:"severity"`
}

// Stats holds the mean and population standard deviation of a series.
type Stats struct {
	Mean   float64
	StdDev float64
	Count  int
}

// ComputeStats calculates mean and population standard deviation over points.
func ComputeStats(points []Point) Stats {
	stats := Stats{Count: len(points)}
	if len(points) == 0 {
		return stats
	}

	for _, p := range points {
		stats.Mean += p.Value
	}
	n := float64(len(points))
	stats.Mean /= n

	for _, p := range points {
		stats.StdDev += math.Pow(p.Value-stats.Mean, 2)
	}
	stats.StdDev = math.Sqrt(stats.StdDev / n)

	return stats
}

// SeverityForSigma maps a deviation magnitude (in standard-deviation units)
// to a severity band. Deviations below the low threshold have no severity.
func SeverityForSigma(sigma float64) (Severity, bool) {
	switch {
	case sigma >= ThresholdCritical:
		return SeverityCritical, true
	case sigma >= ThresholdHigh:
		return SeverityHigh, true
	case sigma >= ThresholdMedium:
		return SeverityMedium, true
	case sigma >= ThresholdLow:
		return SeverityLow, true
	default:
		return "", false
	}
}

// Detect flags every point in the series whose absolute deviation from the
// series mean exceeds three standard deviations.
//
// Series with fewer than 2 samples or zero variance produce no anomalies:
// a single point has no meaningful deviation, and a constant series would
// flag everything on division by zero.
func Detect(metric string, points []Point) []Anomaly {
	if len(points) < 2 {
		return nil
	}

	stats := ComputeStats(points)
	if stats.StdDev == 0 {
		return nil
	}

	var anomalies []Anomaly
	for _, p := range points {
		sigma := math.Abs(p.Value-stats.Mean) / stats.StdDev
		severity, ok := SeverityForSigma(sigma)
		if !ok {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			Metric:    metric,
			Timestamp: p.Timestamp,
			Value:     p.Value,
			Sigma:     sigma,
			Severity:  severity,
		})
	}

	return anomalies
}

// MaxSeverity returns the highest severity among anomalies, or false when
// the list is empty.
func MaxSeverity(anomalies []Anomaly) (Severity, bool) {
	if len(anomalies) == 0 {
		return "", false
	}

	rank := map[Severity]int{
		SeverityLow:      1,
		SeverityMedium:   2,
		SeverityHigh:     3,
		SeverityCritical: 4,
	}

	max := anomalies[0].Severity
	for _, a := range anomalies[1:] {
		if rank[a.Severity] > rank[max] {
			max = a.Severity
		}
	}
	return max, true
}
