package fhirpath

import (
	"sync/atomic"
	"time"
)

// Metrics tracks engine performance using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	// Parse counts
	parsesTotal atomic.Uint64
	parseErrors atomic.Uint64

	// Evaluation counts
	evaluationsTotal  atomic.Uint64
	evaluationErrors  atomic.Uint64
	fastPathTotal     atomic.Uint64
	interpretedTotal  atomic.Uint64

	// Timing (stored as nanoseconds)
	evalTimeTotal atomic.Uint64
	evalTimeMin   atomic.Uint64
	evalTimeMax   atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.evalTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordParse records one parse attempt.
func (m *Metrics) RecordParse(failed bool) {
	m.parsesTotal.Add(1)
	if failed {
		m.parseErrors.Add(1)
	}
}

// RecordEvaluation records one completed evaluation.
func (m *Metrics) RecordEvaluation(duration time.Duration, fastPath, failed bool) {
	m.evaluationsTotal.Add(1)
	if failed {
		m.evaluationErrors.Add(1)
	}
	if fastPath {
		m.fastPathTotal.Add(1)
	} else {
		m.interpretedTotal.Add(1)
	}

	ns := uint64(duration.Nanoseconds())
	m.evalTimeTotal.Add(ns)

	// Update min (CAS loop)
	for {
		old := m.evalTimeMin.Load()
		if ns >= old {
			break
		}
		if m.evalTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (CAS loop)
	for {
		old := m.evalTimeMax.Load()
		if ns <= old {
			break
		}
		if m.evalTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// --- Query Methods ---

// ParsesTotal returns the total number of parse attempts.
func (m *Metrics) ParsesTotal() uint64 {
	return m.parsesTotal.Load()
}

// ParseErrors returns the number of failed parses.
func (m *Metrics) ParseErrors() uint64 {
	return m.parseErrors.Load()
}

// EvaluationsTotal returns the total number of evaluations.
func (m *Metrics) EvaluationsTotal() uint64 {
	return m.evaluationsTotal.Load()
}

// EvaluationErrors returns the number of failed evaluations.
func (m *Metrics) EvaluationErrors() uint64 {
	return m.evaluationErrors.Load()
}

// FastPathRate returns the fraction of evaluations served by compiled
// closures (0.0 to 1.0).
func (m *Metrics) FastPathRate() float64 {
	total := m.evaluationsTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(m.fastPathTotal.Load()) / float64(total)
}

// AverageEvalTime returns the average evaluation duration.
func (m *Metrics) AverageEvalTime() time.Duration {
	total := m.evaluationsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.evalTimeTotal.Load() / total)
}

// MinEvalTime returns the minimum evaluation duration.
func (m *Metrics) MinEvalTime() time.Duration {
	minVal := m.evalTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal)
}

// MaxEvalTime returns the maximum evaluation duration.
func (m *Metrics) MaxEvalTime() time.Duration {
	return time.Duration(m.evalTimeMax.Load())
}

// --- Export Methods ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	ParsesTotal uint64 `json:"parses_total"`
	ParseErrors uint64 `json:"parse_errors"`

	EvaluationsTotal uint64  `json:"evaluations_total"`
	EvaluationErrors uint64  `json:"evaluation_errors"`
	FastPathTotal    uint64  `json:"fast_path_total"`
	InterpretedTotal uint64  `json:"interpreted_total"`
	FastPathRate     float64 `json:"fast_path_rate"`

	AvgEvalTimeNs uint64 `json:"avg_eval_time_ns"`
	MinEvalTimeNs uint64 `json:"min_eval_time_ns"`
	MaxEvalTimeNs uint64 `json:"max_eval_time_ns"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	total := m.evaluationsTotal.Load()

	var avgTime uint64
	if total > 0 {
		avgTime = m.evalTimeTotal.Load() / total
	}
	minTime := m.evalTimeMin.Load()
	if minTime == ^uint64(0) {
		minTime = 0
	}

	fastPath := m.fastPathTotal.Load()
	var fastPathRate float64
	if total > 0 {
		fastPathRate = float64(fastPath) / float64(total)
	}

	return Snapshot{
		Timestamp:        time.Now(),
		ParsesTotal:      m.parsesTotal.Load(),
		ParseErrors:      m.parseErrors.Load(),
		EvaluationsTotal: total,
		EvaluationErrors: m.evaluationErrors.Load(),
		FastPathTotal:    fastPath,
		InterpretedTotal: m.interpretedTotal.Load(),
		FastPathRate:     fastPathRate,
		AvgEvalTimeNs:    avgTime,
		MinEvalTimeNs:    minTime,
		MaxEvalTimeNs:    m.evalTimeMax.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.parsesTotal.Store(0)
	m.parseErrors.Store(0)
	m.evaluationsTotal.Store(0)
	m.evaluationErrors.Store(0)
	m.fastPathTotal.Store(0)
	m.interpretedTotal.Store(0)
	m.evalTimeTotal.Store(0)
	m.evalTimeMin.Store(^uint64(0))
	m.evalTimeMax.Store(0)
}
