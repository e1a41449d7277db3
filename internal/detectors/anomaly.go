// Package detectors holds the online statistical checks: the rolling
// z-score anomaly detector and the windowed regression analyzer.
package detectors

import (
	"fmt"
	"math"
	"sync"

	"github.com/vigilstack/vigil-telemetry/internal/models"
)

// minBaselineSamples is the cold-start floor: below this, no value is ever
// flagged regardless of magnitude.
const minBaselineSamples = 10

// AnomalyDetector keeps one bounded FIFO sample window per (metric, service)
// key and tests new values against the window's mean and standard deviation.
type AnomalyDetector struct {
	mu          sync.Mutex
	windows     map[string][]float64
	windowSize  int
	sensitivity float64
}

// NewAnomalyDetector creates a detector with the configured window cap and
// sensitivity knob. The detection threshold is 2 + sensitivity/10 standard
// deviations.
func NewAnomalyDetector(windowSize int, sensitivity float64) *AnomalyDetector {
	if windowSize < minBaselineSamples {
		windowSize = 100
	}
	return &AnomalyDetector{
		windows:     make(map[string][]float64),
		windowSize:  windowSize,
		sensitivity: sensitivity,
	}
}

// Evaluate appends value to the window for (metric, service) and returns the
// detection result. Updates to the same key are serialized; the caller never
// observes a half-updated window.
func (d *AnomalyDetector) Evaluate(metric, service string, value float64) models.AnomalyDetection {
	key := metric + "\x1f" + service

	d.mu.Lock()
	window := append(d.windows[key], value)
	if len(window) > d.windowSize {
		window = window[len(window)-d.windowSize:]
	}
	d.windows[key] = window
	sample := append([]float64(nil), window...)
	d.mu.Unlock()

	if len(sample) < minBaselineSamples {
		return models.AnomalyDetection{
			Detected: false,
			Reason:   "insufficient baseline data",
		}
	}

	mean := 0.0
	for _, v := range sample {
		mean += v
	}
	mean /= float64(len(sample))

	variance := 0.0
	for _, v := range sample {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(sample))
	stdDev := math.Sqrt(variance)

	deviation := value - mean

	if stdDev == 0 {
		// Constant history: a matching value is normal; anything else is a
		// certain anomaly. No z-score exists either way.
		if deviation == 0 {
			return models.AnomalyDetection{
				Detected: false,
				Baseline: mean,
				Reason:   "value matches constant baseline",
			}
		}
		return models.AnomalyDetection{
			Detected:   true,
			Confidence: 1,
			Baseline:   mean,
			Deviation:  deviation,
			Reason:     "value diverges from constant baseline",
		}
	}

	zScore := math.Abs(deviation) / stdDev
	threshold := 2 + d.sensitivity/10
	detected := zScore > threshold
	confidence := math.Min(zScore/threshold, 1)

	reason := fmt.Sprintf("z-score %.2f within threshold %.2f", zScore, threshold)
	if detected {
		reason = fmt.Sprintf("value %.2f deviates %.2f from baseline %.2f (z-score %.2f, threshold %.2f)",
			value, deviation, mean, zScore, threshold)
	}

	return models.AnomalyDetection{
		Detected:   detected,
		Confidence: confidence,
		Baseline:   mean,
		Deviation:  deviation,
		Reason:     reason,
	}
}

// WindowLen reports the current sample count for a key, for tests.
func (d *AnomalyDetector) WindowLen(metric, service string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.windows[metric+"\x1f"+service])
}
