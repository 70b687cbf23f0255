// Package levelmeter computes the observability level signal published
// to external subscribers: per-chunk RMS/peak/dB, smoothed and throttled
// to at most 10 Hz (SPEC_FULL §4.4).
package levelmeter

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultSmoothing = 0.3
	minLevel         = 1e-10
)

// Reading is one smoothed level observation.
type Reading struct {
	RMS  float64
	Peak float64
	DB   float64
}

// Meter computes a smoothed, throttled level signal. It is not part of
// the audio path — only an observability tap on post-pipeline chunks.
type Meter struct {
	alpha   float64
	limiter *rate.Limiter

	mu        sync.Mutex
	smoothRMS float64
	smoothPk  float64
	peakSince float64 // aggregated peak since the last emission
}

// New builds a Meter throttled to at most ratePerSec emissions per
// second (SPEC_FULL default: 10 Hz).
func New(ratePerSec float64) *Meter {
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	return &Meter{
		alpha:   defaultSmoothing,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// Observe folds one post-pipeline chunk into the running smoothed level
// and reports whether an emission is due (per the 10 Hz throttle) along
// with the reading to publish. Chunks arriving between emissions are
// aggregated by keeping their peak, per SPEC_FULL's throttle contract.
func (m *Meter) Observe(samples []float32) (Reading, bool) {
	rms, peak := rmsAndPeak(samples)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.smoothRMS = m.alpha*m.smoothRMS + (1-m.alpha)*rms
	m.smoothPk = m.alpha*m.smoothPk + (1-m.alpha)*peak
	if m.smoothPk > m.peakSince {
		m.peakSince = m.smoothPk
	}

	if !m.limiter.Allow() {
		return Reading{}, false
	}

	reading := Reading{
		RMS:  clamp01(m.smoothRMS),
		Peak: clamp01(m.peakSince),
		DB:   20 * math.Log10(math.Max(m.smoothRMS, minLevel)),
	}
	m.peakSince = 0
	return reading, true
}

// ThrottleInterval reports the minimum time between emissions, useful
// for tests asserting P7.
func (m *Meter) ThrottleInterval() time.Duration {
	limit := m.limiter.Limit()
	if limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}

func rmsAndPeak(samples []float32) (rms float64, peak float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
	}
	rms = math.Sqrt(sumSq / float64(len(samples)))
	return rms, peak
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
