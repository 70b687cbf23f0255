// Package dsp implements the session's audio conditioning chain: Noise
// Gate -> AGC -> Denoiser -> Peak Limiter, applied in fixed order and
// stateful across chunks within one session (SPEC_FULL §4.3).
package dsp

import "math"

// Stage is one step of the chain. Implementations are explicit tagged
// variants (Gate, AGC, Denoiser, Limiter), never runtime reflection,
// per SPEC_FULL §9.
type Stage interface {
	// Process conditions one chunk in place and returns it (possibly the
	// same backing slice).
	Process(samples []float32) []float32
	// Reset drops any per-session state, as required when a new session
	// begins.
	Reset()
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// coef computes the one-pole smoothing coefficient for a time constant
// expressed in milliseconds at the given sample rate, per SPEC_FULL §4.3:
// c = exp(-1 / (time_ms * rate_hz / 1000)).
func coef(timeMs float64, sampleRate int) float64 {
	if timeMs <= 0 {
		return 0
	}
	return math.Exp(-1 / (timeMs * float64(sampleRate) / 1000))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
