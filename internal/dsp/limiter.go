package dsp

// LimiterConfig controls the stateless Peak Limiter stage.
type LimiterConfig struct {
	Enabled   bool
	CeilingDB float64
}

// DefaultLimiterConfig matches the default -1 dBFS ceiling.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{Enabled: true, CeilingDB: -1}
}

// Limiter clamps samples to +/- the configured ceiling. It carries no
// per-session state (P3: |output| <= ceiling for all inputs/configs).
type Limiter struct {
	ceiling float32
	enabled bool
}

// NewLimiter builds a Limiter.
func NewLimiter(cfg LimiterConfig) *Limiter {
	return &Limiter{enabled: cfg.Enabled, ceiling: float32(dbToLinear(cfg.CeilingDB))}
}

func (l *Limiter) Reset() {}

func (l *Limiter) Process(samples []float32) []float32 {
	if !l.enabled {
		return samples
	}
	for i, s := range samples {
		if s > l.ceiling {
			samples[i] = l.ceiling
		} else if s < -l.ceiling {
			samples[i] = -l.ceiling
		}
	}
	return samples
}
