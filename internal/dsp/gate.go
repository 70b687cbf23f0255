package dsp

import (
	"math"

	"github.com/fede/whisperaloud/internal/domain"
)

// GateConfig controls the Noise Gate stage.
type GateConfig struct {
	Enabled     bool
	ThresholdDB float64
	AttackMs    float64
	ReleaseMs   float64
}

// DefaultGateConfig matches the defaults in SPEC_FULL §4.3.
func DefaultGateConfig() GateConfig {
	return GateConfig{Enabled: true, ThresholdDB: -40, AttackMs: 5, ReleaseMs: 50}
}

// Gate is an envelope-follower noise gate. Output = input * envelope,
// where the envelope is pulled toward 1 (open) above threshold and
// toward 0 (closed) below it, using one-pole attack/release smoothing so
// the output never clicks (P4).
type Gate struct {
	cfg        GateConfig
	sampleRate int
	state      domain.GateState
}

// NewGate builds a Gate for the given sample rate.
func NewGate(cfg GateConfig, sampleRate int) *Gate {
	return &Gate{cfg: cfg, sampleRate: sampleRate}
}

func (g *Gate) Reset() {
	g.state = domain.GateState{}
}

func (g *Gate) Process(samples []float32) []float32 {
	if !g.cfg.Enabled {
		return samples
	}

	thresholdLinear := dbToLinear(g.cfg.ThresholdDB)
	attack := coef(g.cfg.AttackMs, g.sampleRate)
	release := coef(g.cfg.ReleaseMs, g.sampleRate)

	env := g.state.Envelope
	out := make([]float32, len(samples))
	for i, s := range samples {
		target := 0.0
		if math.Abs(float64(s)) > thresholdLinear {
			target = 1.0
		}
		if target > env {
			env = target + (env-target)*attack
		} else {
			env = target + (env-target)*release
		}
		out[i] = float32(float64(s) * env)
	}
	g.state.Envelope = env
	return out
}
