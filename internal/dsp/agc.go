package dsp

import (
	"math"

	"github.com/fede/whisperaloud/internal/domain"
)

// AGCConfig controls the Automatic Gain Control stage.
type AGCConfig struct {
	Enabled   bool
	TargetDB  float64
	MaxGainDB float64
	MinGainDB float64
	AttackMs  float64
	ReleaseMs float64
	WindowMs  float64
}

// DefaultAGCConfig matches the defaults in SPEC_FULL §4.3.
func DefaultAGCConfig() AGCConfig {
	return AGCConfig{
		Enabled:   true,
		TargetDB:  -18,
		MaxGainDB: 30,
		MinGainDB: -10,
		AttackMs:  10,
		ReleaseMs: 100,
		WindowMs:  300,
	}
}

// AGC adapts a linear gain to hold the trailing RMS near the configured
// target loudness, smoothing gain changes with attack (lowering) and
// release (raising) coefficients (P5: gain always within [min, max]).
type AGC struct {
	cfg        AGCConfig
	sampleRate int
	windowSize int
	state      domain.AGCState
	sumSquares float64
}

// NewAGC builds an AGC for the given sample rate.
func NewAGC(cfg AGCConfig, sampleRate int) *AGC {
	windowSize := int(cfg.WindowMs * float64(sampleRate) / 1000)
	if windowSize < 1 {
		windowSize = 1
	}
	return &AGC{cfg: cfg, sampleRate: sampleRate, windowSize: windowSize}
}

func (a *AGC) Reset() {
	a.state = domain.AGCState{}
	a.sumSquares = 0
}

func (a *AGC) Process(samples []float32) []float32 {
	if !a.cfg.Enabled {
		return samples
	}

	if a.state.RMSWindow == nil {
		a.state.RMSWindow = make([]float64, a.windowSize)
		a.state.Gain = 1.0
	}

	targetLinear := dbToLinear(a.cfg.TargetDB)
	minGain := dbToLinear(a.cfg.MinGainDB)
	maxGain := dbToLinear(a.cfg.MaxGainDB)
	attack := coef(a.cfg.AttackMs, a.sampleRate)
	release := coef(a.cfg.ReleaseMs, a.sampleRate)

	window := a.state.RMSWindow
	head := a.state.WindowHead
	gain := a.state.Gain
	if gain == 0 {
		gain = 1.0
	}
	sumSq := a.sumSquares

	out := make([]float32, len(samples))
	for i, s := range samples {
		sq := float64(s) * float64(s)
		sumSq += sq - window[head]
		window[head] = sq
		head = (head + 1) % len(window)

		rms := math.Sqrt(sumSq / float64(len(window)))
		desired := 1.0
		if rms >= 1e-8 {
			desired = clamp(targetLinear/rms, minGain, maxGain)
		}

		if desired < gain {
			gain = desired + (gain-desired)*attack
		} else {
			gain = desired + (gain-desired)*release
		}
		gain = clamp(gain, minGain, maxGain)

		out[i] = float32(float64(s) * gain)
	}

	a.state.WindowHead = head
	a.state.Gain = gain
	a.sumSquares = sumSq
	return out
}
