package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAGCGainStaysWithinBounds(t *testing.T) {
	t.Parallel()

	cfg := DefaultAGCConfig()
	a := NewAGC(cfg, 16000)

	minGain := dbToLinear(cfg.MinGainDB)
	maxGain := dbToLinear(cfg.MaxGainDB)

	samples := make([]float32, 16000)
	for i := range samples {
		amp := 0.01
		if i > 8000 {
			amp = 0.9
		}
		samples[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	_ = a.Process(samples)
	require.GreaterOrEqual(t, a.state.Gain, minGain-1e-9)
	require.LessOrEqual(t, a.state.Gain, maxGain+1e-9)
}

func TestAGCDoesNotAmplifyDigitalSilence(t *testing.T) {
	t.Parallel()

	a := NewAGC(DefaultAGCConfig(), 16000)
	silence := make([]float32, 4800)

	out := a.Process(silence)
	for _, s := range out {
		require.Zero(t, s)
	}
}

func TestAGCDisabledIsIdentity(t *testing.T) {
	t.Parallel()

	cfg := DefaultAGCConfig()
	cfg.Enabled = false
	a := NewAGC(cfg, 16000)

	in := []float32{0.1, 0.2, 0.3}
	out := a.Process(append([]float32(nil), in...))
	require.Equal(t, in, out)
}
