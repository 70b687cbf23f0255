package dsp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimiterClampsToCeiling(t *testing.T) {
	t.Parallel()

	cfg := DefaultLimiterConfig()
	l := NewLimiter(cfg)
	ceiling := float32(dbToLinear(cfg.CeilingDB))

	in := []float32{2.0, -2.0, 0.1, -0.1, ceiling, -ceiling}
	out := l.Process(append([]float32(nil), in...))

	for _, s := range out {
		require.LessOrEqual(t, s, ceiling)
		require.GreaterOrEqual(t, s, -ceiling)
	}
	require.Equal(t, float32(0.1), out[2])
}

func TestLimiterDisabledIsIdentity(t *testing.T) {
	t.Parallel()

	l := NewLimiter(LimiterConfig{Enabled: false, CeilingDB: -1})
	in := []float32{5, -5}
	out := l.Process(append([]float32(nil), in...))
	require.Equal(t, in, out)
}
