package levelmeter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMeterThrottlesToConfiguredRate(t *testing.T) {
	t.Parallel()

	m := New(10)
	silence := make([]float32, 160)

	emissions := 0
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, ok := m.Observe(silence); ok {
			emissions++
		}
	}

	// Over ~250ms at <=10Hz we expect at most ~3-4 emissions, never
	// anywhere close to the polling rate of this loop.
	require.LessOrEqual(t, emissions, 5)
}

func TestMeterAggregatesPeakBetweenEmissions(t *testing.T) {
	t.Parallel()

	m := New(10)
	loud := make([]float32, 16)
	for i := range loud {
		loud[i] = 0.9
	}
	quiet := make([]float32, 16)

	reading, ok := m.Observe(loud)
	require.True(t, ok)
	require.Greater(t, reading.Peak, 0.0)

	// Inside the same 100ms window: held back, but its smoothed peak
	// (0.3*0.7*0.9 = 0.189) is kept for the next emission.
	_, ok = m.Observe(quiet)
	require.False(t, ok)

	time.Sleep(m.ThrottleInterval())
	reading, ok = m.Observe(quiet)
	require.True(t, ok)
	require.InDelta(t, 0.189, reading.Peak, 1e-6)
	// The current chunk's own smoothed peak is only 0.3*0.189.
	require.Greater(t, reading.Peak, 0.3*0.189+1e-6)
}

func TestMeterClampsIntoUnitRange(t *testing.T) {
	t.Parallel()

	m := New(1000)
	loud := make([]float32, 16)
	for i := range loud {
		loud[i] = 5.0 // out-of-range input should still clamp in reporting
	}
	reading, ok := m.Observe(loud)
	require.True(t, ok)
	require.LessOrEqual(t, reading.RMS, 1.0)
	require.LessOrEqual(t, reading.Peak, 1.0)
	require.False(t, math.IsNaN(reading.DB))
}
