package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/fede/whisperaloud/internal/domain"
)

// DenoiserConfig controls the spectral-subtraction Denoiser stage.
type DenoiserConfig struct {
	Enabled bool
	// Strength in [0, 1] controls how aggressively the estimated noise
	// spectrum is subtracted (prop_decrease).
	Strength float64
	// PrimeFrames is the number of leading chunks averaged into the
	// noise profile before subtraction begins.
	PrimeFrames int
	// WarnOnce is invoked at most once per session when priming hasn't
	// completed yet and a chunk is passed through unmodified.
	WarnOnce func()
}

// DefaultDenoiserConfig is a moderate, safe-by-default setting.
func DefaultDenoiserConfig() DenoiserConfig {
	return DenoiserConfig{Enabled: true, Strength: 0.5, PrimeFrames: 3}
}

// Denoiser is a per-session spectral-subtraction filter: it primes a
// noise magnitude profile from the first few chunks (assumed to be
// leading silence/room tone) and then subtracts a scaled estimate of
// that profile from subsequent chunks' spectra.
//
// It is a safe no-op whenever Strength is 0, matching the "must be a
// safe no-op when unavailable" contract in SPEC_FULL §4.3.
type Denoiser struct {
	cfg              DenoiserConfig
	state            domain.DenoiserState
	primedFrameCount int
}

// NewDenoiser builds a Denoiser.
func NewDenoiser(cfg DenoiserConfig) *Denoiser {
	if cfg.PrimeFrames < 1 {
		cfg.PrimeFrames = 1
	}
	return &Denoiser{cfg: cfg}
}

func (d *Denoiser) Reset() {
	d.state = domain.DenoiserState{}
	d.primedFrameCount = 0
}

func (d *Denoiser) Process(samples []float32) []float32 {
	if !d.cfg.Enabled || d.cfg.Strength <= 0 || len(samples) == 0 {
		return samples
	}

	seq := make([]float64, len(samples))
	for i, s := range samples {
		seq[i] = float64(s)
	}

	fft := fourier.NewFFT(len(seq))
	spectrum := fft.Coefficients(nil, seq)
	mag := make([]float64, len(spectrum))
	for i, c := range spectrum {
		mag[i] = cmplx.Abs(c)
	}

	if !d.state.Primed {
		if d.state.NoiseProfile == nil {
			d.state.NoiseProfile = make([]float64, len(mag))
		}
		for i, m := range mag {
			d.state.NoiseProfile[i] += m
		}
		d.primedFrameCount++
		if d.primedFrameCount >= d.cfg.PrimeFrames {
			for i := range d.state.NoiseProfile {
				d.state.NoiseProfile[i] /= float64(d.primedFrameCount)
			}
			d.state.Primed = true
		} else if d.cfg.WarnOnce != nil && !d.state.Warned {
			d.state.Warned = true
			d.cfg.WarnOnce()
		}
		return samples
	}

	for i, c := range spectrum {
		if mag[i] <= 1e-12 {
			continue
		}
		reduced := mag[i] - d.cfg.Strength*d.state.NoiseProfile[i]
		if reduced < 0 {
			reduced = 0
		}
		scale := reduced / mag[i]
		spectrum[i] = c * complex(scale, 0)
	}

	out := fft.Sequence(nil, spectrum)
	result := make([]float32, len(out))
	for i, v := range out {
		result[i] = float32(v)
	}
	return result
}
