package dsp

// Config bundles the four stage configs plus the sample rate they run at.
type Config struct {
	SampleRate int
	Gate       GateConfig
	AGC        AGCConfig
	Denoiser   DenoiserConfig
	Limiter    LimiterConfig
}

// DefaultConfig mirrors the defaults enumerated in SPEC_FULL §4.3.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate: sampleRate,
		Gate:       DefaultGateConfig(),
		AGC:        DefaultAGCConfig(),
		Denoiser:   DefaultDenoiserConfig(),
		Limiter:    DefaultLimiterConfig(),
	}
}

// Pipeline runs a chunk through Gate -> AGC -> Denoiser -> Limiter. A
// pipeline with every stage disabled is the identity function.
type Pipeline struct {
	stages []Stage
}

// New builds a Pipeline from cfg. Each stage is an explicit tagged
// variant constructed here, never chosen by reflection.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		stages: []Stage{
			NewGate(cfg.Gate, cfg.SampleRate),
			NewAGC(cfg.AGC, cfg.SampleRate),
			NewDenoiser(cfg.Denoiser),
			NewLimiter(cfg.Limiter),
		},
	}
}

// Process runs samples through every stage in order and returns the
// post-pipeline chunk, which is appended to the session buffer by the
// caller.
func (p *Pipeline) Process(samples []float32) []float32 {
	for _, stage := range p.stages {
		samples = stage.Process(samples)
	}
	return samples
}

// Reset drops all per-stage session state. Called whenever a new
// session begins, since pipeline state is owned by exactly one session.
func (p *Pipeline) Reset() {
	for _, stage := range p.stages {
		stage.Reset()
	}
}
