package usecase

import (
	"errors"
	"io"

	"github.com/fede/whisperaloud/internal/audio"
	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/levelmeter"
	"github.com/fede/whisperaloud/internal/ports"
)

// pumpAudio is the audio thread: it owns active's capture session and
// DSP pipeline exclusively until the session ends, reading fixed-size
// chunks, running them through the pipeline, appending the conditioned
// samples to the session buffer, and reporting level readings. It
// returns (closing active.pumpDone) on a clean stop (io.EOF), a capture
// error, or the max-recording-duration sentinel.
func pumpAudio(active *activeSession, meter levelObserver, events ports.EventPublisher) {
	defer close(active.pumpDone)

	for {
		chunk, err := active.audio.ReadChunk()
		if len(chunk) > 0 {
			processed := active.pipeline.Process(chunk)
			active.appendBuffer(processed)
			if reading, ready := meter.Observe(processed); ready {
				events.LevelUpdate(reading.RMS)
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, audio.ErrMaxDurationExceeded):
				active.maxDuration.Store(true)
			case errors.Is(err, io.EOF):
			default:
				events.Error(domain.ErrorCodeNoMicrophone, err.Error())
			}
			return
		}
	}
}

// levelObserver is the narrow slice of *levelmeter.Meter the pump needs,
// kept as an interface so audio_pump_test.go can use a fake.
type levelObserver interface {
	Observe(samples []float32) (levelmeter.Reading, bool)
}
