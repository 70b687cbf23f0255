package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fede/whisperaloud/internal/audio"
	"github.com/fede/whisperaloud/internal/dsp"
)

func newTestActiveSession(chunks [][]float32, endErr error) (*activeSession, *fakeAudioSession) {
	fa := &fakeAudioSession{chunks: chunks, endErr: endErr}
	active := &activeSession{
		sessionID: "sess-1",
		audio:     fa,
		pipeline:  dsp.New(dsp.DefaultConfig(16000)),
		pumpDone:  make(chan struct{}),
	}
	return active, fa
}

func TestPumpAudioAppendsProcessedChunksUntilEOF(t *testing.T) {
	t.Parallel()

	active, _ := newTestActiveSession([][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5},
	}, nil)
	events := &fakeEventPublisher{}

	pumpAudio(active, &fakeLevelObserver{rms: 0.5}, events)

	<-active.pumpDone
	buf := active.takeBuffer()
	require.Len(t, buf, 5)
	require.Empty(t, events.snapshotErrors())
}

func TestPumpAudioSetsMaxDurationFlag(t *testing.T) {
	t.Parallel()

	active, _ := newTestActiveSession([][]float32{{0.1}}, audio.ErrMaxDurationExceeded)
	events := &fakeEventPublisher{}

	pumpAudio(active, &fakeLevelObserver{}, events)

	<-active.pumpDone
	require.True(t, active.maxDuration.Load())
	require.Empty(t, events.snapshotErrors())
}

func TestPumpAudioPublishesErrorOnReadFailure(t *testing.T) {
	t.Parallel()

	readErr := errors.New("device disconnected")
	active, _ := newTestActiveSession(nil, readErr)
	events := &fakeEventPublisher{}

	pumpAudio(active, &fakeLevelObserver{}, events)

	<-active.pumpDone
	errs := events.snapshotErrors()
	require.Len(t, errs, 1)
	require.Equal(t, "device disconnected", errs[0].message)
}

func TestPumpAudioEmitsLevelUpdatesWhenMeterReady(t *testing.T) {
	t.Parallel()

	active, _ := newTestActiveSession([][]float32{{0.1, 0.2}}, nil)
	events := &fakeEventPublisher{}

	pumpAudio(active, &fakeLevelObserver{rms: 0.42}, events)

	<-active.pumpDone
	require.Equal(t, []float64{0.42}, events.levels)
}
