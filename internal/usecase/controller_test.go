package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fede/whisperaloud/internal/config"
	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/enginerr"
)

func newTestStack(t *testing.T, chunks [][]float32) (*SessionController, *fakeCaptureSource, *fakeTranscriber, *fakeHistoryStore, *fakeClipboard, *fakeEventPublisher) {
	t.Helper()

	cfg := config.Config{}
	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1

	capture := &fakeCaptureSource{session: &fakeAudioSession{chunks: chunks}}
	transcriber := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hello world"}}
	rules := &fakeRulesEngine{}
	clip := &fakeClipboard{}
	hist := &fakeHistoryStore{}
	events := &fakeEventPublisher{}

	c := NewSessionController(capture, transcriber, rules, clip, hist, events, "", cfg, nil)
	return c, capture, transcriber, hist, clip, events
}

func TestStartRejectsWhenAlreadyRecording(t *testing.T) {
	t.Parallel()

	c, _, _, _, _, _ := newTestStack(t, [][]float32{{0.1}})

	require.NoError(t, c.Start(context.Background()))
	err := c.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, domain.ErrorCodeRecordingInProgress, codeOrPanic(t, err))
}

func TestStartSurfacesCaptureFailure(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Audio.SampleRate = 16000
	capture := &fakeCaptureSource{startErr: errors.New("device busy")}
	events := &fakeEventPublisher{}
	c := NewSessionController(capture, &fakeTranscriber{}, &fakeRulesEngine{}, &fakeClipboard{}, &fakeHistoryStore{}, events, "", cfg, nil)

	err := c.Start(context.Background())
	require.Error(t, err)

	st, _ := c.Status(context.Background())
	require.Equal(t, domain.SessionStateIdle, st.State)
	require.False(t, st.Active)
}

func TestStopWithoutActiveSessionFails(t *testing.T) {
	t.Parallel()

	c, _, _, _, _, _ := newTestStack(t, nil)

	_, err := c.Stop(context.Background())
	require.Error(t, err)
	require.Equal(t, domain.ErrorCodeNotRecording, codeOrPanic(t, err))
}

func TestStartStopRoundTripDeliversTranscript(t *testing.T) {
	t.Parallel()

	c, _, transcriber, hist, clip, events := newTestStack(t, [][]float32{{0.1, 0.2, 0.3}})

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, events, domain.SessionStateRecording)

	result, err := c.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello world", result.FinalTranscript)
	require.Equal(t, 1, transcriber.calls)
	require.Len(t, hist.entries, 1)
	require.Equal(t, "hello world", clip.last)

	st, _ := c.Status(context.Background())
	require.Equal(t, domain.SessionStateIdle, st.State)
	require.False(t, st.Active)
}

func TestToggleStartsThenStops(t *testing.T) {
	t.Parallel()

	c, _, _, _, _, _ := newTestStack(t, [][]float32{{0.1}})

	state, err := c.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateRecording, state)

	state, err = c.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateIdle, state)
}

func TestCancelDuringRecordingDiscardsBuffer(t *testing.T) {
	t.Parallel()

	c, _, transcriber, hist, _, events := newTestStack(t, nil)

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, events, domain.SessionStateRecording)

	require.NoError(t, c.Cancel(context.Background()))

	st, _ := c.Status(context.Background())
	require.Equal(t, domain.SessionStateIdle, st.State)
	require.Zero(t, transcriber.calls)
	require.Empty(t, hist.entries)
}

func TestCancelDuringTranscriptionSuppressesDelivery(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Audio.SampleRate = 16000

	release := make(chan struct{})
	capture := &fakeCaptureSource{session: &fakeAudioSession{chunks: [][]float32{{0.1}}}}
	transcriber := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hello"}, release: release}
	hist := &fakeHistoryStore{}
	events := &fakeEventPublisher{}
	c := NewSessionController(capture, transcriber, &fakeRulesEngine{}, &fakeClipboard{}, hist, events, "", cfg, nil)

	require.NoError(t, c.Start(context.Background()))
	waitForState(t, events, domain.SessionStateRecording)

	stopDone := make(chan struct{})
	go func() {
		_, _ = c.Stop(context.Background())
		close(stopDone)
	}()
	waitForState(t, events, domain.SessionStateTranscribing)

	require.NoError(t, c.Cancel(context.Background()))
	close(release)
	<-stopDone

	require.Empty(t, hist.entries)
	require.Empty(t, events.ready)

	states := events.snapshotStates()
	last := states[len(states)-1]
	require.Equal(t, domain.SessionStateIdle, last.state)
	require.Equal(t, domain.SessionReasonRecordingDiscarded, last.reason)

	var discardedCount int
	for _, s := range states {
		if s.state == domain.SessionStateIdle && s.reason == domain.SessionReasonRecordingDiscarded {
			discardedCount++
		}
	}
	require.Equal(t, 1, discardedCount)
}

func TestCancelWithoutActiveSessionFails(t *testing.T) {
	t.Parallel()

	c, _, _, _, _, _ := newTestStack(t, nil)

	err := c.Cancel(context.Background())
	require.Error(t, err)
	require.Equal(t, domain.ErrorCodeNotRecording, codeOrPanic(t, err))
}

func TestSetConfigRejectedWhileRecording(t *testing.T) {
	t.Parallel()

	c, _, _, _, _, _ := newTestStack(t, [][]float32{{0.1}})

	require.NoError(t, c.Start(context.Background()))

	_, err := c.SetConfig(context.Background(), map[string]any{"model": map[string]any{"name": "small"}})
	require.Error(t, err)
	require.Equal(t, domain.ErrorCodeRecordingInProgress, codeOrPanic(t, err))
}

func TestSetConfigMergesAndReportsChangedKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := dir + "/config.json"

	cfg := config.Config{}
	cfg.Audio.SampleRate = 16000
	cfg.Model.Name = "base"

	capture := &fakeCaptureSource{session: &fakeAudioSession{}}
	events := &fakeEventPublisher{}
	c := NewSessionController(capture, &fakeTranscriber{}, &fakeRulesEngine{}, &fakeClipboard{}, &fakeHistoryStore{}, events, cfgPath, cfg, nil)

	keys, err := c.SetConfig(context.Background(), map[string]any{"model": map[string]any{"name": "small"}})
	require.NoError(t, err)
	require.Contains(t, keys, "model")

	got, err := c.GetConfig(context.Background())
	require.NoError(t, err)
	model, ok := got["model"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "small", model["name"])
	require.Len(t, events.configChanges, 1)
}

func codeOrPanic(t *testing.T, err error) domain.ErrorCode {
	t.Helper()
	code, ok := enginerr.CodeOf(err)
	require.True(t, ok, "expected a tagged error, got %v", err)
	return code
}

func waitForState(t *testing.T, events *fakeEventPublisher, want domain.SessionState) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, s := range events.snapshotStates() {
			if s.state == want {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s", want)
}
