package usecase

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/levelmeter"
	"github.com/fede/whisperaloud/internal/ports"
)

// fakeAudioSession replays a fixed list of chunks, then returns io.EOF
// (or a configured terminal error) from ReadChunk.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]float32
	next      int
	endErr    error
	stopCalls int
	stopped   bool
}

func (f *fakeAudioSession) ReadChunk() ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.next >= len(f.chunks) {
		if f.endErr != nil {
			return nil, f.endErr
		}
		return nil, io.EOF
	}
	chunk := f.chunks[f.next]
	f.next++
	return chunk, nil
}

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.stopped = true
	return nil
}

// fakeCaptureSource hands out a single *fakeAudioSession, or fails Start
// if startErr is set.
type fakeCaptureSource struct {
	mu       sync.Mutex
	session  *fakeAudioSession
	startErr error
	starts   int
}

func (f *fakeCaptureSource) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.session, nil
}

// fakeTranscriber returns a canned result or error for every call. If
// release is non-nil, Transcribe blocks until it is closed, simulating
// an in-flight ASR call a Cancel races against.
type fakeTranscriber struct {
	mu      sync.Mutex
	result  domain.TranscriptionResult
	err     error
	calls   int
	release chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, samples []float32, languageHint string) (domain.TranscriptionResult, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *fakeTranscriber) Unload() {}

// fakeRulesEngine either passes text through unchanged or fails.
type fakeRulesEngine struct {
	err       error
	transform func(string) string
}

func (f *fakeRulesEngine) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != nil {
		return f.transform(text), nil
	}
	return text, nil
}

// fakeClipboard records the last text written, optionally failing.
type fakeClipboard struct {
	mu   sync.Mutex
	err  error
	last string
}

func (f *fakeClipboard) SetText(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.last = text
	return nil
}

// fakeHistoryStore records Add calls and returns an incrementing ID.
type fakeHistoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.HistoryEntry
	addErr  error
}

func (f *fakeHistoryStore) Add(ctx context.Context, result domain.TranscriptionResult, audio []float32, sessionID string, archive bool) (domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return domain.HistoryEntry{}, f.addErr
	}
	f.nextID++
	entry := domain.HistoryEntry{ID: f.nextID, Text: result.Text, SessionID: sessionID}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeHistoryStore) Search(ctx context.Context, query string, filters domain.SearchFilters, limit, offset int) ([]domain.HistoryEntry, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeHistoryStore) Get(ctx context.Context, id int64) (domain.HistoryEntry, error) {
	return domain.HistoryEntry{}, errors.New("not implemented")
}

func (f *fakeHistoryStore) ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.HistoryEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeHistoryStore) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeHistoryStore) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	return false, nil
}

func (f *fakeHistoryStore) SetTags(ctx context.Context, id int64, tags []string) error { return nil }

func (f *fakeHistoryStore) RetentionSweep(ctx context.Context, retentionDays int) (int, error) {
	return 0, nil
}

func (f *fakeHistoryStore) Export(ctx context.Context, format domain.ExportFormat, filters domain.SearchFilters) ([]byte, error) {
	return nil, nil
}

// fakeEventPublisher records every published event for assertions.
type fakeEventPublisher struct {
	mu            sync.Mutex
	stateChanges  []stateChange
	levels        []float64
	ready         []domain.StopResult
	configChanges [][]string
	errs          []errEvent
}

type stateChange struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code    domain.ErrorCode
	message string
}

func (f *fakeEventPublisher) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateChanges = append(f.stateChanges, stateChange{state, reason})
}

func (f *fakeEventPublisher) LevelUpdate(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = append(f.levels, level)
}

func (f *fakeEventPublisher) TranscriptionReady(result domain.StopResult, meta ports.TranscriptionMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, result)
}

func (f *fakeEventPublisher) ConfigChanged(changedKeys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configChanges = append(f.configChanges, changedKeys)
}

func (f *fakeEventPublisher) Error(code domain.ErrorCode, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errEvent{code, message})
}

func (f *fakeEventPublisher) snapshotStates() []stateChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateChange, len(f.stateChanges))
	copy(out, f.stateChanges)
	return out
}

func (f *fakeEventPublisher) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errs))
	copy(out, f.errs)
	return out
}

// fakeLevelObserver always reports ready, returning a fixed RMS.
type fakeLevelObserver struct {
	rms float64
}

func (f *fakeLevelObserver) Observe(samples []float32) (levelmeter.Reading, bool) {
	return levelmeter.Reading{RMS: f.rms}, true
}
