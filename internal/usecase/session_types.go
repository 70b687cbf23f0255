package usecase

import (
	"sync"
	"sync/atomic"

	"github.com/fede/whisperaloud/internal/dsp"
	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/ports"
)

// activeSession is the one state bundle owned by a single in-flight
// recording/transcription cycle at a time, mirroring the teacher's
// activeSession/current-pointer ownership discipline.
type activeSession struct {
	sessionID string
	audio     ports.AudioSession
	pipeline  *dsp.Pipeline
	pumpDone  chan struct{}

	stateMu sync.Mutex
	state   domain.SessionState

	bufMu  sync.Mutex
	buffer []float32

	cancelled   atomic.Bool
	maxDuration atomic.Bool
}

func (s *activeSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *activeSession) appendBuffer(samples []float32) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	s.buffer = append(s.buffer, samples...)
}

// takeBuffer hands the accumulated buffer to the caller and clears it;
// called exactly once, after the audio pump has stopped.
func (s *activeSession) takeBuffer() []float32 {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	buf := s.buffer
	s.buffer = nil
	return buf
}

func (s *activeSession) markCancelled() {
	s.cancelled.Store(true)
}

func (s *activeSession) isCancelled() bool {
	return s.cancelled.Load()
}
