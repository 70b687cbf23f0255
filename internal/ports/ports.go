// Package ports defines the small interfaces the Session Controller is
// built against. Each has a single production implementation plus a test
// double, per SPEC_FULL §9 (explicit interface types in place of the
// source's duck-typed callbacks).
package ports

import (
	"context"

	"github.com/fede/whisperaloud/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate          int
	Channels            int
	InputFormat         string
	InputDevice         string
	ChunkDuration       float64 // seconds
	MaxRecordingSeconds float64
}

// AudioSession is a live capture session delivering fixed-size mono
// float32 chunks at the engine sample rate. ReadChunk returns io.EOF on
// a clean stop and a sentinel error when the max recording duration is
// reached; Stop tears down the underlying capture process.
type AudioSession interface {
	ReadChunk() ([]float32, error)
	Stop() error
}

// CaptureSource acquires microphone capture sessions.
type CaptureSource interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Transcriber converts a finalized mono 16 kHz buffer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, languageHint string) (domain.TranscriptionResult, error)
	Unload()
}

// RulesEngine transforms transcripts using deterministic substitutions.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// HistoryStore is the durable record of transcriptions.
type HistoryStore interface {
	Add(ctx context.Context, result domain.TranscriptionResult, audio []float32, sessionID string, archive bool) (domain.HistoryEntry, error)
	Search(ctx context.Context, query string, filters domain.SearchFilters, limit, offset int) ([]domain.HistoryEntry, error)
	Get(ctx context.Context, id int64) (domain.HistoryEntry, error)
	ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
	Delete(ctx context.Context, id int64) error
	ToggleFavorite(ctx context.Context, id int64) (bool, error)
	SetTags(ctx context.Context, id int64, tags []string) error
	RetentionSweep(ctx context.Context, retentionDays int) (int, error)
	Export(ctx context.Context, format domain.ExportFormat, filters domain.SearchFilters) ([]byte, error)
}

// EventPublisher emits backend state/events to whatever is listening on
// the control surface (the in-process bus, and through it D-Bus).
type EventPublisher interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	LevelUpdate(level float64)
	TranscriptionReady(result domain.StopResult, meta TranscriptionMeta)
	ConfigChanged(changedKeys []string)
	Error(code domain.ErrorCode, message string)
}

// TranscriptionMeta is the payload shape of the TranscriptionReady signal.
type TranscriptionMeta struct {
	DurationSec float64 `json:"duration"`
	Language    string  `json:"language"`
	Confidence  float64 `json:"confidence"`
	EntryID     int64   `json:"entryId"`
}
