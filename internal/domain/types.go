// Package domain holds the plain data types shared across the engine.
// It owns no behavior and depends on nothing else in this module.
package domain

import "time"

// SessionState models the record/transcribe lifecycle.
type SessionState string

const (
	SessionStateIdle          SessionState = "idle"
	SessionStateRecording     SessionState = "recording"
	SessionStateTranscribing  SessionState = "transcribing"
	SessionStateCancelled     SessionState = "cancelled"
	SessionStateCompleted     SessionState = "completed"
	SessionStateFailed        SessionState = "failed"
	SessionStateShutdown      SessionState = "shutdown"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonRecordingStarted    SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted  SessionStateReason = "recording_restarted"
	SessionReasonTranscribing        SessionStateReason = "transcribing"
	SessionReasonTranscriptReady     SessionStateReason = "transcript_ready"
	SessionReasonRecordingDiscarded  SessionStateReason = "recording_discarded"
	SessionReasonNoTranscript        SessionStateReason = "no_transcript"
	SessionReasonTranscriptionFailed SessionStateReason = "transcription_failed"
	SessionReasonRulesFailed         SessionStateReason = "rules_failed"
	SessionReasonConfigChanged       SessionStateReason = "config_changed"
	SessionReasonShutdown            SessionStateReason = "shutdown"
	SessionReasonMaxDuration         SessionStateReason = "max_duration_reached"
)

// ErrorCode identifies a stable, user-visible failure class.
type ErrorCode string

const (
	ErrorCodeNoMicrophone        ErrorCode = "no_microphone"
	ErrorCodeDeviceBusy          ErrorCode = "device_busy"
	ErrorCodeModelLoadFailed     ErrorCode = "model_load_failed"
	ErrorCodeModelNotFound       ErrorCode = "model_not_found"
	ErrorCodeTranscriptionFailed ErrorCode = "transcription_failed"
	ErrorCodeRecordingInProgress ErrorCode = "recording_in_progress"
	ErrorCodeNotRecording        ErrorCode = "not_recording"
	ErrorCodeConfigInvalid       ErrorCode = "config_invalid"
	ErrorCodePermissionDenied    ErrorCode = "permission_denied"
)

// AudioFrame is a contiguous buffer of mono float32 samples in [-1, 1]
// at the engine's fixed sample rate.
type AudioFrame struct {
	Samples    []float32
	SampleRate int
}

// GateState is the Noise Gate's per-session envelope state.
type GateState struct {
	Envelope float64
}

// AGCState is the AGC's per-session gain/window state.
type AGCState struct {
	Gain       float64
	RMSWindow  []float64
	WindowHead int
}

// DenoiserState is the Denoiser's per-session spectral profile state.
type DenoiserState struct {
	NoiseProfile []float64
	Primed       bool
	Warned       bool
}

// PipelineSnapshot bundles the per-stage DSP state owned by exactly one
// session at a time. A new session always starts from a zero value.
type PipelineSnapshot struct {
	Gate     GateState
	AGC      AGCState
	Denoiser DenoiserState
}

// Segment is one ASR-produced span of text with timing. AvgLogProb is
// the mean log probability the decoder assigned to this segment's
// tokens, the per-segment input to the confidence formula in §4.5.
type Segment struct {
	StartSec   float64 `json:"start"`
	EndSec     float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogProb float64 `json:"avgLogProb"`
}

// TranscriptionResult is the immutable output of a Transcriber run.
type TranscriptionResult struct {
	Text                string        `json:"text"`
	Language            string        `json:"language"`
	LanguageProbability float64       `json:"languageProbability"`
	Confidence          float64       `json:"confidence"`
	AudioDurationSec    float64       `json:"audioDurationSec"`
	ProcessingTime      time.Duration `json:"processingTime"`
	Segments            []Segment     `json:"segments"`
}

// StopResult is returned once recording is stopped and transcription,
// rule post-processing, and delivery have completed.
type StopResult struct {
	EntryID         int64  `json:"entryId"`
	RawTranscript   string `json:"rawTranscript"`
	FinalTranscript string `json:"finalTranscript"`
	Copied          bool   `json:"copied"`
}

// Status summarizes the current runtime status for GetStatus.
type Status struct {
	State         SessionState `json:"state"`
	Active        bool         `json:"active"`
	UptimeSec     float64      `json:"uptimeSec"`
	ModelID       string       `json:"modelId"`
	DeviceID      string       `json:"deviceId"`
	HotkeyBackend string       `json:"hotkeyBackend"`
	Message       string       `json:"message,omitempty"`
}

// HistoryEntry is an immutable-after-creation transcription record, with
// a small set of mutable fields (Favorite, Tags).
type HistoryEntry struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	ModelID     string    `json:"modelId"`
	Confidence  float64   `json:"confidence"`
	DurationSec float64   `json:"durationSec"`
	ArchiveHash string    `json:"archiveHash,omitempty"`
	Favorite    bool      `json:"favorite"`
	Tags        []string  `json:"tags"`
	SessionID   string    `json:"sessionId"`
}

// SearchFilters narrows a History Store search. Zero values are "no filter".
type SearchFilters struct {
	Language string
	ModelID  string
	Favorite *bool
	FromTime time.Time
	ToTime   time.Time
}

// ExportFormat identifies a History Store export serialization.
type ExportFormat string

const (
	ExportFormatJSON     ExportFormat = "json"
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatCSV      ExportFormat = "csv"
	ExportFormatText     ExportFormat = "text"
)
