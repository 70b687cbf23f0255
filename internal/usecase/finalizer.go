package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/enginerr"
	"github.com/fede/whisperaloud/internal/ports"
)

// transcriptionJob is handed from the dispatcher to the size-1
// transcription worker at `stop`, matching the pool described in
// SPEC_FULL §5.
type transcriptionJob struct {
	ctx    context.Context
	active *activeSession
	buffer []float32
	reason domain.SessionStateReason
	done   chan stopOutcome
}

type stopOutcome struct {
	result domain.StopResult
	err    error
}

// runWorker is the transcription worker goroutine: a pool of size 1
// draining jobs handed off by the dispatcher, posting each result back
// before taking the next job.
func (c *SessionController) runWorker() {
	for job := range c.worker {
		result, err := c.transcribeAndStore(job.ctx, job.active, job.buffer)
		job.done <- stopOutcome{result: result, err: err}
	}
}

// transcribeAndStore runs the Transcriber, the Rules Engine, clipboard
// delivery, and the History Store write for one finished session buffer,
// then tears the session down. It never touches the dispatcher's
// `current` pointer directly — finishSession does that under dispatch.
func (c *SessionController) transcribeAndStore(ctx context.Context, active *activeSession, buffer []float32) (domain.StopResult, error) {
	cfg := c.runtimeSnapshot()

	tr, err := c.transcriber.Transcribe(ctx, buffer, cfg.LanguageHint)

	if active.isCancelled() {
		c.finishSession(active, domain.SessionStateCancelled, domain.SessionReasonRecordingDiscarded)
		return domain.StopResult{}, nil
	}

	if err != nil {
		c.events.Error(errorCodeOf(err), err.Error())
		c.finishSession(active, domain.SessionStateFailed, domain.SessionReasonTranscriptionFailed)
		return domain.StopResult{}, err
	}

	rawText := strings.TrimSpace(tr.Text)
	if rawText == "" && !cfg.SaveEmpty {
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonNoTranscript)
		return domain.StopResult{}, nil
	}

	final := tr.Text
	if transformed, ruleErr := c.rules.Apply(tr.Text); ruleErr != nil {
		c.events.Error(domain.ErrorCodeTranscriptionFailed, fmt.Sprintf("rules apply failed: %v", ruleErr))
	} else {
		final = transformed
	}

	copied := true
	if err := c.clipboard.SetText(ctx, final); err != nil {
		copied = false
		c.events.Error(domain.ErrorCodeTranscriptionFailed, fmt.Sprintf("clipboard write failed: %v", err))
	}

	stored := tr
	stored.Text = final
	entry, err := c.history.Add(ctx, stored, buffer, active.sessionID, cfg.ArchiveAudio)
	if err != nil {
		c.events.Error(domain.ErrorCodeTranscriptionFailed, fmt.Sprintf("history write failed: %v", err))
	}

	result := domain.StopResult{
		EntryID:         entry.ID,
		RawTranscript:   tr.Text,
		FinalTranscript: final,
		Copied:          copied,
	}

	c.events.TranscriptionReady(result, ports.TranscriptionMeta{
		DurationSec: tr.AudioDurationSec,
		Language:    tr.Language,
		Confidence:  tr.Confidence,
		EntryID:     entry.ID,
	})
	c.finishSession(active, domain.SessionStateCompleted, domain.SessionReasonTranscriptReady)
	return result, nil
}

func errorCodeOf(err error) domain.ErrorCode {
	if code, ok := enginerr.CodeOf(err); ok {
		return code
	}
	return domain.ErrorCodeTranscriptionFailed
}
