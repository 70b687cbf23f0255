// Package usecase implements the Session Controller: the single
// authoritative state machine that serializes external control requests,
// owns session lifetime, and drives Capture Source -> DSP Pipeline ->
// Transcriber -> Rules Engine -> History Store (SPEC_FULL §4.1/§5).
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fede/whisperaloud/internal/config"
	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/dsp"
	"github.com/fede/whisperaloud/internal/enginerr"
	"github.com/fede/whisperaloud/internal/levelmeter"
	"github.com/fede/whisperaloud/internal/ports"
)

// ErrNoActiveSession is wrapped by operations that require an active
// recording/transcribing session when none exists.
var ErrNoActiveSession = errors.New("no active recording session")

// ErrConfigDuringSession is wrapped when set_config/reload_config are
// called while a session is active; both are idle-only per spec.md §4.1.
var ErrConfigDuringSession = errors.New("configuration cannot change while a session is active")

// SessionController orchestrates capture, DSP conditioning,
// transcription, rule post-processing, clipboard delivery, and history
// persistence behind one serialized command dispatcher, generalizing the
// teacher's mutex-guarded `current *activeSession` pointer-swap into an
// explicit single-threaded loop.
type SessionController struct {
	capture     ports.CaptureSource
	transcriber ports.Transcriber
	rules       ports.RulesEngine
	clipboard   ports.Clipboard
	history     ports.HistoryStore
	events      ports.EventPublisher
	meter       *levelmeter.Meter

	commands chan func()
	worker   chan transcriptionJob

	cfgPath    string
	cfgFull    config.Config
	cfgUnknown map[string]json.RawMessage
	cfgRuntime runtimeConfig

	current   *activeSession
	startedAt time.Time

	quitOnce sync.Once
	quitCh   chan struct{}
}

// NewSessionController builds a controller and starts its dispatcher and
// transcription-worker goroutines. cfgPath/initialCfg/unknown come from
// an already-completed config.Load. The dispatcher runs until
// c.commands is closed and the worker until c.worker is closed; nothing
// in this package closes either.
func NewSessionController(
	capture ports.CaptureSource,
	transcriber ports.Transcriber,
	rules ports.RulesEngine,
	clipboard ports.Clipboard,
	history ports.HistoryStore,
	events ports.EventPublisher,
	cfgPath string,
	initialCfg config.Config,
	unknown map[string]json.RawMessage,
) *SessionController {
	c := &SessionController{
		capture:     capture,
		transcriber: transcriber,
		rules:       rules,
		clipboard:   clipboard,
		history:     history,
		events:      events,
		meter:       levelmeter.New(10),
		commands:    make(chan func(), 32),
		worker:      make(chan transcriptionJob, 1),
		cfgPath:     cfgPath,
		cfgFull:     initialCfg,
		cfgUnknown:  unknown,
		cfgRuntime:  deriveRuntimeConfig(initialCfg),
		startedAt:   time.Now(),
		quitCh:      make(chan struct{}),
	}
	go c.run()
	go c.runWorker()
	return c
}

// run is the dispatcher: the only goroutine that ever reads or writes
// c.current, c.cfgFull, c.cfgRuntime, c.cfgUnknown, processing posted
// commands strictly in arrival order (SPEC_FULL §5).
func (c *SessionController) run() {
	for fn := range c.commands {
		fn()
	}
}

// dispatch posts fn onto the command queue and blocks the CALLER (never
// the dispatcher itself) until fn has run.
func (c *SessionController) dispatch(fn func()) {
	done := make(chan struct{})
	c.commands <- func() {
		fn()
		close(done)
	}
	<-done
}

func (c *SessionController) runtimeSnapshot() runtimeConfig {
	var cfg runtimeConfig
	c.dispatch(func() { cfg = c.cfgRuntime })
	return cfg
}

// Start begins a new capture/transcription session. Accepted only from
// idle; returns ErrorCodeRecordingInProgress otherwise.
func (c *SessionController) Start(ctx context.Context) error {
	var reserveErr error
	active := &activeSession{sessionID: uuid.NewString(), pumpDone: make(chan struct{})}

	c.dispatch(func() {
		if c.current != nil {
			reserveErr = enginerr.New(domain.ErrorCodeRecordingInProgress, errors.New("recording already in progress"))
			return
		}
		active.setState(domain.SessionStateRecording)
		c.current = active
	})
	if reserveErr != nil {
		return reserveErr
	}

	cfg := c.runtimeSnapshot()
	session, err := c.capture.Start(ctx, cfg.Audio)
	if err != nil {
		c.dispatch(func() {
			if c.current == active {
				c.current = nil
			}
		})
		c.events.Error(errorCodeOf(err), err.Error())
		return err
	}

	c.dispatch(func() {
		active.audio = session
		active.pipeline = dsp.New(cfg.DSP)
		go c.runSession(active)
		c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	})
	return nil
}

// runSession is the per-session supervisor goroutine: it owns the audio
// thread (pumpAudio) and, if the session ended via max-duration rather
// than an explicit stop/cancel, drives the same finalize path stop uses.
func (c *SessionController) runSession(active *activeSession) {
	pumpAudio(active, c.meter, c.events)
	if active.maxDuration.Load() {
		c.autoStop(active, domain.SessionReasonMaxDuration)
	}
}

// autoStop finalizes a session that ended on its own (max duration)
// rather than via an explicit Stop call.
func (c *SessionController) autoStop(active *activeSession, reason domain.SessionStateReason) {
	var proceed bool
	c.dispatch(func() {
		if c.current != active {
			return
		}
		proceed = true
		active.setState(domain.SessionStateTranscribing)
		c.events.SessionStateChanged(domain.SessionStateTranscribing, reason)
	})
	if !proceed {
		return
	}

	_ = active.audio.Stop()
	buffer := active.takeBuffer()

	done := make(chan stopOutcome, 1)
	c.worker <- transcriptionJob{ctx: context.Background(), active: active, buffer: buffer, reason: reason, done: done}
	<-done
}

// Stop ends the active recording session and blocks until transcription,
// rule post-processing, and delivery have completed (or failed),
// returning the final result. A caller that wants the non-blocking
// pattern instead may ignore the returned value and subscribe to the
// control surface's TranscriptionReady event, which is published from
// the same code path regardless of whether anyone is waiting on Stop.
func (c *SessionController) Stop(ctx context.Context) (domain.StopResult, error) {
	var active *activeSession
	var err error

	c.dispatch(func() {
		if c.current == nil || c.current.getState() != domain.SessionStateRecording {
			err = enginerr.New(domain.ErrorCodeNotRecording, ErrNoActiveSession)
			return
		}
		active = c.current
		active.setState(domain.SessionStateTranscribing)
		c.events.SessionStateChanged(domain.SessionStateTranscribing, domain.SessionReasonTranscribing)
	})
	if err != nil {
		return domain.StopResult{}, err
	}

	_ = active.audio.Stop()
	<-active.pumpDone
	buffer := active.takeBuffer()

	done := make(chan stopOutcome, 1)
	c.worker <- transcriptionJob{ctx: ctx, active: active, buffer: buffer, reason: domain.SessionReasonTranscribing, done: done}
	outcome := <-done
	return outcome.result, outcome.err
}

// Toggle maps to Start when idle, else Stop.
func (c *SessionController) Toggle(ctx context.Context) (domain.SessionState, error) {
	var idle bool
	c.dispatch(func() { idle = c.current == nil })

	if idle {
		if err := c.Start(ctx); err != nil {
			return domain.SessionStateIdle, err
		}
		return domain.SessionStateRecording, nil
	}

	if _, err := c.Stop(ctx); err != nil {
		return domain.SessionStateRecording, err
	}
	return domain.SessionStateIdle, nil
}

// Cancel aborts the active session (recording or transcribing),
// discarding any audio/transcript without writing history or emitting
// TranscriptionReady.
func (c *SessionController) Cancel(ctx context.Context) error {
	var active *activeSession
	var wasRecording bool
	var err error

	c.dispatch(func() {
		if c.current == nil {
			err = enginerr.New(domain.ErrorCodeNotRecording, ErrNoActiveSession)
			return
		}
		active = c.current
		wasRecording = active.getState() == domain.SessionStateRecording
		active.markCancelled()
		c.current = nil
	})
	if err != nil {
		return err
	}

	if !wasRecording {
		// Already transcribing: the in-flight worker publishes the
		// terminal idle/recording_discarded event itself once the ASR
		// call returns
		// (SPEC_FULL §5 — the engine does not interrupt it mid-call).
		return nil
	}

	_ = active.audio.Stop()
	<-active.pumpDone
	active.setState(domain.SessionStateCancelled)
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	return nil
}

// Status returns a read-only snapshot of the current state.
func (c *SessionController) Status(ctx context.Context) (domain.Status, error) {
	var st domain.Status
	c.dispatch(func() {
		state := domain.SessionStateIdle
		if c.current != nil {
			state = c.current.getState()
		}
		st = domain.Status{
			State:         state,
			Active:        c.current != nil,
			UptimeSec:     time.Since(c.startedAt).Seconds(),
			ModelID:       c.cfgRuntime.ModelID,
			DeviceID:      c.cfgRuntime.Audio.InputDevice,
			HotkeyBackend: c.cfgRuntime.HotkeyBackend,
		}
	})
	return st, nil
}

// finishSession clears c.current (if it still points at active — a
// Cancel racing in could have already done so) and publishes the
// terminal SessionStateChanged event. Always called from the worker
// goroutine, so it must dispatch rather than touch c.current directly.
//
// state (Cancelled/Completed/Failed/Idle) is recorded on active for
// internal bookkeeping only; externally the engine always settles back
// to idle once a session ends, so the published state is always
// SessionStateIdle — the distinct terminal outcome is carried by reason
// instead (spec.md §4.1's "publish StatusChanged(idle)" contract).
func (c *SessionController) finishSession(active *activeSession, state domain.SessionState, reason domain.SessionStateReason) {
	c.dispatch(func() {
		if c.current == active {
			c.current = nil
		}
	})
	active.setState(state)
	c.events.SessionStateChanged(domain.SessionStateIdle, reason)
}

// History forwards to the History Store's recency listing.
func (c *SessionController) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	return c.history.ListRecent(ctx, limit)
}

// GetConfig returns the current configuration as a plain map, suitable
// for JSON serialization over the control surface.
func (c *SessionController) GetConfig(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	c.dispatch(func() {
		raw, err := json.Marshal(c.cfgFull)
		if err != nil {
			return
		}
		_ = json.Unmarshal(raw, &out)
	})
	return out, nil
}

// SetConfig merges changes into the current configuration, persists it,
// rebuilds the derived runtime config, and publishes ConfigChanged.
// Accepted only while idle.
func (c *SessionController) SetConfig(ctx context.Context, changes map[string]any) ([]string, error) {
	var changedKeys []string
	var err error

	c.dispatch(func() {
		if c.current != nil {
			err = enginerr.New(domain.ErrorCodeRecordingInProgress, ErrConfigDuringSession)
			return
		}

		merged, keys, mergeErr := mergeConfig(c.cfgFull, changes)
		if mergeErr != nil {
			err = enginerr.New(domain.ErrorCodeConfigInvalid, mergeErr)
			return
		}

		if saveErr := config.Save(c.cfgPath, merged, c.cfgUnknown); saveErr != nil {
			err = enginerr.New(domain.ErrorCodeConfigInvalid, saveErr)
			return
		}

		c.cfgFull = merged
		c.cfgRuntime = deriveRuntimeConfig(merged)
		changedKeys = keys
		c.events.ConfigChanged(changedKeys)
	})
	return changedKeys, err
}

// ReloadConfig re-reads the configuration file from disk (picking up any
// out-of-band edits) and applies it the same way SetConfig does.
// Accepted only while idle.
func (c *SessionController) ReloadConfig(ctx context.Context) error {
	var err error

	c.dispatch(func() {
		if c.current != nil {
			err = enginerr.New(domain.ErrorCodeRecordingInProgress, ErrConfigDuringSession)
			return
		}

		reloaded, unknown, loadErr := config.Load(c.cfgPath)
		if loadErr != nil {
			err = enginerr.New(domain.ErrorCodeConfigInvalid, loadErr)
			return
		}

		_, keys, _ := mergeConfig(c.cfgFull, asMap(reloaded))
		c.cfgFull = reloaded
		c.cfgUnknown = unknown
		c.cfgRuntime = deriveRuntimeConfig(reloaded)
		c.events.ConfigChanged(keys)
		err = nil
	})
	return err
}

// Quit cancels any active session, releases resources, and signals
// process exit by closing the channel returned from Done.
func (c *SessionController) Quit(ctx context.Context) {
	c.dispatch(func() {
		if c.current != nil {
			active := c.current
			active.markCancelled()
			c.current = nil
			_ = active.audio.Stop()
		}
	})
	c.events.SessionStateChanged(domain.SessionStateShutdown, domain.SessionReasonShutdown)
	c.quitOnce.Do(func() { close(c.quitCh) })
}

// Done returns a channel closed once Quit has run, for cmd/whisperaloudd
// to wait on during graceful shutdown.
func (c *SessionController) Done() <-chan struct{} {
	return c.quitCh
}

// asMap round-trips cfg through JSON to a plain map, for feeding
// mergeConfig's diff machinery from ReloadConfig.
func asMap(cfg config.Config) map[string]any {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
