package controlsurface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/enginerr"
)

const (
	busName       = "org.fede.whisperaloud"
	objectPath    = "/org/fede/whisperaloud"
	interfaceName = "org.fede.whisperaloud.Control"
)

// ErrAlreadyRunning is returned by Export when another instance already
// owns the well-known bus name.
var ErrAlreadyRunning = errors.New("controlsurface: another instance already owns the bus name")

// Controller is the subset of the Session Controller the D-Bus adapter
// drives. Defined here (rather than imported) so this package has no
// dependency on internal/usecase; any type with this method set works.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (domain.StopResult, error)
	Toggle(ctx context.Context) (domain.SessionState, error)
	Cancel(ctx context.Context) error
	Status(ctx context.Context) (domain.Status, error)
	History(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
	GetConfig(ctx context.Context) (map[string]any, error)
	SetConfig(ctx context.Context, changes map[string]any) ([]string, error)
	ReloadConfig(ctx context.Context) error
	Quit(ctx context.Context)
}

// Adapter exports Controller over D-Bus and translates in-process bus
// Events into D-Bus signal emissions.
type Adapter struct {
	conn       *dbus.Conn
	controller Controller
	bus        *Bus

	stopOnce    sync.Once
	unsubscribe func()
	done        chan struct{}
}

// NewAdapter builds an adapter. Call Export to bind the bus name and
// begin forwarding events; call Close to release both.
func NewAdapter(conn *dbus.Conn, controller Controller, bus *Bus) *Adapter {
	return &Adapter{conn: conn, controller: controller, bus: bus, done: make(chan struct{})}
}

// Export claims the well-known bus name and publishes the method set.
// If another instance already owns the name, it forwards argv (if any)
// to the incumbent via the ForwardArgs method and returns
// ErrAlreadyRunning — the caller should exit 0 in that case.
func (a *Adapter) Export(argv []string) error {
	if err := a.conn.Export(a, dbus.ObjectPath(objectPath), interfaceName); err != nil {
		return fmt.Errorf("export control surface: %w", err)
	}

	reply, err := a.conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		incumbent := a.conn.Object(busName, dbus.ObjectPath(objectPath))
		call := incumbent.Call(interfaceName+".ForwardArgs", 0, argv)
		if call.Err != nil {
			return fmt.Errorf("%w (forwarding argv also failed: %v)", ErrAlreadyRunning, call.Err)
		}
		return ErrAlreadyRunning
	}

	ch, unsubscribe := a.bus.Subscribe()
	a.unsubscribe = unsubscribe
	go a.forwardEvents(ch)

	return nil
}

// Close stops forwarding bus events and releases the D-Bus name.
func (a *Adapter) Close() error {
	a.stopOnce.Do(func() {
		close(a.done)
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		_, _ = a.conn.ReleaseName(busName)
	})
	return nil
}

func (a *Adapter) forwardEvents(ch <-chan Event) {
	for {
		select {
		case <-a.done:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			a.emit(evt)
		}
	}
}

func (a *Adapter) emit(evt Event) {
	obj := dbus.ObjectPath(objectPath)
	switch evt.Kind {
	case EventSessionStateChanged:
		_ = a.conn.Emit(obj, interfaceName+".StatusChanged", string(evt.State))
		switch evt.Reason {
		case domain.SessionReasonRecordingStarted, domain.SessionReasonRecordingRestarted:
			_ = a.conn.Emit(obj, interfaceName+".RecordingStarted")
		case domain.SessionReasonTranscribing:
			_ = a.conn.Emit(obj, interfaceName+".RecordingStopped")
		}
	case EventLevelUpdate:
		_ = a.conn.Emit(obj, interfaceName+".LevelUpdate", evt.Level)
	case EventTranscriptionReady:
		meta := map[string]any{
			"duration":   evt.Result.DurationSec,
			"language":   evt.Result.Language,
			"confidence": evt.Result.Confidence,
			"entry_id":   evt.Result.EntryID,
		}
		_ = a.conn.Emit(obj, interfaceName+".TranscriptionReady", evt.Stop.FinalTranscript, meta)
	case EventConfigChanged:
		_ = a.conn.Emit(obj, interfaceName+".ConfigChanged", evt.ChangedKeys)
	case EventError:
		_ = a.conn.Emit(obj, interfaceName+".Error", string(evt.ErrorCode), evt.ErrorMessage)
	}
}

// ---- exported D-Bus methods, one per spec.md §4.7 method ----

func (a *Adapter) StartRecording() *dbus.Error {
	if err := a.controller.Start(context.Background()); err != nil {
		return asDBusError(err)
	}
	return nil
}

func (a *Adapter) StopRecording() (string, *dbus.Error) {
	result, err := a.controller.Stop(context.Background())
	if err != nil {
		return "", asDBusError(err)
	}
	return result.FinalTranscript, nil
}

func (a *Adapter) ToggleRecording() (string, *dbus.Error) {
	state, err := a.controller.Toggle(context.Background())
	if err != nil {
		return "", asDBusError(err)
	}
	return string(state), nil
}

func (a *Adapter) CancelRecording() *dbus.Error {
	if err := a.controller.Cancel(context.Background()); err != nil {
		return asDBusError(err)
	}
	return nil
}

func (a *Adapter) GetStatus() (map[string]dbus.Variant, *dbus.Error) {
	status, err := a.controller.Status(context.Background())
	if err != nil {
		return nil, asDBusError(err)
	}
	return map[string]dbus.Variant{
		"state":         dbus.MakeVariant(string(status.State)),
		"active":        dbus.MakeVariant(status.Active),
		"uptimeSec":     dbus.MakeVariant(status.UptimeSec),
		"modelId":       dbus.MakeVariant(status.ModelID),
		"deviceId":      dbus.MakeVariant(status.DeviceID),
		"hotkeyBackend": dbus.MakeVariant(status.HotkeyBackend),
	}, nil
}

func (a *Adapter) GetHistory(limit int) (string, *dbus.Error) {
	entries, err := a.controller.History(context.Background(), limit)
	if err != nil {
		return "", asDBusError(err)
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return "", asDBusError(err)
	}
	return string(encoded), nil
}

func (a *Adapter) GetConfig() (string, *dbus.Error) {
	cfg, err := a.controller.GetConfig(context.Background())
	if err != nil {
		return "", asDBusError(err)
	}
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", asDBusError(err)
	}
	return string(encoded), nil
}

func (a *Adapter) SetConfig(changesJSON string) ([]string, *dbus.Error) {
	var changes map[string]any
	if err := json.Unmarshal([]byte(changesJSON), &changes); err != nil {
		return nil, asDBusError(enginerr.New(domain.ErrorCodeConfigInvalid, err))
	}
	changedKeys, err := a.controller.SetConfig(context.Background(), changes)
	if err != nil {
		return nil, asDBusError(err)
	}
	return changedKeys, nil
}

func (a *Adapter) ReloadConfig() *dbus.Error {
	if err := a.controller.ReloadConfig(context.Background()); err != nil {
		return asDBusError(err)
	}
	return nil
}

func (a *Adapter) Quit() *dbus.Error {
	a.controller.Quit(context.Background())
	return nil
}

// ForwardArgs is called by a losing second instance on the incumbent;
// the incumbent accepts the argv and takes no action on it, since
// argv-driven actions (open-file, etc.) are a front-end concern out of
// this repo's scope.
func (a *Adapter) ForwardArgs(argv []string) *dbus.Error {
	return nil
}

func asDBusError(err error) *dbus.Error {
	code, ok := enginerr.CodeOf(err)
	if !ok {
		code = domain.ErrorCodeTranscriptionFailed
	}
	return dbus.NewError(interfaceName+"."+string(code), []any{err.Error()})
}
