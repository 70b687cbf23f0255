// Package bootstrap assembles the engine's runtime graph: configuration,
// logging, capture, DSP-backed transcription, history, rules, clipboard
// delivery, and the control surface, wired the way the teacher's single
// Build function does it.
package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fede/whisperaloud/internal/audio"
	"github.com/fede/whisperaloud/internal/clipboard"
	"github.com/fede/whisperaloud/internal/config"
	"github.com/fede/whisperaloud/internal/controlsurface"
	"github.com/fede/whisperaloud/internal/history"
	"github.com/fede/whisperaloud/internal/logging"
	"github.com/fede/whisperaloud/internal/rules"
	"github.com/fede/whisperaloud/internal/transcriber"
	"github.com/fede/whisperaloud/internal/usecase"
)

// Services is the assembled runtime graph handed to cmd/whisperaloudd.
type Services struct {
	Controller *usecase.SessionController
	Bus        *controlsurface.Bus
	Config     config.Config
	Log        zerolog.Logger
}

// Build loads configuration from cfgPath (the empty string resolves to
// the default XDG config path) and wires every component the Session
// Controller depends on.
func Build(cfgPath string) (Services, error) {
	if cfgPath == "" {
		resolved, err := config.DefaultConfigPath()
		if err != nil {
			return Services{}, fmt.Errorf("resolve default config path: %w", err)
		}
		cfgPath = resolved
	}

	cfg, unknown, err := config.Load(cfgPath)
	if err != nil {
		return Services{}, fmt.Errorf("load config: %w", err)
	}

	log := logging.New("info")

	rulesEngine, err := rules.NewEngine(cfg.Transcription.Rules.Path, cfg.Transcription.Rules.IterationLimit)
	if err != nil {
		return Services{}, fmt.Errorf("build rules engine: %w", err)
	}

	capture := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, func(msg string) {
		log.Warn().Str("component", "audio").Msg(msg)
	})

	asr := transcriber.New(transcriber.Config{
		ModelPath: cfg.Model.Path,
		Language:  cfg.Transcription.LanguageHint,
		// "auto" attempts the accelerator exactly like "gpu" and falls
		// back to CPU on failure (spec.md:130); only "cpu" skips it.
		PreferGPU: cfg.Model.ComputeDevice != "cpu",
	}, func(msg string) {
		log.Warn().Str("component", "transcriber").Msg(msg)
	})

	dbPath, err := config.HistoryDBPath(cfg)
	if err != nil {
		return Services{}, fmt.Errorf("resolve history database path: %w", err)
	}
	archiveDir, err := config.ArchiveDir(cfg)
	if err != nil {
		return Services{}, fmt.Errorf("resolve audio archive path: %w", err)
	}
	store, err := history.New(dbPath, archiveDir)
	if err != nil {
		return Services{}, fmt.Errorf("open history store: %w", err)
	}
	store.SetModelID(cfg.Model.Name)

	clip := clipboard.New()
	bus := controlsurface.NewBus()
	events := &controlsurface.PublisherAdapter{Bus: bus}

	controller := usecase.NewSessionController(
		capture,
		asr,
		rulesEngine,
		clip,
		store,
		events,
		cfgPath,
		cfg,
		unknown,
	)

	log.Info().Str("model", cfg.Model.Name).Msg("engine wired")

	return Services{Controller: controller, Bus: bus, Config: cfg, Log: log}, nil
}
