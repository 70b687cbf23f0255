// Command whisperaloudd is the background dictation daemon: it wires the
// engine via internal/bootstrap, exports the control surface on the
// session D-Bus bus, and runs until told to quit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"

	"github.com/fede/whisperaloud/internal/bootstrap"
	"github.com/fede/whisperaloud/internal/controlsurface"
)

func main() {
	cfgPath := flag.String("config", "", "path to the JSON configuration file (defaults to the XDG config location)")
	flag.Parse()

	if err := run(*cfgPath, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "whisperaloudd:", err)
		os.Exit(1)
	}
}

func run(cfgPath string, argv []string) error {
	services, err := bootstrap.Build(cfgPath)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer services.Controller.Quit(context.Background())

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	defer conn.Close()

	adapter := controlsurface.NewAdapter(conn, services.Controller, services.Bus)
	if err := adapter.Export(argv); err != nil {
		if errors.Is(err, controlsurface.ErrAlreadyRunning) {
			services.Log.Info().Msg("another instance is already running; forwarded argv and exiting")
			return nil
		}
		return fmt.Errorf("export control surface: %w", err)
	}
	defer adapter.Close()

	services.Log.Info().Msg("whisperaloudd ready")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		services.Log.Info().Msg("shutdown signal received")
	case <-services.Controller.Done():
		services.Log.Info().Msg("engine requested shutdown")
	}

	return nil
}
