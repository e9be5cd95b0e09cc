package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/JojoKaizeb/GenXuzoProject/internal/app"
	"github.com/JojoKaizeb/GenXuzoProject/internal/config"
	"github.com/JojoKaizeb/GenXuzoProject/pkg/logging"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The restart command just exits; the service manager restarts us.
	restart := func() {
		log.Info().Msg("restart requested")
		cancel()
	}

	a, err := app.New(cfg, newDialer(log), restart, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("sd_notify failed")
	} else if sent {
		log.Debug().Msg("sd_notify ready sent")
	}

	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("gateway exited with error")
		os.Exit(1)
	}
}
